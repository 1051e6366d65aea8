package navigation

import (
	"github.com/vango-dev/routedata/pkg/routepath"
	"github.com/vango-dev/routedata/pkg/router"
)

// Snapshot is the view-facing state. A published snapshot is never
// mutated; treat its maps as read-only.
type Snapshot struct {
	State State

	// Revalidation is Loading while the committed page's loaders re-run
	// outside a transition.
	Revalidation State

	Location routepath.Location
	Matches  router.MatchChain

	// LoaderData is keyed by route id.
	LoaderData map[string]any

	// ActionData is keyed by the id of the route whose action ran.
	ActionData map[string]any

	// Errors is keyed by the id of the boundary route that caught it.
	Errors map[string]error

	// Fallbacks holds each boundary's error handler output, keyed like
	// Errors.
	Fallbacks map[string]any

	// Submission is set while State is Submitting and through the reload
	// that follows the action. A link navigation clears it.
	Submission *router.Submission

	// TransitionID identifies the transition that produced the snapshot.
	TransitionID string
}

// RouteData returns the loader data of route id.
func (s Snapshot) RouteData(id string) any {
	return s.LoaderData[id]
}

// ActionResult returns the action data of route id.
func (s Snapshot) ActionResult(id string) any {
	return s.ActionData[id]
}

// Error returns the error caught by boundary route id.
func (s Snapshot) Error(id string) error {
	return s.Errors[id]
}

// RenderMatches returns the matches a view should render: the full chain,
// or the chain cut after the shallowest route holding an error.
func (s Snapshot) RenderMatches() router.MatchChain {
	if len(s.Errors) == 0 {
		return s.Matches
	}
	for i, m := range s.Matches {
		if _, failed := s.Errors[m.Node.ID]; failed {
			return s.Matches[:i+1]
		}
	}
	return s.Matches
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.LoaderData = copyMap(s.LoaderData)
	out.ActionData = copyMap(s.ActionData)
	out.Fallbacks = copyMap(s.Fallbacks)
	out.Errors = make(map[string]error, len(s.Errors))
	for k, v := range s.Errors {
		out.Errors[k] = v
	}
	return out
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
