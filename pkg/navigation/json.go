package navigation

import (
	"encoding/json"

	"github.com/vango-dev/routedata/pkg/router"
)

type matchJSON struct {
	ID      string            `json:"id"`
	Pattern string            `json:"pattern"`
	Params  map[string]string `json:"params,omitempty"`
}

type errorJSON struct {
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
	Payload any    `json:"payload,omitempty"`
}

type submissionJSON struct {
	Action string `json:"action"`
	Method string `json:"method"`
}

type snapshotJSON struct {
	State        State                `json:"state"`
	Revalidation State                `json:"revalidation"`
	Location     string               `json:"location"`
	TransitionID string               `json:"transitionId,omitempty"`
	Matches      []matchJSON          `json:"matches"`
	LoaderData   map[string]any       `json:"loaderData"`
	ActionData   map[string]any       `json:"actionData"`
	Errors       map[string]errorJSON `json:"errors,omitempty"`
	Fallbacks    map[string]any       `json:"fallbacks,omitempty"`
	Submission   *submissionJSON      `json:"submission,omitempty"`
}

// MarshalJSON encodes the snapshot for remote views. Errors are encoded as
// their status and message.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		State:        s.State,
		Revalidation: s.Revalidation,
		Location:     s.Location.String(),
		TransitionID: s.TransitionID,
		Matches:      make([]matchJSON, 0, len(s.Matches)),
		LoaderData:   s.LoaderData,
		ActionData:   s.ActionData,
		Fallbacks:    s.Fallbacks,
	}
	if out.LoaderData == nil {
		out.LoaderData = map[string]any{}
	}
	if out.ActionData == nil {
		out.ActionData = map[string]any{}
	}
	for _, m := range s.Matches {
		out.Matches = append(out.Matches, matchJSON{ID: m.Node.ID, Pattern: m.Node.Pattern, Params: m.Params})
	}
	if len(s.Errors) > 0 {
		out.Errors = make(map[string]errorJSON, len(s.Errors))
		for id, err := range s.Errors {
			ej := errorJSON{Message: err.Error()}
			if se, ok := router.AsStatus(err); ok {
				ej.Status = se.Status
				ej.Message = se.Message()
				ej.Payload = se.Payload
			}
			out.Errors[id] = ej
		}
	}
	if s.Submission != nil {
		out.Submission = &submissionJSON{Action: s.Submission.Action, Method: s.Submission.NormalizedMethod()}
	}
	return json.Marshal(out)
}
