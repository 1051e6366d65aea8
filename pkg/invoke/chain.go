package invoke

import (
	"context"
	"net/url"

	"github.com/vango-dev/routedata/pkg/router"
)

// Outcome is one loader's result within a chain.
type Outcome struct {
	// Index is the position of the route in the chain.
	Index   int
	RouteID string
	Result  router.Result
}

// ChainResult collects the loader outcomes of one chain.
type ChainResult struct {
	// Outcomes holds one entry per route with a loader, in chain order.
	// It is empty when Redirect is set.
	Outcomes []Outcome

	// Redirect is the first redirect returned, if any.
	Redirect *Outcome

	// late receives the outcomes discarded by a redirect short-circuit,
	// pending of them in total. Read through Drain.
	late    chan Outcome
	pending int
}

// Drain calls fn for each loader outcome discarded by a redirect
// short-circuit, blocking until the cancelled loaders return. Callers use
// it to release what those results hold, such as deferred bundles. It
// returns immediately when there was no short-circuit.
func (c ChainResult) Drain(fn func(Outcome)) {
	for n := 0; n < c.pending; n++ {
		fn(<-c.late)
	}
}

// Failures returns outcomes whose result is a failure, in chain order.
func (c ChainResult) Failures() []Outcome {
	var out []Outcome
	for _, o := range c.Outcomes {
		if o.Result.IsFailure() {
			out = append(out, o)
		}
	}
	return out
}

// LoadChain runs every loader in chain concurrently and waits for all of
// them, unless one redirects. On the first redirect the remaining loaders
// are cancelled and the redirect is returned at once.
//
// Only routes whose index is below limit are loaded. A negative limit
// loads the whole chain.
func (i *Invoker) LoadChain(ctx context.Context, chain router.MatchChain, u *url.URL, limit int) ChainResult {
	if limit < 0 || limit > len(chain) {
		limit = len(chain)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var targets []int
	for idx := 0; idx < limit; idx++ {
		if chain[idx].Node.HasLoader() {
			targets = append(targets, idx)
		}
	}

	results := make(chan Outcome, len(targets))
	for _, idx := range targets {
		idx := idx
		m := chain[idx]
		go func() {
			results <- Outcome{Index: idx, RouteID: m.Node.ID, Result: i.Load(ctx, m, u)}
		}()
	}

	byIndex := make(map[int]Outcome, len(targets))
	for received := 0; received < len(targets); received++ {
		o := <-results
		if o.Result.IsRedirect() {
			i.logger.Debug("loader redirected, cancelling chain",
				"route", o.RouteID,
				"location", o.Result.Location())
			var late []Outcome
			for _, prior := range byIndex {
				late = append(late, prior)
			}
			pending := len(targets) - received - 1
			lateCh := make(chan Outcome, len(late)+pending)
			for _, prior := range late {
				lateCh <- prior
			}
			go func() {
				for n := 0; n < pending; n++ {
					lateCh <- <-results
				}
			}()
			return ChainResult{Redirect: &o, late: lateCh, pending: len(late) + pending}
		}
		byIndex[o.Index] = o
	}

	out := ChainResult{Outcomes: make([]Outcome, 0, len(targets))}
	for _, idx := range targets {
		out.Outcomes = append(out.Outcomes, byIndex[idx])
	}
	return out
}
