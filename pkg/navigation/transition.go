package navigation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vango-dev/routedata/pkg/invoke"
	"github.com/vango-dev/routedata/pkg/routepath"
)

// Kind says what started a transition.
type Kind string

const (
	KindNavigate Kind = "navigate"
	KindSubmit   Kind = "submit"
)

// Status is the lifecycle state of a transition.
type Status int

const (
	Pending Status = iota
	Settled
	Aborted
)

// String returns the lower-case status name.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Settled:
		return "settled"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Transition is one navigation or submission in flight.
type Transition struct {
	// ID is a ULID, unique per transition.
	ID   string
	Kind Kind

	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time

	// redirects counts the hops that led to this transition.
	redirects int

	mu     sync.Mutex
	target routepath.Location
	status Status
	next   *Transition
	snap   Snapshot
	err    error
	done   chan struct{}
}

func newTransition(parent context.Context, kind Kind) *Transition {
	id := ulid.Make().String()
	ctx, cancel := context.WithCancel(invoke.WithTransitionID(parent, id))
	return &Transition{
		ID:      id,
		Kind:    kind,
		ctx:     ctx,
		cancel:  cancel,
		started: time.Now(),
		done:    make(chan struct{}),
	}
}

// Target returns the resolved location, once known.
func (t *Transition) Target() routepath.Location {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.target
}

// Status returns the lifecycle state.
func (t *Transition) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Next returns the transition that replaced this one after a redirect.
func (t *Transition) Next() *Transition {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next
}

// Done is closed when the transition settles or is aborted.
func (t *Transition) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the transition settles and returns the snapshot it
// committed. Redirects are followed to the final transition. A transition
// replaced by an unrelated one returns ErrSuperseded, and one cut short by
// Navigator.Close returns ErrClosed.
func (t *Transition) Wait(ctx context.Context) (Snapshot, error) {
	cur := t
	for {
		select {
		case <-cur.done:
		case <-cur.ctx.Done():
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
		cur.mu.Lock()
		status, next, snap, err := cur.status, cur.next, cur.snap, cur.err
		cur.mu.Unlock()
		if status == Pending {
			// Only the navigator's shutdown cancels a pending transition.
			return Snapshot{}, ErrClosed
		}
		if next != nil {
			cur = next
			continue
		}
		return snap, err
	}
}

func (t *Transition) setTarget(loc routepath.Location) {
	t.mu.Lock()
	t.target = loc
	t.mu.Unlock()
}

// settle completes the transition with a committed snapshot or an error.
func (t *Transition) settle(snap Snapshot, err error) {
	t.finish(Settled, snap, err, nil)
}

// abort ends the transition without a commit.
func (t *Transition) abort(err error) {
	t.finish(Aborted, Snapshot{}, err, nil)
}

// redirectTo ends the transition and hands over to next.
func (t *Transition) redirectTo(next *Transition) {
	t.finish(Aborted, Snapshot{}, nil, next)
}

func (t *Transition) finish(status Status, snap Snapshot, err error, next *Transition) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != Pending {
		return
	}
	t.status, t.snap, t.err, t.next = status, snap, err, next
	t.cancel()
	close(t.done)
}

func (t *Transition) pending() bool {
	return t.Status() == Pending
}
