package deferred

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrDiscarded is returned by Cell.Await when the bundle was discarded
// before the cell settled.
var ErrDiscarded = errors.New("deferred: bundle discarded")

// State is the settlement state of a cell.
type State int

const (
	Pending  State = iota // Work in progress
	Resolved              // Value available
	Rejected              // Work failed
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Cell is one keyed value of a bundle.
type Cell struct {
	key    string
	bundle *Bundle

	mu       sync.Mutex
	state    State
	value    any
	err      error
	reported bool
	dropped  bool
	done     chan struct{}
	cancel   context.CancelFunc
}

// Key returns the cell's key.
func (c *Cell) Key() string { return c.key }

// State returns the current state.
func (c *Cell) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Value returns the resolved value, or nil.
func (c *Cell) Value() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Err returns the rejection error, or nil.
func (c *Cell) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed when the cell settles or its bundle is discarded.
func (c *Cell) Done() <-chan struct{} {
	return c.done
}

// Await blocks until the cell settles. It returns ErrDiscarded if the
// bundle was discarded first.
func (c *Cell) Await(ctx context.Context) (any, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Resolved:
		return c.value, nil
	case Rejected:
		return nil, c.err
	default:
		return nil, ErrDiscarded
	}
}

// settle records the outcome. It reports false if the cell already
// settled or the bundle was discarded.
func (c *Cell) settle(v any, err error) bool {
	c.mu.Lock()
	if c.dropped || c.state != Pending {
		c.mu.Unlock()
		return false
	}
	if err != nil {
		c.state, c.err = Rejected, err
	} else {
		c.state, c.value = Resolved, v
	}
	close(c.done)
	c.mu.Unlock()
	return true
}

// Bundle is a set of keyed cells produced by one loader call.
type Bundle struct {
	mu        sync.Mutex
	cells     map[string]*Cell
	keys      []string
	discarded bool

	subs      map[int]func(key string)
	nextSub   int
	unhandled func(key string, err error)
}

// New returns an empty bundle.
func New() *Bundle {
	return &Bundle{
		cells: make(map[string]*Cell),
		subs:  make(map[int]func(string)),
	}
}

// Set stores an eager value under key, replacing any cell with that key.
func (b *Bundle) Set(key string, v any) {
	done := make(chan struct{})
	close(done)
	b.put(&Cell{key: key, bundle: b, state: Resolved, value: v, done: done})
}

// Defer starts fn on its own goroutine and returns immediately. The cell
// under key settles with fn's result.
//
// ctx contributes values only. The work is cancelled when the bundle is
// discarded, not when ctx is, so a deferred read outlives the loader call
// that started it.
func (b *Bundle) Defer(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &Cell{key: key, bundle: b, done: make(chan struct{}), cancel: cancel}
	if !b.put(c) {
		cancel()
		return
	}

	go func() {
		defer cancel()
		v, err := run(runCtx, fn)
		if c.settle(v, err) {
			b.notify(key)
		}
	}()
}

func run(ctx context.Context, fn func(context.Context) (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("deferred: panic: %v", r)
		}
	}()
	return fn(ctx)
}

func (b *Bundle) put(c *Cell) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.discarded {
		return false
	}
	if _, exists := b.cells[c.key]; !exists {
		b.keys = append(b.keys, c.key)
	}
	b.cells[c.key] = c
	return true
}

// Cell returns the cell under key.
func (b *Bundle) Cell(key string) (*Cell, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.cells[key]
	return c, ok
}

// Keys returns the keys in insertion order.
func (b *Bundle) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.keys...)
}

// Pending reports how many cells have not settled.
func (b *Bundle) Pending() int {
	b.mu.Lock()
	cells := make([]*Cell, 0, len(b.cells))
	for _, c := range b.cells {
		cells = append(cells, c)
	}
	b.mu.Unlock()

	n := 0
	for _, c := range cells {
		if c.State() == Pending {
			n++
		}
	}
	return n
}

// Value returns the resolved value under key as T. It reports false when
// the cell is missing, unresolved, or holds another type.
func Value[T any](b *Bundle, key string) (T, bool) {
	var zero T
	c, ok := b.Cell(key)
	if !ok || c.State() != Resolved {
		return zero, false
	}
	v, ok := c.Value().(T)
	return v, ok
}

// Discard cancels pending work and drops every later settlement. Pending
// cells stay pending and their waiters get ErrDiscarded. Discard is
// idempotent.
func (b *Bundle) Discard() {
	b.mu.Lock()
	if b.discarded {
		b.mu.Unlock()
		return
	}
	b.discarded = true
	cells := make([]*Cell, 0, len(b.cells))
	for _, c := range b.cells {
		cells = append(cells, c)
	}
	b.subs = make(map[int]func(string))
	b.unhandled = nil
	b.mu.Unlock()

	for _, c := range cells {
		c.mu.Lock()
		if c.state == Pending {
			close(c.done)
		}
		c.dropped = true
		cancel := c.cancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
}

// Discarded reports whether Discard has been called.
func (b *Bundle) Discarded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.discarded
}

// Subscribe registers fn to be called, on the settling goroutine, each
// time a deferred cell settles. It returns an unsubscribe function.
func (b *Bundle) Subscribe(fn func(key string)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// OnUnhandled sets the hook called when a rejected cell is rendered
// without an OnRejected handler.
func (b *Bundle) OnUnhandled(fn func(key string, err error)) {
	b.mu.Lock()
	b.unhandled = fn
	b.mu.Unlock()
}

func (b *Bundle) notify(key string) {
	b.mu.Lock()
	subs := make([]func(string), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()
	for _, fn := range subs {
		fn(key)
	}
}

// reportUnhandled calls the unhandled hook once per cell.
func (b *Bundle) reportUnhandled(c *Cell) {
	c.mu.Lock()
	if c.reported {
		c.mu.Unlock()
		return
	}
	c.reported = true
	err := c.err
	c.mu.Unlock()

	b.mu.Lock()
	fn := b.unhandled
	b.mu.Unlock()
	if fn != nil {
		fn(c.key, err)
	}
}

type cellJSON struct {
	State string `json:"state"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// MarshalJSON encodes the bundle as an object of per-key states.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	out := make(map[string]cellJSON)
	for _, key := range b.Keys() {
		c, _ := b.Cell(key)
		c.mu.Lock()
		cj := cellJSON{State: c.state.String(), Value: c.value}
		if c.err != nil {
			cj.Error = c.err.Error()
		}
		c.mu.Unlock()
		out[key] = cj
	}
	return json.Marshal(out)
}
