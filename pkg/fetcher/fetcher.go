package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/vango-dev/routedata/pkg/deferred"
	"github.com/vango-dev/routedata/pkg/invoke"
	"github.com/vango-dev/routedata/pkg/routepath"
	"github.com/vango-dev/routedata/pkg/router"
)

// ErrClosed is returned by Wait once the handle has been closed.
var ErrClosed = errors.New("fetcher: closed")

// State is the activity state of a handle.
type State int

const (
	Idle State = iota
	Loading
	Submitting
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Submitting:
		return "submitting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a point-in-time copy of a handle.
type Snapshot struct {
	Key   string
	State State

	// Data holds the last loader or action value, or the payload of a
	// validation failure.
	Data any

	// Err holds the last fatal failure.
	Err error

	// Redirect holds the location of the last redirect. Redirects are
	// recorded, not followed.
	Redirect string
}

// Host is the navigation a manager belongs to.
type Host interface {
	// Location returns the committed location, used to resolve relative
	// hrefs.
	Location() routepath.Location

	// Revalidate re-runs the committed page's loaders.
	Revalidate() <-chan struct{}
}

// Dispatcher serializes settlement with the host's other state changes.
type Dispatcher interface {
	Dispatch(fn func())
}

// Config wires a Manager to its host.
type Config struct {
	Tree       *router.Tree
	Invoker    *invoke.Invoker
	Dispatcher Dispatcher
	Host       Host
	Logger     *slog.Logger
}

// Manager owns the keyed handles of one navigator.
type Manager struct {
	tree       *router.Tree
	invoker    *invoke.Invoker
	dispatcher Dispatcher
	host       Host
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	fetchers map[string]*Fetcher
	subs     map[int]func(Snapshot)
	nextSub  int
	closed   bool
}

// NewManager returns an empty manager.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	invoker := cfg.Invoker
	if invoker == nil {
		invoker = invoke.New(invoke.WithLogger(logger))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		tree:       cfg.Tree,
		invoker:    invoker,
		dispatcher: cfg.Dispatcher,
		host:       cfg.Host,
		logger:     logger.With("component", "fetcher"),
		ctx:        ctx,
		cancel:     cancel,
		fetchers:   make(map[string]*Fetcher),
		subs:       make(map[int]func(Snapshot)),
	}
}

// Get returns the handle for key, creating it on first use. A closed
// manager returns a closed handle.
func (m *Manager) Get(key string) *Fetcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.fetchers[key]; ok {
		return f
	}
	f := &Fetcher{key: key, m: m, subs: make(map[int]func(Snapshot))}
	if m.closed {
		f.closed = true
		return f
	}
	m.fetchers[key] = f
	return f
}

// Lookup returns the handle for key without creating it.
func (m *Manager) Lookup(key string) (*Fetcher, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fetchers[key]
	return f, ok
}

// Keys returns the live handle keys, sorted.
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.fetchers))
	for k := range m.fetchers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Subscribe registers fn for changes on any handle. fn runs on the
// dispatcher. It returns an unsubscribe function.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Close closes every handle and rejects new ones.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	all := make([]*Fetcher, 0, len(m.fetchers))
	for _, f := range m.fetchers {
		all = append(all, f)
	}
	m.mu.Unlock()

	for _, f := range all {
		f.Close()
	}
	m.cancel()
}

func (m *Manager) remove(f *Fetcher) {
	m.mu.Lock()
	if m.fetchers[f.key] == f {
		delete(m.fetchers, f.key)
	}
	m.mu.Unlock()
}

func (m *Manager) notify(f *Fetcher) {
	m.dispatcher.Dispatch(func() {
		snap := f.Snapshot()

		f.mu.Lock()
		own := make([]func(Snapshot), 0, len(f.subs))
		for _, fn := range f.subs {
			own = append(own, fn)
		}
		f.mu.Unlock()

		m.mu.Lock()
		all := make([]func(Snapshot), 0, len(m.subs))
		for _, fn := range m.subs {
			all = append(all, fn)
		}
		m.mu.Unlock()

		for _, fn := range own {
			fn(snap)
		}
		for _, fn := range all {
			fn(snap)
		}
	})
}

// Fetcher is one keyed handle.
type Fetcher struct {
	key string
	m   *Manager

	mu       sync.Mutex
	state    State
	data     any
	err      error
	redirect string
	gen      uint64
	cancel   context.CancelFunc
	idle     chan struct{}
	closed   bool
	subs     map[int]func(Snapshot)
	nextSub  int

	// unhook detaches from the deferred bundle held in data.
	unhook func()
}

// Key returns the handle's key.
func (f *Fetcher) Key() string { return f.key }

// Snapshot returns the current state of the handle.
func (f *Fetcher) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{Key: f.key, State: f.state, Data: f.data, Err: f.err, Redirect: f.redirect}
}

// State returns the activity state.
func (f *Fetcher) State() State { return f.Snapshot().State }

// Data returns the last data value.
func (f *Fetcher) Data() any { return f.Snapshot().Data }

// Err returns the last fatal failure.
func (f *Fetcher) Err() error { return f.Snapshot().Err }

// Redirect returns the last recorded redirect location.
func (f *Fetcher) Redirect() string { return f.Snapshot().Redirect }

type operation struct {
	kind State
	href string
	sub  router.Submission
}

// Load runs the loader of the route matching href. A relative href is
// resolved against the host's location.
func (f *Fetcher) Load(href string) {
	f.start(operation{kind: Loading, href: href})
}

// Submit runs the action of the route matching sub.Action. An empty
// action targets the host's location.
func (f *Fetcher) Submit(sub router.Submission) {
	f.start(operation{kind: Submitting, href: sub.Action, sub: sub})
}

func (f *Fetcher) start(op operation) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if f.cancel != nil {
		f.cancel()
	}
	f.gen++
	gen := f.gen
	ctx, cancel := context.WithCancel(f.m.ctx)
	f.cancel = cancel
	f.state = op.kind
	if f.idle == nil {
		f.idle = make(chan struct{})
	}
	f.mu.Unlock()

	f.m.notify(f)
	go f.run(ctx, gen, op)
}

func (f *Fetcher) run(ctx context.Context, gen uint64, op operation) {
	id := ulid.Make().String()
	ctx = invoke.WithTransitionID(ctx, id)
	res := f.invoke(ctx, op)
	f.m.dispatcher.Dispatch(func() {
		f.settle(gen, op, res)
	})
}

func (f *Fetcher) invoke(ctx context.Context, op operation) router.Result {
	loc, err := routepath.Resolve(f.m.host.Location(), op.href)
	if err != nil {
		return router.Error(fmt.Errorf("fetcher: %w", err))
	}
	chain, ok := f.m.tree.Match(loc.String())
	if !ok {
		return router.Error(router.NotFound(loc.Path))
	}
	leaf := chain.Leaf()

	if op.kind == Loading {
		if !leaf.Node.HasLoader() {
			return router.Error(router.MethodNotAllowed(leaf.Node.ID, "GET"))
		}
		return f.m.invoker.Load(ctx, leaf, loc.URL())
	}
	return f.m.invoker.Act(ctx, leaf, loc.URL(), op.sub)
}

// settle runs on the dispatcher.
func (f *Fetcher) settle(gen uint64, op operation, res router.Result) {
	f.mu.Lock()
	if f.closed || gen != f.gen {
		f.mu.Unlock()
		f.m.logger.Debug("dropping superseded fetcher result", "key", f.key, "kind", op.kind)
		release(res.Value())
		return
	}

	previous := f.data
	switch {
	case res.IsRedirect():
		f.redirect = res.Location()
		f.err = nil
	case res.IsValidation():
		se, _ := router.AsStatus(res.Err())
		f.data = se.Payload
		f.err = nil
		f.redirect = ""
	case res.IsFailure():
		f.err = res.Err()
		f.redirect = ""
	default:
		f.data = res.Value()
		f.err = nil
		f.redirect = ""
	}
	current := f.data
	pb, _ := previous.(*deferred.Bundle)
	cb, _ := current.(*deferred.Bundle)
	var unhook func()
	if pb != cb {
		unhook, f.unhook = f.unhook, nil
	}
	f.state = Idle
	f.cancel()
	f.cancel = nil
	if f.idle != nil {
		close(f.idle)
		f.idle = nil
	}
	f.mu.Unlock()

	if unhook != nil {
		unhook()
	}
	replaced(previous, current)
	if cb != nil && cb != pb {
		f.watch(cb)
	}
	f.m.notify(f)

	if op.kind == Submitting && (res.IsData() || res.IsRedirect()) {
		f.m.host.Revalidate()
	}
}

// watch re-notifies subscribers each time a cell of b settles while the
// handle still holds b.
func (f *Fetcher) watch(b *deferred.Bundle) {
	unsub := b.Subscribe(func(key string) {
		if f.holds(b) {
			f.m.notify(f)
		}
	})
	b.OnUnhandled(func(key string, err error) {
		f.mu.Lock()
		if f.closed || f.data != any(b) {
			f.mu.Unlock()
			return
		}
		f.err = fmt.Errorf("deferred %q: %w", key, err)
		f.mu.Unlock()
		f.m.logger.Warn("unhandled deferred rejection", "key", f.key, "cell", key, "error", err)
		f.m.notify(f)
	})

	f.mu.Lock()
	if f.closed || f.data != any(b) {
		f.mu.Unlock()
		unsub()
		return
	}
	f.unhook = unsub
	f.mu.Unlock()
}

func (f *Fetcher) holds(b *deferred.Bundle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed && f.data == any(b)
}

// release discards deferred work held by a value that is being dropped.
func release(v any) {
	if b, ok := v.(*deferred.Bundle); ok {
		b.Discard()
	}
}

// replaced releases the previous value unless it is the same bundle.
func replaced(previous, current any) {
	pb, ok := previous.(*deferred.Bundle)
	if !ok {
		return
	}
	if cb, _ := current.(*deferred.Bundle); cb != pb {
		pb.Discard()
	}
}

// Wait blocks until the handle is idle and returns its snapshot.
func (f *Fetcher) Wait(ctx context.Context) (Snapshot, error) {
	for {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return Snapshot{Key: f.key}, ErrClosed
		}
		idle := f.idle
		f.mu.Unlock()

		if idle == nil {
			return f.Snapshot(), nil
		}
		select {
		case <-idle:
		case <-ctx.Done():
			return f.Snapshot(), ctx.Err()
		}
	}
}

// Subscribe registers fn for changes on this handle. fn runs on the
// dispatcher. It returns an unsubscribe function.
func (f *Fetcher) Subscribe(fn func(Snapshot)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Close aborts in-flight work and removes the handle from its manager.
// Results that arrive later are dropped. A later Get with the same key
// returns a fresh handle.
func (f *Fetcher) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	if f.idle != nil {
		close(f.idle)
		f.idle = nil
	}
	data := f.data
	unhook := f.unhook
	f.unhook = nil
	f.subs = make(map[int]func(Snapshot))
	f.mu.Unlock()

	if unhook != nil {
		unhook()
	}
	release(data)
	f.m.remove(f)
}
