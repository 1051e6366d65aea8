package navigation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/vango-dev/routedata/internal/loop"
	"github.com/vango-dev/routedata/pkg/deferred"
	"github.com/vango-dev/routedata/pkg/fetcher"
	"github.com/vango-dev/routedata/pkg/invoke"
	"github.com/vango-dev/routedata/pkg/routepath"
	"github.com/vango-dev/routedata/pkg/router"
)

// DefaultMaxRedirects bounds a redirect chain.
const DefaultMaxRedirects = 20

// Fallback is the content produced by DefaultErrorHandler.
type Fallback struct {
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

// DefaultErrorHandler renders failures caught by a boundary route that has
// no handler of its own.
func DefaultErrorHandler(err error) any {
	if se, ok := router.AsStatus(err); ok {
		msg := se.Message()
		if msg == "" {
			msg = err.Error()
		}
		return Fallback{Status: se.Status, Message: msg}
	}
	return Fallback{Message: err.Error()}
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Navigator) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithInvoker sets the invoker used for loaders, actions and fetchers.
func WithInvoker(inv *invoke.Invoker) Option {
	return func(n *Navigator) {
		n.invoker = inv
	}
}

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(n *Navigator) {
		if o != nil {
			n.observer = o
		}
	}
}

// WithMaxRedirects sets the redirect chain limit.
func WithMaxRedirects(max int) Option {
	return func(n *Navigator) {
		if max > 0 {
			n.maxRedirects = max
		}
	}
}

// WithDefaultErrorHandler sets the handler used when the boundary route
// declares none.
func WithDefaultErrorHandler(h router.ErrorHandler) Option {
	return func(n *Navigator) {
		if h != nil {
			n.fallback = h
		}
	}
}

type failure struct {
	index int
	err   error
}

// commitPlan is what a transition will commit once its loaders settle.
type commitPlan struct {
	loc        routepath.Location
	chain      router.MatchChain
	actionData map[string]any
	failures   []failure
}

type revalidation struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Navigator is the navigation state machine.
type Navigator struct {
	tree         *router.Tree
	invoker      *invoke.Invoker
	loop         *loop.Loop
	logger       *slog.Logger
	observer     Observer
	maxRedirects int
	fallback     router.ErrorHandler
	fetchers     *fetcher.Manager

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	mu   sync.RWMutex
	snap Snapshot

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int

	// Owned by the loop.
	cur     *Transition
	reval   *revalidation
	bundles []*deferred.Bundle
	unhook  []func()
}

// New returns an idle navigator at "/". Nothing is loaded until the first
// Navigate.
func New(tree *router.Tree, opts ...Option) *Navigator {
	n := &Navigator{
		tree:         tree,
		logger:       slog.Default(),
		observer:     nopObserver{},
		maxRedirects: DefaultMaxRedirects,
		fallback:     DefaultErrorHandler,
		subs:         make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With("component", "navigation")
	if n.invoker == nil {
		n.invoker = invoke.New(invoke.WithLogger(n.logger))
	}
	n.ctx, n.cancel = context.WithCancel(context.Background())
	n.loop = loop.New(n.logger)
	n.snap = Snapshot{
		Location:   routepath.Location{Path: "/"},
		LoaderData: map[string]any{},
		ActionData: map[string]any{},
		Errors:     map[string]error{},
		Fallbacks:  map[string]any{},
	}
	n.fetchers = fetcher.NewManager(fetcher.Config{
		Tree:       tree,
		Invoker:    n.invoker,
		Dispatcher: n.loop,
		Host:       n,
		Logger:     n.logger,
	})
	return n
}

// Tree returns the route tree.
func (n *Navigator) Tree() *router.Tree { return n.tree }

// Fetchers returns the navigator's fetcher handles.
func (n *Navigator) Fetchers() *fetcher.Manager { return n.fetchers }

// Snapshot returns the committed state.
func (n *Navigator) Snapshot() Snapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.snap
}

// Location returns the committed location.
func (n *Navigator) Location() routepath.Location {
	return n.Snapshot().Location
}

// Subscribe registers fn to receive every published snapshot. fn runs on
// the navigator's goroutine and must not block; it may call Navigate,
// Submit or Revalidate. It returns an unsubscribe function.
func (n *Navigator) Subscribe(fn func(Snapshot)) func() {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = fn
	return func() {
		n.subMu.Lock()
		delete(n.subs, id)
		n.subMu.Unlock()
	}
}

// Navigate starts a navigation to an absolute path or to a path relative
// to the committed location.
func (n *Navigator) Navigate(to string) *Transition {
	t := newTransition(n.ctx, KindNavigate)
	if n.closed.Load() {
		t.abort(ErrClosed)
		return t
	}
	n.loop.Dispatch(func() {
		loc, err := routepath.Resolve(n.snap.Location, to)
		if err != nil {
			n.reject(t, err)
			return
		}
		n.begin(t)
		n.navigate(t, loc)
	})
	return t
}

// Submit starts a submission. Mutations run the action of the route
// matching sub.Action; GET submissions navigate with the form as query.
func (n *Navigator) Submit(sub router.Submission) *Transition {
	t := newTransition(n.ctx, KindSubmit)
	if n.closed.Load() {
		t.abort(ErrClosed)
		return t
	}
	n.loop.Dispatch(func() {
		loc, err := routepath.Resolve(n.snap.Location, sub.Action)
		if err != nil {
			n.reject(t, err)
			return
		}
		n.begin(t)
		if !sub.IsMutation() {
			loc.Query = sub.Form.Encode()
			n.navigate(t, loc)
			return
		}
		n.submit(t, loc, sub)
	})
	return t
}

// Revalidate re-runs the committed page's loaders without changing State.
// The returned channel closes when the revalidation commits or is
// superseded. While a transition is in flight it is a no-op, since that
// transition loads fresh data anyway.
func (n *Navigator) Revalidate() <-chan struct{} {
	done := make(chan struct{})
	if n.closed.Load() {
		close(done)
		return done
	}
	n.loop.Dispatch(func() { n.revalidate(done) })
	return done
}

// ReportError records err at the nearest error boundary of route routeID
// in the committed matches. Deferred rejections rendered without a
// handler arrive here.
func (n *Navigator) ReportError(routeID string, err error) {
	if err == nil || n.closed.Load() {
		return
	}
	n.loop.Dispatch(func() {
		idx := n.snap.Matches.IndexOf(routeID)
		if idx < 0 {
			n.logger.Warn("error reported for unmatched route", "route", routeID, "error", err)
			return
		}
		s := n.snap.clone()
		n.applyFailures(&s, []failure{{index: idx, err: err}})
		n.publish(s)
	})
}

// Close aborts the current transition, discards deferred work, closes
// every fetcher and stops the navigator. It must not be called from a
// subscriber.
func (n *Navigator) Close() {
	if n.closed.Swap(true) {
		return
	}
	_ = n.loop.Do(context.Background(), func() {
		if n.cur != nil {
			n.cur.abort(ErrClosed)
			n.cur = nil
		}
		if n.reval != nil {
			n.reval.cancel()
			close(n.reval.done)
			n.reval = nil
		}
		n.releaseBundles(nil)
	})
	// Fetchers must close before the loop. Loop.Close drops queued
	// callbacks, so a fetcher settle still in the queue never runs, and
	// only Fetcher.Close releases its Wait callers.
	n.fetchers.Close()
	n.cancel()
	n.loop.Close()
	n.logger.Info("navigator closed")
}

// The methods below run on the loop.

func (n *Navigator) begin(t *Transition) {
	if prev := n.cur; prev != nil && prev != t {
		prev.abort(ErrSuperseded)
		n.observer.ObserveTransition(string(prev.Kind), OutcomeSuperseded, time.Since(prev.started))
		n.logger.Debug("transition superseded", "transition", prev.ID, "by", t.ID)
	}
	n.stopRevalidation()
	n.cur = t
}

func (n *Navigator) reject(t *Transition, err error) {
	n.logger.Warn("transition rejected", "transition", t.ID, "error", err)
	n.observer.ObserveTransition(string(t.Kind), OutcomeFailed, time.Since(t.started))
	t.settle(Snapshot{}, err)
}

func (n *Navigator) navigate(t *Transition, loc routepath.Location) {
	t.setTarget(loc)
	chain, ok := n.tree.Match(loc.String())
	if !ok {
		n.commit(t, n.notFound(loc), map[string]any{})
		return
	}

	s := n.snap.clone()
	s.State = Loading
	s.Submission = nil
	s.TransitionID = t.ID
	n.publish(s)

	n.load(t, commitPlan{loc: loc, chain: chain}, -1)
}

func (n *Navigator) notFound(loc routepath.Location) commitPlan {
	return commitPlan{
		loc:      loc,
		chain:    n.tree.NotFoundChain(),
		failures: []failure{{index: 0, err: router.NotFound(loc.Path)}},
	}
}

func (n *Navigator) submit(t *Transition, loc routepath.Location, sub router.Submission) {
	t.setTarget(loc)
	chain, ok := n.tree.Match(loc.String())
	if !ok {
		n.commit(t, n.notFound(loc), map[string]any{})
		return
	}

	s := n.snap.clone()
	s.State = Submitting
	s.Submission = &sub
	s.TransitionID = t.ID
	n.publish(s)

	ctx := t.ctx
	go func() {
		res := n.invoker.Act(ctx, chain.Leaf(), loc.URL(), sub)
		n.loop.Dispatch(func() { n.settleAction(t, loc, chain, res) })
	}()
}

func (n *Navigator) settleAction(t *Transition, loc routepath.Location, chain router.MatchChain, res router.Result) {
	if n.cur != t || !t.pending() {
		n.logger.Debug("dropping superseded action result", "transition", t.ID)
		release(res.Value())
		return
	}

	leafIdx := len(chain) - 1
	leafID := chain[leafIdx].Node.ID

	switch {
	case res.IsRedirect():
		n.redirect(t, commitPlan{loc: loc, chain: chain}, res.Location())

	case res.IsValidation():
		se, _ := router.AsStatus(res.Err())
		s := n.snap.clone()
		s.State = Idle
		s.Submission = nil
		s.TransitionID = t.ID
		s.ActionData[leafID] = se.Payload
		n.cur = nil
		n.publish(s)
		t.settle(s, nil)
		n.observer.ObserveTransition(string(t.Kind), OutcomeValidation, time.Since(t.started))

	case res.IsFailure():
		boundary := chain.Boundary(leafIdx)
		n.enterLoading(t)
		n.load(t, commitPlan{
			loc:      loc,
			chain:    chain,
			failures: []failure{{index: leafIdx, err: res.Err()}},
		}, boundary)

	default:
		n.enterLoading(t)
		n.load(t, commitPlan{
			loc:        n.snap.Location,
			chain:      n.snap.Matches,
			actionData: map[string]any{leafID: res.Value()},
		}, -1)
	}
}

func (n *Navigator) enterLoading(t *Transition) {
	s := n.snap.clone()
	s.State = Loading
	s.TransitionID = t.ID
	n.publish(s)
}

// load runs the loaders of plan.chain below limit and commits the result.
func (n *Navigator) load(t *Transition, plan commitPlan, limit int) {
	ctx := t.ctx
	go func() {
		res := n.invoker.LoadChain(ctx, plan.chain, plan.loc.URL(), limit)
		n.loop.Dispatch(func() { n.settleLoad(t, plan, res) })
	}()
}

func (n *Navigator) settleLoad(t *Transition, plan commitPlan, res invoke.ChainResult) {
	if n.cur != t || !t.pending() {
		n.logger.Debug("dropping superseded loader results", "transition", t.ID)
		drop(res)
		return
	}
	if res.Redirect != nil {
		go res.Drain(func(o invoke.Outcome) { release(o.Result.Value()) })
		n.redirect(t, plan, res.Redirect.Result.Location())
		return
	}

	data := make(map[string]any, len(res.Outcomes))
	for _, o := range res.Outcomes {
		if o.Result.IsFailure() {
			plan.failures = append(plan.failures, failure{index: o.Index, err: o.Result.Err()})
			continue
		}
		data[o.RouteID] = o.Result.Value()
	}
	n.commit(t, plan, data)
}

func (n *Navigator) redirect(t *Transition, plan commitPlan, to string) {
	if t.redirects >= n.maxRedirects {
		n.logger.Warn("redirect limit exceeded", "transition", t.ID, "location", to, "limit", n.maxRedirects)
		n.commit(t, commitPlan{
			loc:      plan.loc,
			chain:    plan.chain,
			failures: []failure{{index: 0, err: ErrTooManyRedirects}},
		}, map[string]any{})
		return
	}
	loc, err := routepath.Resolve(plan.loc, to)
	if err != nil {
		n.commit(t, commitPlan{
			loc:      plan.loc,
			chain:    plan.chain,
			failures: []failure{{index: 0, err: fmt.Errorf("navigation: redirect to %q: %w", to, err)}},
		}, map[string]any{})
		return
	}

	next := newTransition(n.ctx, KindNavigate)
	next.redirects = t.redirects + 1
	n.logger.Debug("following redirect", "transition", t.ID, "next", next.ID, "location", loc.String())
	t.redirectTo(next)
	n.observer.ObserveTransition(string(t.Kind), OutcomeRedirected, time.Since(t.started))
	n.cur = next
	n.navigate(next, loc)
}

func (n *Navigator) commit(t *Transition, plan commitPlan, data map[string]any) {
	actionData := plan.actionData
	if actionData == nil {
		actionData = map[string]any{}
	}
	s := Snapshot{
		State:        Idle,
		Revalidation: Idle,
		Location:     plan.loc,
		Matches:      plan.chain,
		LoaderData:   data,
		ActionData:   actionData,
		Errors:       map[string]error{},
		Fallbacks:    map[string]any{},
		TransitionID: t.ID,
	}
	n.applyFailures(&s, plan.failures)
	n.swapBundles(s)

	n.cur = nil
	n.publish(s)
	t.settle(s, nil)

	outcome := OutcomeCommitted
	if len(s.Errors) > 0 {
		outcome = OutcomeFailed
	}
	n.observer.ObserveTransition(string(t.Kind), outcome, time.Since(t.started))
	n.logger.Info("transition committed",
		"transition", t.ID,
		"kind", t.Kind,
		"location", s.Location.String(),
		"routes", len(s.Matches),
		"errors", len(s.Errors))
}

// applyFailures records each failure at its boundary. The shallowest
// failure wins when several land on the same boundary.
func (n *Navigator) applyFailures(s *Snapshot, failures []failure) {
	sort.SliceStable(failures, func(i, j int) bool { return failures[i].index < failures[j].index })
	for _, f := range failures {
		var (
			boundary int
			id       string
			handler  router.ErrorHandler
		)
		if len(s.Matches) > 0 {
			boundary = s.Matches.Boundary(f.index)
			node := s.Matches[boundary].Node
			id, handler = node.ID, node.ErrorHandler
		}
		if _, exists := s.Errors[id]; exists {
			continue
		}
		if handler == nil {
			handler = n.fallback
		}
		s.Errors[id] = f.err
		s.Fallbacks[id] = n.render(handler, id, f.err)
	}
}

func (n *Navigator) render(h router.ErrorHandler, id string, err error) (out any) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("error handler panicked", "route", id, "panic", r)
			out = DefaultErrorHandler(err)
		}
	}()
	return h(err)
}

// swapBundles discards the deferred bundles the new snapshot no longer
// holds and hooks the ones it does.
func (n *Navigator) swapBundles(s Snapshot) {
	keep := make(map[*deferred.Bundle]string)
	for id, v := range s.LoaderData {
		if b, ok := v.(*deferred.Bundle); ok {
			keep[b] = id
		}
	}
	n.releaseBundles(keep)
	for b, id := range keep {
		n.hook(id, b)
	}
}

func (n *Navigator) releaseBundles(keep map[*deferred.Bundle]string) {
	for _, unhook := range n.unhook {
		unhook()
	}
	n.unhook = nil
	for _, b := range n.bundles {
		if _, kept := keep[b]; !kept {
			b.Discard()
		}
	}
	n.bundles = nil
}

func (n *Navigator) hook(routeID string, b *deferred.Bundle) {
	n.bundles = append(n.bundles, b)
	n.unhook = append(n.unhook, b.Subscribe(func(key string) {
		n.loop.Dispatch(func() { n.cellSettled(b, key) })
	}))
	b.OnUnhandled(func(key string, err error) {
		n.ReportError(routeID, fmt.Errorf("deferred %q: %w", key, err))
	})
}

func (n *Navigator) cellSettled(b *deferred.Bundle, key string) {
	live := false
	for _, held := range n.bundles {
		if held == b {
			live = true
			break
		}
	}
	if !live {
		return
	}
	if c, ok := b.Cell(key); ok {
		n.observer.ObserveDeferred(c.State().String())
	}
	n.notify(n.snap)
}

func (n *Navigator) revalidate(done chan struct{}) {
	if n.cur != nil || len(n.snap.Matches) == 0 {
		close(done)
		return
	}
	n.stopRevalidation()

	ctx, cancel := context.WithCancel(n.ctx)
	r := &revalidation{cancel: cancel, done: done}
	n.reval = r

	s := n.snap.clone()
	s.Revalidation = Loading
	n.publish(s)

	loc, chain := s.Location, s.Matches
	go func() {
		res := n.invoker.LoadChain(ctx, chain, loc.URL(), -1)
		n.loop.Dispatch(func() { n.settleRevalidation(r, loc, chain, res) })
	}()
}

func (n *Navigator) stopRevalidation() {
	if n.reval == nil {
		return
	}
	n.reval.cancel()
	close(n.reval.done)
	n.reval = nil

	s := n.snap.clone()
	s.Revalidation = Idle
	n.publish(s)
}

func (n *Navigator) settleRevalidation(r *revalidation, loc routepath.Location, chain router.MatchChain, res invoke.ChainResult) {
	if n.reval != r {
		n.logger.Debug("dropping superseded revalidation")
		drop(res)
		return
	}
	n.reval = nil
	defer close(r.done)
	defer r.cancel()

	if res.Redirect != nil {
		go res.Drain(func(o invoke.Outcome) { release(o.Result.Value()) })
		s := n.snap.clone()
		s.Revalidation = Idle
		n.publish(s)

		t := newTransition(n.ctx, KindNavigate)
		target, err := routepath.Resolve(loc, res.Redirect.Result.Location())
		if err != nil {
			n.reject(t, err)
			return
		}
		n.begin(t)
		n.navigate(t, target)
		return
	}

	s := Snapshot{
		State:        n.snap.State,
		Revalidation: Idle,
		Location:     loc,
		Matches:      chain,
		LoaderData:   make(map[string]any, len(res.Outcomes)),
		ActionData:   copyMap(n.snap.ActionData),
		Errors:       map[string]error{},
		Fallbacks:    map[string]any{},
		TransitionID: n.snap.TransitionID,
	}
	var failures []failure
	for _, o := range res.Outcomes {
		if o.Result.IsFailure() {
			failures = append(failures, failure{index: o.Index, err: o.Result.Err()})
			continue
		}
		s.LoaderData[o.RouteID] = o.Result.Value()
	}
	n.applyFailures(&s, failures)
	n.swapBundles(s)
	n.publish(s)
}

func (n *Navigator) publish(s Snapshot) {
	n.mu.Lock()
	n.snap = s
	n.mu.Unlock()
	n.notify(s)
}

func (n *Navigator) notify(s Snapshot) {
	n.subMu.Lock()
	ids := make([]int, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, n.subs[id])
	}
	n.subMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// drop releases everything held by results nobody will commit.
func drop(res invoke.ChainResult) {
	for _, o := range res.Outcomes {
		release(o.Result.Value())
	}
	if res.Redirect != nil {
		go res.Drain(func(o invoke.Outcome) { release(o.Result.Value()) })
	}
}

func release(v any) {
	if b, ok := v.(*deferred.Bundle); ok {
		b.Discard()
	}
}
