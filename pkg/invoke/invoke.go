// Package invoke calls route loaders and actions.
//
// Every call passes through a middleware chain, recovers panics into raw
// failures, and honours an optional per-call timeout. LoadChain runs the
// loaders of a whole match chain concurrently.
package invoke

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"runtime/debug"
	"time"

	"github.com/vango-dev/routedata/pkg/router"
)

// Kind distinguishes loader calls from action calls.
type Kind string

const (
	KindLoader Kind = "loader"
	KindAction Kind = "action"
)

// Call describes one loader or action invocation.
type Call struct {
	Kind  Kind
	Match router.Match
	URL   *url.URL

	// Submission is set for action calls.
	Submission *router.Submission

	// TransitionID is the navigation or fetcher operation that issued the
	// call, if any.
	TransitionID string
}

// RouteID returns the id of the route being invoked.
func (c *Call) RouteID() string {
	return c.Match.Node.ID
}

// Next continues the middleware chain.
type Next func(ctx context.Context) router.Result

// Middleware wraps every call.
type Middleware interface {
	Handle(ctx context.Context, call *Call, next Next) router.Result
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, call *Call, next Next) router.Result

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(ctx context.Context, call *Call, next Next) router.Result {
	return f(ctx, call, next)
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Invoker) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithMiddleware appends middleware. The first one added is outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(i *Invoker) {
		i.middleware = append(i.middleware, mw...)
	}
}

// WithTimeout bounds each call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(i *Invoker) {
		i.timeout = d
	}
}

// Invoker runs loaders and actions.
type Invoker struct {
	logger     *slog.Logger
	middleware []Middleware
	timeout    time.Duration
}

// New returns an Invoker.
func New(opts ...Option) *Invoker {
	i := &Invoker{logger: slog.Default()}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With("component", "invoke")
	return i
}

type transitionKey struct{}

// WithTransitionID tags ctx with the operation id reported in Call.
func WithTransitionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, transitionKey{}, id)
}

// TransitionID returns the id set by WithTransitionID.
func TransitionID(ctx context.Context) string {
	id, _ := ctx.Value(transitionKey{}).(string)
	return id
}

// Load runs m's loader. Routes without a loader yield Data(nil).
func (i *Invoker) Load(ctx context.Context, m router.Match, u *url.URL) router.Result {
	if !m.Node.HasLoader() {
		return router.Data(nil)
	}
	call := &Call{Kind: KindLoader, Match: m, URL: u, TransitionID: TransitionID(ctx)}
	return i.invoke(ctx, call, func(ctx context.Context) router.Result {
		return m.Node.Loader(ctx, router.LoaderArgs{URL: u, Params: m.Params, RouteID: m.Node.ID})
	})
}

// Act runs m's action with the submission. Routes without an action yield
// a 405 failure.
func (i *Invoker) Act(ctx context.Context, m router.Match, u *url.URL, sub router.Submission) router.Result {
	if !m.Node.HasAction() {
		return router.Error(router.MethodNotAllowed(m.Node.ID, sub.NormalizedMethod()))
	}
	args, err := sub.Args(u, m)
	if err != nil {
		return router.Error(fmt.Errorf("invoke: encode submission: %w", err))
	}
	call := &Call{Kind: KindAction, Match: m, URL: u, Submission: &sub, TransitionID: TransitionID(ctx)}
	return i.invoke(ctx, call, func(ctx context.Context) router.Result {
		return m.Node.Action(ctx, args)
	})
}

func (i *Invoker) invoke(ctx context.Context, call *Call, fn Next) router.Result {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	next := i.guard(call, fn)
	for j := len(i.middleware) - 1; j >= 0; j-- {
		mw, inner := i.middleware[j], next
		next = func(ctx context.Context) router.Result {
			return mw.Handle(ctx, call, inner)
		}
	}
	return next(ctx)
}

// guard recovers panics from user code into raw failures.
func (i *Invoker) guard(call *Call, fn Next) Next {
	return func(ctx context.Context) (res router.Result) {
		defer func() {
			if r := recover(); r != nil {
				i.logger.Error("route function panicked",
					"kind", call.Kind,
					"route", call.RouteID(),
					"panic", r,
					"stack", string(debug.Stack()))
				res = router.Error(fmt.Errorf("invoke: %s %q panicked: %v", call.Kind, call.RouteID(), r))
			}
		}()
		return fn(ctx)
	}
}
