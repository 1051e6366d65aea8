package invoke

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vango-dev/routedata/pkg/router"
)

func leaf(t *testing.T, tree *router.Tree, path string) router.Match {
	t.Helper()
	chain, ok := tree.Match(path)
	if !ok {
		t.Fatalf("no match for %s", path)
	}
	return chain.Leaf()
}

func TestLoadPassesArgs(t *testing.T) {
	var got router.LoaderArgs
	tree := router.MustNew(router.Route{ID: "detail", Path: "events/:eventId", Loader: func(ctx context.Context, args router.LoaderArgs) router.Result {
		got = args
		return router.Data("ok")
	}})

	u := &url.URL{Path: "/events/e1", RawQuery: "tab=info"}
	res := New().Load(context.Background(), leaf(t, tree, "/events/e1"), u)
	if !res.IsData() || res.Value() != "ok" {
		t.Errorf("Load = %v", res)
	}
	if got.RouteID != "detail" || got.Params["eventId"] != "e1" || got.URL.Query().Get("tab") != "info" {
		t.Errorf("args = %+v", got)
	}
}

func TestLoadWithoutLoader(t *testing.T) {
	tree := router.MustNew(router.Route{ID: "plain", Path: "p"})
	res := New().Load(context.Background(), leaf(t, tree, "/p"), &url.URL{Path: "/p"})
	if !res.IsData() || res.Value() != nil {
		t.Errorf("Load = %v, want Data(nil)", res)
	}
}

func TestActWithoutAction(t *testing.T) {
	tree := router.MustNew(router.Route{ID: "plain", Path: "p"})
	res := New().Act(context.Background(), leaf(t, tree, "/p"), &url.URL{Path: "/p"}, router.Submission{})
	se, ok := router.AsStatus(res.Err())
	if !ok || se.Status != 405 {
		t.Errorf("Act = %v, want 405", res)
	}
}

func TestActPassesSubmission(t *testing.T) {
	tree := router.MustNew(router.Route{ID: "edit", Path: "events/:eventId/edit", Action: func(ctx context.Context, args router.ActionArgs) router.Result {
		return router.Data(args.Method + " " + args.Params["eventId"] + " " + args.FormValue("title"))
	}})
	sub := router.Submission{Method: "patch", Form: url.Values{"title": {"T"}}}
	res := New().Act(context.Background(), leaf(t, tree, "/events/e1/edit"), &url.URL{Path: "/events/e1/edit"}, sub)
	if res.Value() != "PATCH e1 T" {
		t.Errorf("Act = %v", res)
	}
}

func TestPanicRecovered(t *testing.T) {
	tree := router.MustNew(router.Route{ID: "p", Path: "p", Loader: func(ctx context.Context, args router.LoaderArgs) router.Result {
		panic("kaboom")
	}})
	res := New().Load(context.Background(), leaf(t, tree, "/p"), &url.URL{Path: "/p"})
	if !res.IsFailure() {
		t.Fatalf("Load = %v, want failure", res)
	}
	if _, ok := router.AsStatus(res.Err()); ok {
		t.Error("panic should be a raw failure")
	}
	if !strings.Contains(res.Err().Error(), "kaboom") {
		t.Errorf("err = %v", res.Err())
	}
}

func TestTimeout(t *testing.T) {
	tree := router.MustNew(router.Route{ID: "slow", Path: "slow", Loader: func(ctx context.Context, args router.LoaderArgs) router.Result {
		<-ctx.Done()
		return router.Error(ctx.Err())
	}})
	res := New(WithTimeout(10*time.Millisecond)).Load(context.Background(), leaf(t, tree, "/slow"), &url.URL{Path: "/slow"})
	if !errors.Is(res.Err(), context.DeadlineExceeded) {
		t.Errorf("Load = %v, want deadline exceeded", res)
	}
}

func TestMiddlewareOrder(t *testing.T) {
	var trace []string
	record := func(name string) Middleware {
		return MiddlewareFunc(func(ctx context.Context, call *Call, next Next) router.Result {
			trace = append(trace, name+">"+string(call.Kind)+":"+call.RouteID()+":"+call.TransitionID)
			res := next(ctx)
			trace = append(trace, "<"+name)
			return res
		})
	}
	tree := router.MustNew(router.Route{ID: "r", Path: "r", Loader: func(ctx context.Context, args router.LoaderArgs) router.Result {
		trace = append(trace, "loader")
		return router.Data(nil)
	}})

	inv := New(WithMiddleware(record("a"), record("b")))
	ctx := WithTransitionID(context.Background(), "T1")
	inv.Load(ctx, leaf(t, tree, "/r"), &url.URL{Path: "/r"})

	want := "a>loader:r:T1,b>loader:r:T1,loader,<b,<a"
	if got := strings.Join(trace, ","); got != want {
		t.Errorf("trace = %s, want %s", got, want)
	}
}

func TestMiddlewareCanShortCircuit(t *testing.T) {
	var called int32
	tree := router.MustNew(router.Route{ID: "r", Path: "r", Loader: func(ctx context.Context, args router.LoaderArgs) router.Result {
		atomic.AddInt32(&called, 1)
		return router.Data(nil)
	}})
	deny := MiddlewareFunc(func(ctx context.Context, call *Call, next Next) router.Result {
		return router.Fail(403, "forbidden")
	})
	res := New(WithMiddleware(deny)).Load(context.Background(), leaf(t, tree, "/r"), &url.URL{Path: "/r"})
	if se, ok := router.AsStatus(res.Err()); !ok || se.Status != 403 {
		t.Errorf("Load = %v", res)
	}
	if atomic.LoadInt32(&called) != 0 {
		t.Error("loader ran despite short-circuit")
	}
}
