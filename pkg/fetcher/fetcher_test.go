package fetcher_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/routedata/pkg/deferred"
	"github.com/vango-dev/routedata/pkg/fetcher"
	"github.com/vango-dev/routedata/pkg/navigation"
	"github.com/vango-dev/routedata/pkg/router"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

type fixture struct {
	nav        *navigation.Navigator
	mu         sync.Mutex
	pageLoads  int
	signupGate chan struct{}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	tree := router.MustNew(router.Route{
		ID: "root", Path: "/",
		Loader: func(ctx context.Context, args router.LoaderArgs) router.Result {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.pageLoads++
			return router.Data(f.pageLoads)
		},
		Children: []router.Route{
			{ID: "events", Path: "events"},
			{ID: "newsletter", Path: "newsletter",
				Action: func(ctx context.Context, args router.ActionArgs) router.Result {
					f.mu.Lock()
					gate := f.signupGate
					f.mu.Unlock()
					if gate != nil {
						select {
						case <-gate:
						case <-ctx.Done():
							return router.Error(ctx.Err())
						}
					}
					email := args.FormValue("email")
					switch {
					case email == "redirect":
						return router.Redirect("/events")
					case !strings.Contains(email, "@"):
						return router.Fail(422, map[string]any{"errors": map[string]string{"email": "Invalid email."}})
					case email == "down@x":
						return router.Fail(500, "down")
					}
					return router.Data(map[string]any{"message": "Signup successful!"})
				}},
			{ID: "search", Path: "search", Loader: func(ctx context.Context, args router.LoaderArgs) router.Result {
				return router.Data("results for " + args.URL.Query().Get("q"))
			}},
		},
	})
	f.nav = navigation.New(tree)
	t.Cleanup(f.nav.Close)

	if _, err := f.nav.Navigate("/events").Wait(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	return f
}

func signup(email string) router.Submission {
	return router.Submission{Action: "/newsletter", Form: url.Values{"email": {email}}}
}

func TestSubmitUpdatesOnlyHandle(t *testing.T) {
	fx := newFixture(t)
	before := fx.nav.Snapshot()

	var navStates []navigation.State
	var mu sync.Mutex
	fx.nav.Subscribe(func(s navigation.Snapshot) {
		mu.Lock()
		navStates = append(navStates, s.State)
		mu.Unlock()
	})

	f := fx.nav.Fetchers().Get("newsletter")
	f.Submit(signup("a@b.c"))
	snap, err := f.Wait(waitCtx(t))
	if err != nil {
		t.Fatal(err)
	}
	if snap.State != fetcher.Idle || snap.Err != nil {
		t.Errorf("fetcher = %+v", snap)
	}
	if msg := snap.Data.(map[string]any)["message"]; msg != "Signup successful!" {
		t.Errorf("Data = %v", snap.Data)
	}

	after := fx.nav.Snapshot()
	if after.Location != before.Location || after.State != navigation.Idle {
		t.Errorf("navigation moved: %s %s", after.Location, after.State)
	}
	if len(after.ActionData) != 0 {
		t.Errorf("navigation ActionData = %v", after.ActionData)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, s := range navStates {
		if s != navigation.Idle {
			t.Errorf("navigation state %s published during fetcher submit", s)
		}
	}
}

func TestSubmitSuccessRevalidatesHost(t *testing.T) {
	fx := newFixture(t)

	revalidated := make(chan struct{})
	var once sync.Once
	fx.nav.Subscribe(func(s navigation.Snapshot) {
		if s.Revalidation == navigation.Idle && s.RouteData("root") == 2 {
			once.Do(func() { close(revalidated) })
		}
	})

	f := fx.nav.Fetchers().Get("newsletter")
	f.Submit(signup("a@b.c"))
	select {
	case <-revalidated:
	case <-time.After(2 * time.Second):
		t.Fatal("host was not revalidated after a successful submit")
	}
}

func TestValidationBecomesData(t *testing.T) {
	fx := newFixture(t)
	f := fx.nav.Fetchers().Get("newsletter")
	f.Submit(signup("nope"))
	snap, _ := f.Wait(waitCtx(t))

	errs := snap.Data.(map[string]any)["errors"].(map[string]string)
	if errs["email"] == "" || snap.Err != nil {
		t.Errorf("snapshot = %+v", snap)
	}

	fx.mu.Lock()
	defer fx.mu.Unlock()
	if fx.pageLoads != 1 {
		t.Errorf("page loaded %d times, want 1 (no revalidation on validation failure)", fx.pageLoads)
	}
}

func TestFatalBecomesErr(t *testing.T) {
	fx := newFixture(t)
	f := fx.nav.Fetchers().Get("newsletter")
	f.Submit(signup("down@x"))
	snap, _ := f.Wait(waitCtx(t))
	if se, ok := router.AsStatus(snap.Err); !ok || se.Status != 500 {
		t.Errorf("Err = %v", snap.Err)
	}
	if len(fx.nav.Snapshot().Errors) != 0 {
		t.Error("fetcher failure leaked into navigation errors")
	}
}

func TestRedirectIsRecordedNotFollowed(t *testing.T) {
	fx := newFixture(t)
	f := fx.nav.Fetchers().Get("newsletter")
	f.Submit(signup("redirect"))
	snap, _ := f.Wait(waitCtx(t))
	if snap.Redirect != "/events" {
		t.Errorf("Redirect = %q", snap.Redirect)
	}
	if fx.nav.Snapshot().Location.Path != "/events" {
		t.Errorf("navigation location = %s", fx.nav.Snapshot().Location)
	}
}

func TestLoadRelativeHref(t *testing.T) {
	fx := newFixture(t)
	f := fx.nav.Fetchers().Get("search")
	f.Load("/search?q=go")
	snap, _ := f.Wait(waitCtx(t))
	if snap.Data != "results for go" {
		t.Errorf("Data = %v", snap.Data)
	}

	f.Load("/events")
	snap, _ = f.Wait(waitCtx(t))
	if se, ok := router.AsStatus(snap.Err); !ok || se.Status != 405 {
		t.Errorf("Err = %v, want 405 for a route without loader", snap.Err)
	}

	f.Load("/missing")
	snap, _ = f.Wait(waitCtx(t))
	if se, ok := router.AsStatus(snap.Err); !ok || se.Status != 404 {
		t.Errorf("Err = %v, want 404", snap.Err)
	}
}

func TestNewOperationSupersedesOnlyItsHandle(t *testing.T) {
	fx := newFixture(t)
	gate := make(chan struct{})
	fx.mu.Lock()
	fx.signupGate = gate
	fx.mu.Unlock()

	a := fx.nav.Fetchers().Get("a")
	b := fx.nav.Fetchers().Get("b")

	a.Submit(signup("first@x"))
	b.Submit(signup("other@x"))
	a.Submit(signup("nope"))

	if a.State() != fetcher.Submitting {
		t.Errorf("a.State = %s", a.State())
	}
	close(gate)

	snapA, _ := a.Wait(waitCtx(t))
	snapB, _ := b.Wait(waitCtx(t))

	// The first submission on a was superseded; only the validation
	// failure of the second lands.
	if _, ok := snapA.Data.(map[string]any)["errors"]; !ok {
		t.Errorf("a.Data = %v", snapA.Data)
	}
	if msg := snapB.Data.(map[string]any)["message"]; msg != "Signup successful!" {
		t.Errorf("b.Data = %v", snapB.Data)
	}
}

func TestCloseDropsLateResults(t *testing.T) {
	fx := newFixture(t)
	gate := make(chan struct{})
	fx.mu.Lock()
	fx.signupGate = gate
	fx.mu.Unlock()

	m := fx.nav.Fetchers()
	f := m.Get("newsletter")
	f.Submit(signup("a@b.c"))
	f.Close()
	close(gate)

	if _, err := f.Wait(waitCtx(t)); !errors.Is(err, fetcher.ErrClosed) {
		t.Errorf("Wait = %v, want ErrClosed", err)
	}
	if _, ok := m.Lookup("newsletter"); ok {
		t.Error("closed handle still registered")
	}
	if m.Get("newsletter") == f {
		t.Error("Get after Close returned the closed handle")
	}
	if f.Data() != nil {
		t.Errorf("closed handle received data: %v", f.Data())
	}
}

func TestManagerKeysAndSubscribe(t *testing.T) {
	fx := newFixture(t)
	m := fx.nav.Fetchers()

	seen := make(chan fetcher.Snapshot, 16)
	unsubscribe := m.Subscribe(func(s fetcher.Snapshot) { seen <- s })
	defer unsubscribe()

	m.Get("b")
	f := m.Get("a")
	if keys := m.Keys(); len(keys) != 2 || keys[0] != "a" {
		t.Errorf("Keys = %v", keys)
	}

	f.Load("/search?q=x")
	f.Wait(waitCtx(t))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-seen:
			if s.Key == "a" && s.State == fetcher.Idle && s.Data == "results for x" {
				return
			}
		case <-deadline:
			t.Fatal("manager subscriber never saw the settled handle")
		}
	}
}

func deferredTree(gate chan struct{}, fail error) *router.Tree {
	return router.MustNew(router.Route{
		ID: "root", Path: "/",
		Children: []router.Route{
			{ID: "feed", Path: "feed", Loader: func(ctx context.Context, args router.LoaderArgs) router.Result {
				b := deferred.New()
				b.Set("title", "Feed")
				b.Defer(ctx, "events", func(ctx context.Context) (any, error) {
					select {
					case <-gate:
					case <-ctx.Done():
						return nil, ctx.Err()
					}
					if fail != nil {
						return nil, fail
					}
					return []string{"a", "b"}, nil
				})
				return router.Data(b)
			}},
		},
	})
}

func TestDeferredCellSettlementNotifiesHandle(t *testing.T) {
	gate := make(chan struct{})
	nav := navigation.New(deferredTree(gate, nil))
	t.Cleanup(nav.Close)

	resolved := make(chan fetcher.Snapshot, 1)
	var all []string
	var mu sync.Mutex
	nav.Fetchers().Subscribe(func(s fetcher.Snapshot) {
		b, ok := s.Data.(*deferred.Bundle)
		if !ok {
			return
		}
		c, _ := b.Cell("events")
		mu.Lock()
		all = append(all, c.State().String())
		mu.Unlock()
		if c.State() == deferred.Resolved {
			select {
			case resolved <- s:
			default:
			}
		}
	})

	f := nav.Fetchers().Get("feed")
	f.Load("/feed")
	snap, err := f.Wait(waitCtx(t))
	if err != nil {
		t.Fatal(err)
	}
	b := snap.Data.(*deferred.Bundle)
	if c, _ := b.Cell("events"); c.State() != deferred.Pending {
		t.Fatalf("events = %s, want pending", c.State())
	}

	close(gate)
	select {
	case s := <-resolved:
		if v, _ := deferred.Value[[]string](s.Data.(*deferred.Bundle), "events"); len(v) != 2 {
			t.Errorf("events = %v, want [a b]", v)
		}
	case <-time.After(3 * time.Second):
		mu.Lock()
		defer mu.Unlock()
		t.Fatalf("no notification after the cell resolved, saw %v", all)
	}
	if b.Discarded() {
		t.Error("held bundle was discarded")
	}
}

func TestReplacedBundleStopsNotifying(t *testing.T) {
	gate := make(chan struct{})
	nav := navigation.New(deferredTree(gate, nil))
	t.Cleanup(nav.Close)

	f := nav.Fetchers().Get("feed")
	f.Load("/feed")
	first, err := f.Wait(waitCtx(t))
	if err != nil {
		t.Fatal(err)
	}
	f.Load("/feed")
	if _, err := f.Wait(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	if !first.Data.(*deferred.Bundle).Discarded() {
		t.Error("replaced bundle was not discarded")
	}

	var mu sync.Mutex
	var stale int
	f.Subscribe(func(s fetcher.Snapshot) {
		if s.Data == first.Data {
			mu.Lock()
			stale++
			mu.Unlock()
		}
	})
	close(gate)
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if stale != 0 {
		t.Errorf("%d notifications carried the replaced bundle", stale)
	}
}

func TestUnhandledRejectionBecomesErr(t *testing.T) {
	gate := make(chan struct{})
	close(gate)
	boom := errors.New("events unavailable")
	nav := navigation.New(deferredTree(gate, boom))
	t.Cleanup(nav.Close)

	f := nav.Fetchers().Get("feed")
	f.Load("/feed")
	snap, err := f.Wait(waitCtx(t))
	if err != nil {
		t.Fatal(err)
	}
	c, _ := snap.Data.(*deferred.Bundle).Cell("events")
	if _, err := c.Await(waitCtx(t)); !errors.Is(err, boom) {
		t.Fatalf("Await = %v, want %v", err, boom)
	}

	deferred.Match(c, deferred.OnResolved(func(v any) string { return "ok" }))
	if err := f.Err(); !errors.Is(err, boom) {
		t.Errorf("Err = %v, want %v", err, boom)
	}
}

func TestNavigatorCloseReleasesWaiters(t *testing.T) {
	fx := newFixture(t)
	gate := make(chan struct{})
	fx.mu.Lock()
	fx.signupGate = gate
	fx.mu.Unlock()

	f := fx.nav.Fetchers().Get("newsletter")
	f.Submit(signup("a@b.c"))

	ctx := waitCtx(t)
	waited := make(chan error, 1)
	go func() {
		_, err := f.Wait(ctx)
		waited <- err
	}()
	fx.nav.Close()
	close(gate)

	select {
	case err := <-waited:
		if !errors.Is(err, fetcher.ErrClosed) {
			t.Errorf("Wait = %v, want ErrClosed", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Wait still blocked after the navigator closed")
	}
}
