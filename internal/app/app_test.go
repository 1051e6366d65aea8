package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/routedata/internal/backend"
	"github.com/vango-dev/routedata/pkg/deferred"
	"github.com/vango-dev/routedata/pkg/events"
	"github.com/vango-dev/routedata/pkg/navigation"
	"github.com/vango-dev/routedata/pkg/router"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func seed() []events.Event {
	return []events.Event{
		{ID: "e1", Title: "Launch party", Description: "Cake.", Image: "https://example.com/e1.png", Date: "2026-05-01"},
		{ID: "e2", Title: "Meetup", Description: "Talks.", Image: "https://example.com/e2.png", Date: "2026-06-12"},
	}
}

// newNavigator starts a backend behind h (or the plain backend when h is
// nil) and returns a navigator over the default declarations.
func newNavigator(t *testing.T, wrap func(http.Handler) http.Handler) *navigation.Navigator {
	t.Helper()
	var h http.Handler = backend.New(backend.NewMemoryStore(seed()...))
	if wrap != nil {
		h = wrap(h)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client, err := events.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	tree, err := New(client, nil).Tree(nil)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	nav := navigation.New(tree)
	t.Cleanup(nav.Close)
	return nav
}

func mustWait(t *testing.T, tr *navigation.Transition) navigation.Snapshot {
	t.Helper()
	snap, err := tr.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return snap
}

func awaitEvents(t *testing.T, snap navigation.Snapshot, routeID string) []events.Event {
	t.Helper()
	b, ok := snap.RouteData(routeID).(*deferred.Bundle)
	if !ok {
		t.Fatalf("RouteData(%s) = %T, want *deferred.Bundle", routeID, snap.RouteData(routeID))
	}
	c, ok := b.Cell(KeyEvents)
	if !ok {
		t.Fatalf("bundle has no %q cell", KeyEvents)
	}
	v, err := c.Await(waitCtx(t))
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	return v.([]events.Event)
}

func TestDefaultDeclarationsBuild(t *testing.T) {
	client, _ := events.NewClient("http://localhost:8080")
	tree, err := New(client, nil).Tree(nil)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	for _, id := range []string{RouteRoot, RouteHome, RouteEventsRoot, RouteEvents, RouteEventDetail, RouteEventView, RouteEventEdit, RouteEventNew, RouteNewsletter} {
		if _, ok := tree.Node(id); !ok {
			t.Errorf("missing route %q", id)
		}
	}

	tests := []struct {
		path string
		leaf string
	}{
		{"/", RouteHome},
		{"/events", RouteEvents},
		{"/events/new", RouteEventNew},
		{"/events/e1", RouteEventView},
		{"/events/e1/edit", RouteEventEdit},
		{"/newsletter", RouteNewsletter},
	}
	for _, tt := range tests {
		chain, ok := tree.Match(tt.path)
		if !ok {
			t.Errorf("Match(%q) failed", tt.path)
			continue
		}
		if got := chain.Leaf().Node.ID; got != tt.leaf {
			t.Errorf("Match(%q) leaf = %q, want %q", tt.path, got, tt.leaf)
		}
	}
}

func TestListDefersEvents(t *testing.T) {
	nav := newNavigator(t, nil)

	snap := mustWait(t, nav.Navigate("/events"))
	list := awaitEvents(t, snap, RouteEvents)
	if len(list) != 2 {
		t.Errorf("events = %+v", list)
	}
}

func TestDetailLoadsEventEagerly(t *testing.T) {
	nav := newNavigator(t, nil)

	snap := mustWait(t, nav.Navigate("/events/e2"))
	b := snap.RouteData(RouteEventDetail).(*deferred.Bundle)
	ev, ok := deferred.Value[events.Event](b, KeyEvent)
	if !ok || ev.Title != "Meetup" {
		t.Errorf("event = %+v, %v", ev, ok)
	}
	if list := awaitEvents(t, snap, RouteEventDetail); len(list) != 2 {
		t.Errorf("events = %+v", list)
	}
}

func eventForm(title string) url.Values {
	return url.Values{
		"title":       {title},
		"description": {"Bring friends."},
		"image":       {"https://example.com/new.png"},
		"date":        {"2026-09-09"},
	}
}

func TestCreateRedirectsAndListIncludesRecord(t *testing.T) {
	nav := newNavigator(t, nil)
	mustWait(t, nav.Navigate("/events/new"))

	snap := mustWait(t, nav.Submit(router.Submission{Method: http.MethodPost, Form: eventForm("Hackathon")}))
	if snap.Location.Path != "/events" {
		t.Fatalf("Location = %s, want /events", snap.Location)
	}
	if snap.State != navigation.Idle {
		t.Errorf("State = %s, want idle", snap.State)
	}
	found := false
	for _, ev := range awaitEvents(t, snap, RouteEvents) {
		if ev.Title == "Hackathon" {
			found = true
		}
	}
	if !found {
		t.Error("new event missing from the reloaded list")
	}
}

func TestMissingFieldIsValidation(t *testing.T) {
	nav := newNavigator(t, nil)
	mustWait(t, nav.Navigate("/events/new"))

	form := eventForm("")
	snap := mustWait(t, nav.Submit(router.Submission{Method: http.MethodPost, Form: form}))
	if snap.Location.Path != "/events/new" {
		t.Errorf("Location = %s, want /events/new", snap.Location)
	}
	payload, ok := snap.ActionResult(RouteEventNew).(map[string]any)
	if !ok {
		t.Fatalf("ActionData = %v", snap.ActionData)
	}
	errs, _ := payload["errors"].(map[string]string)
	if _, ok := errs["title"]; !ok {
		t.Errorf("errors = %v, want title", payload["errors"])
	}
	if len(snap.Errors) != 0 {
		t.Errorf("Errors = %v, want none", snap.Errors)
	}
}

func TestEditUsesPatch(t *testing.T) {
	nav := newNavigator(t, nil)
	mustWait(t, nav.Navigate("/events/e1/edit"))

	snap := mustWait(t, nav.Submit(router.Submission{Method: http.MethodPatch, Form: eventForm("Renamed")}))
	if snap.Location.Path != "/events" {
		t.Fatalf("Location = %s, want /events", snap.Location)
	}
	list := awaitEvents(t, snap, RouteEvents)
	if list[0].ID != "e1" || list[0].Title != "Renamed" {
		t.Errorf("events = %+v", list)
	}
}

func TestDeleteRedirects(t *testing.T) {
	nav := newNavigator(t, nil)
	mustWait(t, nav.Navigate("/events/e1"))

	snap := mustWait(t, nav.Submit(router.Submission{Method: http.MethodDelete}))
	if snap.Location.Path != "/events" {
		t.Fatalf("Location = %s, want /events", snap.Location)
	}
	if list := awaitEvents(t, snap, RouteEvents); len(list) != 1 || list[0].ID != "e2" {
		t.Errorf("events = %+v", list)
	}
}

func TestDetailFailureRendersRootBoundary(t *testing.T) {
	nav := newNavigator(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/events/e1" {
				http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	snap := mustWait(t, nav.Navigate("/events/e1"))
	view, ok := snap.Fallbacks[RouteRoot].(ErrorView)
	if !ok {
		t.Fatalf("Fallbacks = %v, want root ErrorView", snap.Fallbacks)
	}
	if view.Message != "Could not fetch details for selected event." {
		t.Errorf("Message = %q", view.Message)
	}
	if ids := snap.RenderMatches().IDs(); len(ids) != 1 || ids[0] != RouteRoot {
		t.Errorf("RenderMatches = %v, want [root]", ids)
	}
	if snap.RouteData(RouteEventDetail) != nil {
		t.Error("detail data committed despite failure")
	}

	var buf bytes.Buffer
	if err := Render(&buf, snap); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "Could not fetch details for selected event.") || strings.Contains(buf.String(), "Launch party") {
		t.Errorf("Render =\n%s", buf.String())
	}
}

func TestNewsletterFetcherLeavesNavigationIdle(t *testing.T) {
	nav := newNavigator(t, nil)
	before := mustWait(t, nav.Navigate("/events"))

	var mu sync.Mutex
	var states []navigation.State
	nav.Subscribe(func(s navigation.Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	f := nav.Fetchers().Get("newsletter")
	f.Submit(router.Submission{Action: "/newsletter", Method: http.MethodPost, Form: url.Values{"email": {"ada@example.com"}}})
	got, err := f.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	data, _ := got.Data.(map[string]any)
	if data["message"] != "Signup successful!" {
		t.Errorf("Data = %v", got.Data)
	}

	snap := nav.Snapshot()
	if snap.State != navigation.Idle || snap.Location != before.Location {
		t.Errorf("navigation = %s at %s, want idle at %s", snap.State, snap.Location, before.Location)
	}
	mu.Lock()
	for _, s := range states {
		if s != navigation.Idle {
			t.Errorf("navigation state went %s", s)
		}
	}
	mu.Unlock()

	f.Submit(router.Submission{Action: "/newsletter", Method: http.MethodPost, Form: url.Values{"email": {"nope"}}})
	got, err = f.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	payload, _ := got.Data.(map[string]any)
	errs, _ := payload["errors"].(map[string]string)
	if errs["email"] == "" {
		t.Errorf("Data = %v, want errors.email", got.Data)
	}
}

func TestErrorPage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorView
	}{
		{"500 uses message", &router.StatusError{Status: 500, Payload: map[string]any{"message": "Could not save event."}}, ErrorView{"An error occurred!", "Could not save event."}},
		{"404", router.NotFound("/x"), ErrorView{"Not found!", "Could not find resource or page."}},
		{"other status", &router.StatusError{Status: 418}, ErrorView{"An error occurred!", "Something went wrong!"}},
		{"raw error", context.DeadlineExceeded, ErrorView{"An error occurred!", "Something went wrong!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorPage(tt.err); got != tt.want {
				t.Errorf("ErrorPage = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRenderListStates(t *testing.T) {
	b := deferred.New()
	release := make(chan struct{})
	b.Defer(context.Background(), KeyEvents, func(ctx context.Context) (any, error) {
		<-release
		return seed(), nil
	})
	tree := router.MustNew(router.Route{ID: RouteEvents, Path: "/"})
	chain, _ := tree.Match("/")
	snap := navigation.Snapshot{Matches: chain, LoaderData: map[string]any{RouteEvents: b}}

	var buf bytes.Buffer
	Render(&buf, snap)
	if !strings.Contains(buf.String(), "Loading...") {
		t.Errorf("pending render =\n%s", buf.String())
	}

	close(release)
	c, _ := b.Cell(KeyEvents)
	c.Await(waitCtx(t))
	buf.Reset()
	Render(&buf, snap)
	if !strings.Contains(buf.String(), "- Meetup (2026-06-12) /events/e2") {
		t.Errorf("resolved render =\n%s", buf.String())
	}
}

func TestEventLinks(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"e1", "/events/e1"},
		{"a b", "/events/a%20b"},
		{"", "/events"},
	}
	for _, tt := range tests {
		if got := eventLink(tt.id); got != tt.want {
			t.Errorf("eventLink(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestEventIDFromParams(t *testing.T) {
	id, err := eventID(router.Params{"eventId": "e2"})
	if err != nil || id != "e2" {
		t.Errorf("eventID = %q, %v, want e2", id, err)
	}
	if _, err := eventID(router.Params{}); err == nil {
		t.Error("eventID without param succeeded")
	} else if se, ok := router.AsStatus(err); !ok || se.Status != 404 {
		t.Errorf("eventID error = %v, want 404", err)
	}
}
