package router

import (
	"strings"
	"testing"
)

// eventsTree mirrors the shape of the events application.
func eventsTree() *Tree {
	return MustNew(Route{
		ID:           "root",
		Path:         "/",
		ErrorHandler: noopHandler,
		Children: []Route{
			{ID: "home", Index: true},
			{ID: "events-root", Path: "events", Children: []Route{
				{ID: "events", Index: true, Loader: noopLoader},
				{ID: "event-detail", Path: ":eventId", Loader: noopLoader, Children: []Route{
					{ID: "event-view", Index: true, Action: noopAction},
					{ID: "event-edit", Path: "edit", Action: noopAction},
				}},
				{ID: "event-new", Path: "new", Action: noopAction},
			}},
			{ID: "newsletter", Path: "newsletter", Action: noopAction},
			{ID: "files", Path: "files/*"},
			{ID: "file-readme", Path: "files/readme"},
		},
	})
}

func TestMatchChains(t *testing.T) {
	tree := eventsTree()

	tests := []struct {
		path   string
		chain  string
		params map[string]string
	}{
		{"/", "root,home", nil},
		{"/events", "root,events-root,events", nil},
		{"/events/", "root,events-root,events", nil},
		{"/EVENTS", "root,events-root,events", nil},
		{"/events/e1", "root,events-root,event-detail,event-view", map[string]string{"eventId": "e1"}},
		{"/events/e1/edit", "root,events-root,event-detail,event-edit", map[string]string{"eventId": "e1"}},
		{"/events/new", "root,events-root,event-new", nil},
		{"/newsletter?x=1", "root,newsletter", nil},
		{"/files/readme", "root,file-readme", nil},
		{"/files/a/b/c", "root,files", map[string]string{"*": "a/b/c"}},
		{"/files", "root,files", map[string]string{"*": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			chain, ok := tree.Match(tt.path)
			if !ok {
				t.Fatalf("Match(%q) found nothing", tt.path)
			}
			if got := strings.Join(chain.IDs(), ","); got != tt.chain {
				t.Errorf("chain = %s, want %s", got, tt.chain)
			}
			for k, want := range tt.params {
				if got := chain.Leaf().Params[k]; got != want {
					t.Errorf("Params[%q] = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestMatchNoMatch(t *testing.T) {
	tree := eventsTree()
	for _, path := range []string{"/nope", "/events/e1/edit/more", "/../x", "/newsletter/extra"} {
		if chain, ok := tree.Match(path); ok {
			t.Errorf("Match(%q) = %v, want no match", path, chain.IDs())
		}
	}
}

func TestMatchStaticBeatsDynamicRegardlessOfOrder(t *testing.T) {
	tree := MustNew(Route{Path: "/", ID: "root", Children: []Route{
		{ID: "dyn", Path: ":slug"},
		{ID: "wild", Path: "*"},
		{ID: "static", Path: "about"},
	}})

	tests := []struct {
		path string
		leaf string
	}{
		{"/about", "static"},
		{"/contact", "dyn"},
		{"/a/b", "wild"},
	}
	for _, tt := range tests {
		chain, ok := tree.Match(tt.path)
		if !ok {
			t.Fatalf("Match(%q) found nothing", tt.path)
		}
		if got := chain.Leaf().Node.ID; got != tt.leaf {
			t.Errorf("Match(%q) leaf = %s, want %s", tt.path, got, tt.leaf)
		}
	}
}

func TestMatchLeftToRightSpecificity(t *testing.T) {
	tree := MustNew(
		Route{ID: "a", Path: "users/:id/profile"},
		Route{ID: "b", Path: ":section/new/:id"},
	)
	chain, ok := tree.Match("/users/new/profile")
	if !ok {
		t.Fatal("no match")
	}
	// Both consume three segments; the first segment decides.
	if chain.Leaf().Node.ID != "a" {
		t.Errorf("leaf = %s, want a", chain.Leaf().Node.ID)
	}
}

func TestMatchPathlessLayout(t *testing.T) {
	tree := MustNew(Route{ID: "root", Path: "/", Children: []Route{
		{ID: "auth-layout", Children: []Route{
			{ID: "login", Path: "login"},
		}},
	}})
	chain, ok := tree.Match("/login")
	if !ok {
		t.Fatal("no match")
	}
	if got := strings.Join(chain.IDs(), ","); got != "root,auth-layout,login" {
		t.Errorf("chain = %s", got)
	}
}

func TestMatchParamsAreCumulative(t *testing.T) {
	tree := MustNew(Route{ID: "org", Path: "orgs/:org", Children: []Route{
		{ID: "repo", Path: "repos/:repo"},
	}})
	chain, ok := tree.Match("/orgs/acme/repos/web")
	if !ok {
		t.Fatal("no match")
	}
	if chain[0].Params["repo"] != "" {
		t.Error("parent match must not see child params")
	}
	leaf := chain.Leaf().Params
	if leaf["org"] != "acme" || leaf["repo"] != "web" {
		t.Errorf("leaf params = %v", leaf)
	}
}

func TestBoundary(t *testing.T) {
	tree := MustNew(Route{ID: "root", Path: "/", Children: []Route{
		{ID: "section", Path: "s", ErrorHandler: noopHandler, Children: []Route{
			{ID: "page", Path: "p"},
		}},
	}})
	chain, _ := tree.Match("/s/p")

	if got := chain.Boundary(2); got != 1 {
		t.Errorf("Boundary(2) = %d, want 1", got)
	}
	if got := chain.Boundary(1); got != 1 {
		t.Errorf("Boundary(1) = %d, want 1 (inclusive)", got)
	}
	if got := chain.Boundary(0); got != 0 {
		t.Errorf("Boundary(0) = %d, want 0 (root fallback)", got)
	}
}

func TestNotFoundChain(t *testing.T) {
	tree := eventsTree()
	chain := tree.NotFoundChain()
	if len(chain) != 1 || chain[0].Node.ID != "root" {
		t.Errorf("NotFoundChain = %v, want [root]", chain.IDs())
	}

	empty := MustNew()
	if empty.NotFoundChain() != nil {
		t.Error("empty tree should have nil NotFoundChain")
	}
}
