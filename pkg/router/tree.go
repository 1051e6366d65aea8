package router

import (
	"fmt"
	"strconv"
	"strings"

	rderrors "github.com/vango-dev/routedata/internal/errors"
)

// segmentKind ranks how specifically a pattern segment matched.
// Higher is more specific.
type segmentKind int

const (
	kindWildcard segmentKind = iota + 1
	kindDynamic
	kindStatic
)

type segment struct {
	kind  segmentKind
	value string // literal for static, param name for dynamic
}

// Node is one immutable route in a built Tree.
type Node struct {
	// ID is unique across the tree.
	ID string

	// Path is the route's own pattern, relative to its parent.
	Path string

	// Pattern is the full pattern from the root, e.g. "/events/:eventId".
	Pattern string

	Index bool

	Loader       LoaderFunc
	Action       ActionFunc
	ErrorHandler ErrorHandler

	Parent   *Node
	Children []*Node

	// Depth is 0 for top-level routes.
	Depth int

	segments []segment
	order    int
}

// ParentID returns the parent's id, or "" for top-level routes.
func (n *Node) ParentID() string {
	if n.Parent == nil {
		return ""
	}
	return n.Parent.ID
}

// HasLoader reports whether the route declares a loader.
func (n *Node) HasLoader() bool { return n.Loader != nil }

// HasAction reports whether the route declares an action.
func (n *Node) HasAction() bool { return n.Action != nil }

// HasErrorHandler reports whether the route is an error boundary.
func (n *Node) HasErrorHandler() bool { return n.ErrorHandler != nil }

// Tree is an immutable route tree.
type Tree struct {
	roots []*Node
	byID  map[string]*Node
	count int
}

// New builds and validates a tree from route declarations.
//
// Validation fails with an *errors.Error (codes E201, E202, E206) for
// duplicate ids, index routes with children, and malformed patterns.
func New(routes ...Route) (*Tree, error) {
	t := &Tree{byID: make(map[string]*Node)}
	for i, r := range routes {
		n, err := t.build(r, nil, strconv.Itoa(i), fmt.Sprintf("routes[%d]", i))
		if err != nil {
			return nil, err
		}
		t.roots = append(t.roots, n)
	}
	return t, nil
}

// MustNew is like New but panics on error. For static declarations.
func MustNew(routes ...Route) *Tree {
	t, err := New(routes...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tree) build(r Route, parent *Node, position, declPath string) (*Node, error) {
	n := &Node{
		ID:           r.ID,
		Path:         r.Path,
		Index:        r.Index,
		Loader:       r.Loader,
		Action:       r.Action,
		ErrorHandler: r.ErrorHandler,
		Parent:       parent,
		order:        t.count,
	}
	t.count++

	if n.ID == "" {
		n.ID = position
	}
	if _, dup := t.byID[n.ID]; dup {
		return nil, rderrors.New("E201").
			WithDetail(fmt.Sprintf("route id %q is declared twice", n.ID)).
			WithPath(declPath)
	}
	if r.Index && len(r.Children) > 0 {
		return nil, rderrors.New("E202").
			WithDetail(fmt.Sprintf("index route %q declares %d children", n.ID, len(r.Children))).
			WithPath(declPath)
	}

	segs, err := parsePattern(r.Path)
	if err != nil {
		return nil, rderrors.New("E206").WithDetail(err.Error()).WithPath(declPath)
	}
	if len(segs) > 0 && segs[len(segs)-1].kind == kindWildcard && len(r.Children) > 0 {
		return nil, rderrors.New("E206").
			WithDetail(fmt.Sprintf("wildcard route %q cannot have children", n.ID)).
			WithPath(declPath)
	}
	n.segments = segs

	if parent != nil {
		n.Depth = parent.Depth + 1
		n.Pattern = joinPattern(parent.Pattern, r.Path)
	} else {
		n.Pattern = joinPattern("", r.Path)
	}

	t.byID[n.ID] = n

	for i, child := range r.Children {
		c, err := t.build(child, n, position+"-"+strconv.Itoa(i), fmt.Sprintf("%s.children[%d]", declPath, i))
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, c)
	}
	return n, nil
}

// Node looks a route up by id.
func (t *Tree) Node(id string) (*Node, bool) {
	n, ok := t.byID[id]
	return n, ok
}

// Roots returns the top-level routes in declaration order.
func (t *Tree) Roots() []*Node {
	return t.roots
}

// Len returns the number of routes in the tree.
func (t *Tree) Len() int {
	return len(t.byID)
}

// Walk visits every route depth-first in declaration order. Returning
// false from fn skips that route's children.
func (t *Tree) Walk(fn func(n *Node) bool) {
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			if fn(n) {
				walk(n.Children)
			}
		}
	}
	walk(t.roots)
}

// String renders the tree one route per line, for the CLI.
func (t *Tree) String() string {
	var b strings.Builder
	t.Walk(func(n *Node) bool {
		b.WriteString(strings.Repeat("  ", n.Depth))
		label := n.Path
		if n.Index {
			label = "(index)"
		} else if label == "" {
			label = "(layout)"
		}
		fmt.Fprintf(&b, "%s [%s] %s", label, n.ID, n.Pattern)
		var caps []string
		if n.HasLoader() {
			caps = append(caps, "loader")
		}
		if n.HasAction() {
			caps = append(caps, "action")
		}
		if n.HasErrorHandler() {
			caps = append(caps, "errorHandler")
		}
		if len(caps) > 0 {
			b.WriteString(" {" + strings.Join(caps, ", ") + "}")
		}
		b.WriteString("\n")
		return true
	})
	return b.String()
}

// parsePattern splits a relative pattern into typed segments.
func parsePattern(path string) ([]segment, error) {
	parts := splitPath(path)
	segs := make([]segment, 0, len(parts))
	for i, p := range parts {
		switch {
		case p == "*":
			if i != len(parts)-1 {
				return nil, fmt.Errorf("wildcard must be the last segment in %q", path)
			}
			segs = append(segs, segment{kind: kindWildcard, value: "*"})
		case strings.HasPrefix(p, ":"):
			name := p[1:]
			if name == "" {
				return nil, fmt.Errorf("empty param name in %q", path)
			}
			segs = append(segs, segment{kind: kindDynamic, value: name})
		case strings.ContainsAny(p, ":*"):
			return nil, fmt.Errorf("segment %q mixes literal text with : or *", p)
		default:
			segs = append(segs, segment{kind: kindStatic, value: p})
		}
	}
	return segs, nil
}

// splitPath splits a path into segments.
func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func joinPattern(parent, child string) string {
	parts := append(splitPath(parent), splitPath(child)...)
	return "/" + strings.Join(parts, "/")
}
