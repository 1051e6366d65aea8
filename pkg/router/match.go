package router

import (
	"strings"

	"github.com/vango-dev/routedata/pkg/routepath"
)

// Match pairs a route with the params captured up to and including it.
type Match struct {
	Node   *Node
	Params Params
}

// MatchChain is the ordered list of matched routes, root first.
type MatchChain []Match

// Leaf returns the deepest match. The chain must not be empty.
func (c MatchChain) Leaf() Match {
	return c[len(c)-1]
}

// IDs returns the route ids in chain order.
func (c MatchChain) IDs() []string {
	ids := make([]string, len(c))
	for i, m := range c {
		ids[i] = m.Node.ID
	}
	return ids
}

// IndexOf returns the position of the route with the given id, or -1.
func (c MatchChain) IndexOf(id string) int {
	for i, m := range c {
		if m.Node.ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether the chain includes route id.
func (c MatchChain) Contains(id string) bool {
	return c.IndexOf(id) >= 0
}

// Boundary returns the position of the nearest route at or above i that
// declares an error handler. When none does, the failure belongs to the
// root of the chain (position 0).
func (c MatchChain) Boundary(i int) int {
	if i >= len(c) {
		i = len(c) - 1
	}
	for j := i; j >= 0; j-- {
		if c[j].Node.HasErrorHandler() {
			return j
		}
	}
	return 0
}

// candidate is one root-to-node branch that consumed the whole path.
type candidate struct {
	chain     MatchChain
	kinds     []segmentKind
	wildcards int
}

// better reports whether a ranks above b.
func (a *candidate) better(b *candidate) bool {
	for i := 0; i < len(a.kinds) && i < len(b.kinds); i++ {
		if a.kinds[i] != b.kinds[i] {
			return a.kinds[i] > b.kinds[i]
		}
	}
	if len(a.kinds) != len(b.kinds) {
		return len(a.kinds) > len(b.kinds)
	}
	if a.wildcards != b.wildcards {
		return a.wildcards < b.wildcards
	}
	if len(a.chain) != len(b.chain) {
		return len(a.chain) > len(b.chain)
	}
	al, bl := a.chain.Leaf().Node, b.chain.Leaf().Node
	if al.Index != bl.Index {
		return al.Index
	}
	return al.order < bl.order
}

// Match resolves path to the best-ranked chain. The path may carry a query
// string, which is ignored. It returns false when nothing matches or the
// path cannot be canonicalized.
func (t *Tree) Match(path string) (MatchChain, bool) {
	loc, err := routepath.Parse(path)
	if err != nil {
		return nil, false
	}
	segs, err := routepath.Segments(loc.Path)
	if err != nil {
		return nil, false
	}

	var best *candidate
	m := matcher{segs: segs}
	m.visit(t.roots, 0, nil, nil, Params{}, 0, func(c *candidate) {
		if best == nil || c.better(best) {
			best = c
		}
	})
	if best == nil {
		return nil, false
	}
	return best.chain, true
}

// NotFoundChain is the chain used to render a not-found failure: the first
// top-level route alone, so the failure lands on its error boundary.
func (t *Tree) NotFoundChain() MatchChain {
	if len(t.roots) == 0 {
		return nil
	}
	return MatchChain{{Node: t.roots[0], Params: Params{}}}
}

type matcher struct {
	segs []string
}

func (m *matcher) visit(nodes []*Node, pos int, chain MatchChain, kinds []segmentKind, params Params, wildcards int, emit func(*candidate)) {
	for _, n := range nodes {
		p := params.clone()
		k := append([]segmentKind(nil), kinds...)
		next, w, ok := m.consume(n, pos, p, &k)
		if !ok {
			continue
		}
		c := append(append(MatchChain(nil), chain...), Match{Node: n, Params: p})

		if next == len(m.segs) {
			emit(&candidate{chain: c, kinds: k, wildcards: wildcards + w})
		}
		if !n.Index {
			m.visit(n.Children, next, c, k, p, wildcards+w, emit)
		}
	}
}

// consume matches n's own segments starting at pos. Index routes consume
// nothing and only succeed on an empty remainder.
func (m *matcher) consume(n *Node, pos int, params Params, kinds *[]segmentKind) (int, int, bool) {
	if n.Index {
		return pos, 0, pos == len(m.segs)
	}
	wildcards := 0
	for _, s := range n.segments {
		switch s.kind {
		case kindStatic:
			if pos >= len(m.segs) || !strings.EqualFold(m.segs[pos], s.value) {
				return 0, 0, false
			}
			*kinds = append(*kinds, kindStatic)
			pos++
		case kindDynamic:
			if pos >= len(m.segs) || m.segs[pos] == "" {
				return 0, 0, false
			}
			params[s.value] = m.segs[pos]
			*kinds = append(*kinds, kindDynamic)
			pos++
		case kindWildcard:
			params["*"] = strings.Join(m.segs[pos:], "/")
			for ; pos < len(m.segs); pos++ {
				*kinds = append(*kinds, kindWildcard)
			}
			wildcards++
		}
	}
	return pos, wildcards, true
}
