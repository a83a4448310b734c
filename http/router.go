package http

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
)

const noNode = -1

// node is one trie vertex. Edges are indices into tree.nodes so the whole
// table is a flat slice.
type node struct {
	// literal edges, kept sorted by segment
	edges []edge
	// parameter edge, noNode when absent
	param     int32
	paramName string
	// routes per method, indices into tree.routes
	routes [methodCount]int32
	// allowed is a bit set of methods with a route here
	allowed uint32
}

type edge struct {
	segment string
	child   int32
}

type tree struct {
	nodes  []node
	routes []Route
	frozen atomic.Bool
}

func newTree() *tree {
	t := &tree{}
	t.newNode("")
	return t
}

func (t *tree) newNode(paramName string) int32 {
	n := node{param: noNode, paramName: paramName}
	for i := range n.routes {
		n.routes[i] = noNode
	}
	t.nodes = append(t.nodes, n)
	return int32(len(t.nodes) - 1)
}

func (t *tree) literal(idx int32, seg string) int32 {
	edges := t.nodes[idx].edges
	i, ok := slices.BinarySearchFunc(edges, seg, func(e edge, s string) int {
		return strings.Compare(e.segment, s)
	})
	if !ok {
		return noNode
	}
	return edges[i].child
}

func (t *tree) insert(method Method, pattern string, handler Handler) {
	if t.frozen.Load() {
		panic(fmt.Sprintf("http: route %s %s registered after serving began", method, pattern))
	}
	if !method.valid() {
		panic(fmt.Sprintf("http: invalid method for route %q", pattern))
	}
	if handler == nil {
		panic(fmt.Sprintf("http: nil handler for route %s %s", method, pattern))
	}

	idx := int32(0)
	for _, seg := range parsePattern(pattern) {
		if seg.isParam() {
			next := t.nodes[idx].param
			if next == noNode {
				next = t.newNode(seg.param)
				t.nodes[idx].param = next
			} else if name := t.nodes[next].paramName; name != seg.param {
				panic(fmt.Sprintf("http: invalid route %q: parameter {%s} conflicts with {%s} at the same position", pattern, seg.param, name))
			}
			idx = next
			continue
		}

		next := t.literal(idx, seg.literal)
		if next == noNode {
			next = t.newNode("")
			edges := t.nodes[idx].edges
			i, _ := slices.BinarySearchFunc(edges, seg.literal, func(e edge, s string) int {
				return strings.Compare(e.segment, s)
			})
			t.nodes[idx].edges = slices.Insert(edges, i, edge{segment: seg.literal, child: next})
		}
		idx = next
	}

	n := &t.nodes[idx]
	if n.routes[method] != noNode {
		panic(fmt.Sprintf("http: route %s %s registered twice", method, pattern))
	}
	t.routes = append(t.routes, Route{Method: method, Pattern: pattern, Handler: handler})
	n.routes[method] = int32(len(t.routes) - 1)
	n.allowed |= 1 << method
}

// match walks path depth first, trying the literal edge before the
// parameter edge at every node, and returns the first terminal accepted by
// ok. Params are appended in declaration order.
func (t *tree) match(idx int32, path string, done bool, params Params, ok func(*node) bool) (int32, Params) {
	if done {
		if ok(&t.nodes[idx]) {
			return idx, params
		}
		return noNode, params
	}

	seg, rest, more := strings.Cut(path, "/")
	if child := t.literal(idx, seg); child != noNode {
		if m, ps := t.match(child, rest, !more, params, ok); m != noNode {
			return m, ps
		}
	}
	if p := t.nodes[idx].param; p != noNode && seg != "" {
		captured := append(params, Param{Name: t.nodes[p].paramName, Value: seg})
		if m, ps := t.match(p, rest, !more, captured, ok); m != noNode {
			return m, ps
		}
	}
	return noNode, params
}

// allowed unions the method sets of every terminal matching path.
func (t *tree) allowed(idx int32, path string, done bool) uint32 {
	if done {
		return t.nodes[idx].allowed
	}
	var set uint32
	seg, rest, more := strings.Cut(path, "/")
	if child := t.literal(idx, seg); child != noNode {
		set |= t.allowed(child, rest, !more)
	}
	if p := t.nodes[idx].param; p != noNode && seg != "" {
		set |= t.allowed(p, rest, !more)
	}
	return set
}

// Match is a successful lookup.
type Match struct {
	Handler Handler
	Pattern string
	Params  Params
}

// Router maps (method, path) to handlers. Routes are registered before
// serving and the table is read-only afterwards, so lookups take no locks.
type Router struct {
	tree       *tree
	prefix     string
	middleware []Middleware
}

func NewRouter() *Router {
	return &Router{tree: newTree()}
}

// Use adds middleware applied to routes registered after the call. The first
// middleware is the outermost.
func (router *Router) Use(middleware ...Middleware) {
	router.middleware = append(router.middleware, middleware...)
}

func (router *Router) Get(pattern string, handler Handler, middleware ...Middleware) {
	router.Handle(MethodGet, pattern, handler, middleware...)
}

func (router *Router) Head(pattern string, handler Handler, middleware ...Middleware) {
	router.Handle(MethodHead, pattern, handler, middleware...)
}

func (router *Router) Post(pattern string, handler Handler, middleware ...Middleware) {
	router.Handle(MethodPost, pattern, handler, middleware...)
}

func (router *Router) Put(pattern string, handler Handler, middleware ...Middleware) {
	router.Handle(MethodPut, pattern, handler, middleware...)
}

func (router *Router) Patch(pattern string, handler Handler, middleware ...Middleware) {
	router.Handle(MethodPatch, pattern, handler, middleware...)
}

func (router *Router) Delete(pattern string, handler Handler, middleware ...Middleware) {
	router.Handle(MethodDelete, pattern, handler, middleware...)
}

func (router *Router) Options(pattern string, handler Handler, middleware ...Middleware) {
	router.Handle(MethodOptions, pattern, handler, middleware...)
}

// Handle registers handler for method and pattern. Pattern segments are
// literals or {name} parameters matching exactly one non-empty segment.
// It panics on invalid or duplicate routes and once serving began.
func (router *Router) Handle(method Method, pattern string, handler Handler, middleware ...Middleware) {
	if handler != nil {
		for i := len(middleware) - 1; i >= 0; i-- {
			handler = middleware[i](handler)
		}
		for i := len(router.middleware) - 1; i >= 0; i-- {
			handler = router.middleware[i](handler)
		}
	}

	full := router.prefix + pattern
	if router.prefix != "" && pattern == "/" {
		full = router.prefix
	}
	router.tree.insert(method, full, handler)
}

// Group registers routes under a common prefix and middleware.
func (router *Router) Group(prefix string, groupFunc func(group *Router), middleware ...Middleware) {
	group := &Router{
		tree:       router.tree,
		prefix:     router.prefix + strings.TrimSuffix(prefix, "/"),
		middleware: append(slices.Clone(router.middleware), middleware...),
	}
	groupFunc(group)
}

// Routes returns the registered routes in registration order.
func (router *Router) Routes() []Route {
	return slices.Clone(router.tree.routes)
}

// Lookup resolves a request path. Literal segments take precedence over
// parameters regardless of registration order. It returns ErrNotFound when
// no route matches the path under any method, or a *MethodNotAllowedError
// (matching ErrMethodNotAllowed) when only other methods match.
//
// HEAD falls back to the GET route when no HEAD route exists. path is the
// request path without its query; '?' is an ordinary byte here.
func (router *Router) Lookup(method Method, path string) (Match, error) {
	t := router.tree
	if path == "" || path[0] != '/' {
		return Match{}, ErrNotFound
	}
	rest, done := path[1:], path == "/"

	if method.valid() {
		if m, ok := t.lookup(method, rest, done); ok {
			return m, nil
		}
		if method == MethodHead {
			if m, ok := t.lookup(MethodGet, rest, done); ok {
				return m, nil
			}
		}
	}

	set := t.allowed(0, rest, done)
	if set == 0 {
		return Match{}, ErrNotFound
	}
	e := &MethodNotAllowedError{Method: method}
	for m := 1; m < methodCount; m++ {
		if set&(1<<m) != 0 {
			e.Allowed = append(e.Allowed, Method(m))
		}
	}
	return Match{}, e
}

func (t *tree) lookup(method Method, rest string, done bool) (Match, bool) {
	idx, params := t.match(0, rest, done, nil, func(n *node) bool {
		return n.routes[method] != noNode
	})
	if idx == noNode {
		return Match{}, false
	}
	r := t.routes[t.nodes[idx].routes[method]]
	return Match{Handler: r.Handler, Pattern: r.Pattern, Params: params}, true
}

func (router *Router) freeze() {
	router.tree.frozen.Store(true)
}
