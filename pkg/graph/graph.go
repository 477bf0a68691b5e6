// Package graph holds the include dependency graph and the Builder that
// populates it.
//
// Nodes are flat records indexed by id; include cycles are ordinary edges.
package graph

import "path/filepath"

// Target identifies a node. Resolved targets are keyed by canonical
// absolute path, unresolved ones by the literal include text, and the two
// never collide.
type Target struct {
	Key      string
	Resolved bool
}

// File returns the target for a file on disk. The key is the absolute,
// cleaned path, so "a/../b.c" and "b.c" name the same node. Symlinks are
// not evaluated; pass resolver.Canonical paths to merge those too.
func File(path string) Target {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	} else {
		path = filepath.Clean(path)
	}
	return Target{Key: path, Resolved: true}
}

// Literal returns the target for an include that did not resolve.
func Literal(text string) Target {
	return Target{Key: text, Resolved: false}
}

// Node is one vertex of the graph.
type Node struct {
	ID       int64
	Key      string
	Label    string
	Resolved bool
}

// Target returns the identity of the node.
func (n Node) Target() Target {
	return Target{Key: n.Key, Resolved: n.Resolved}
}

// Edge means From textually includes To.
type Edge struct {
	From int64
	To   int64
}

// Graph is an insertion-ordered set of nodes plus a set of edges.
// Ids start at 1 and equal the node's position in Nodes plus one.
type Graph struct {
	nodes    []Node
	index    map[Target]int64
	edges    []Edge
	edgeSet  map[Edge]struct{}
	children map[int64][]int64
}

func newGraph() *Graph {
	return &Graph{
		index:    make(map[Target]int64),
		edgeSet:  make(map[Edge]struct{}),
		children: make(map[int64][]int64),
	}
}

// Nodes returns the nodes in id order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns the edges in the order they were first added.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Node returns the node with the given id.
func (g *Graph) Node(id int64) (Node, bool) {
	if id < 1 || id > int64(len(g.nodes)) {
		return Node{}, false
	}
	return g.nodes[id-1], true
}

// Lookup returns the node for a target.
func (g *Graph) Lookup(t Target) (Node, bool) {
	id, ok := g.index[t]
	if !ok {
		return Node{}, false
	}
	return g.nodes[id-1], true
}

// Children returns the ids included by id, in first-include order.
func (g *Graph) Children(id int64) []int64 {
	kids := g.children[id]
	out := make([]int64, len(kids))
	copy(out, kids)
	return out
}

// HasEdge reports whether from includes to.
func (g *Graph) HasEdge(from, to int64) bool {
	_, ok := g.edgeSet[Edge{From: from, To: to}]
	return ok
}

func (g *Graph) NodeCount() int { return len(g.nodes) }

func (g *Graph) EdgeCount() int { return len(g.edges) }

func (g *Graph) addNode(t Target, label string) int64 {
	if id, ok := g.index[t]; ok {
		return id
	}
	id := int64(len(g.nodes) + 1)
	g.nodes = append(g.nodes, Node{ID: id, Key: t.Key, Label: label, Resolved: t.Resolved})
	g.index[t] = id
	return id
}

func (g *Graph) addEdge(from, to int64) {
	e := Edge{From: from, To: to}
	if _, ok := g.edgeSet[e]; ok {
		return
	}
	g.edgeSet[e] = struct{}{}
	g.edges = append(g.edges, e)
	g.children[from] = append(g.children[from], to)
}
