package graph

import "sync"

// Labeler produces the display label for a new node.
type Labeler func(t Target) string

// KeyLabel labels every node with its key.
func KeyLabel(t Target) string { return t.Key }

// Builder accumulates nodes and edges. Its methods are safe for concurrent
// use, but ids follow call order, so callers that care about id order must
// call it from a single goroutine.
type Builder struct {
	mu    sync.Mutex
	g     *Graph
	label Labeler
}

// NewBuilder returns an empty builder. A nil labeler labels nodes by key.
func NewBuilder(label Labeler) *Builder {
	if label == nil {
		label = KeyLabel
	}
	return &Builder{g: newGraph(), label: label}
}

// AddFile records a discovered source file and returns its node id. Paths
// are normalized as in File.
func (b *Builder) AddFile(path string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := File(path)
	return b.g.addNode(t, b.label(t))
}

// AddInclude records that the file at source includes target. The source
// node is allocated first if it is new.
func (b *Builder) AddInclude(source string, target Target) (from, to int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	src := File(source)
	from = b.g.addNode(src, b.label(src))
	to = b.g.addNode(target, b.label(target))
	b.g.addEdge(from, to)
	return from, to
}

// Graph returns the graph built so far. The builder must not be used after
// the graph has been handed to a serializer.
func (b *Builder) Graph() *Graph {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.g
}
