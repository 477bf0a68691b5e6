package format

import (
	"strings"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/simonhull/firebird-suite/weaver/pkg/graph"
)

// dotNode is a graph node as seen by the gonum encoder. Node ids are the
// graph's numeric ids and the label travels as an attribute.
type dotNode struct {
	id    int64
	label string
}

func (n dotNode) ID() int64 { return n.id }

// Attributes quotes the label up front so the encoder never mistakes a
// label such as <vector> for an HTML id.
func (n dotNode) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "label", Value: quoteDOT(n.label)}}
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)

func quoteDOT(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

// dotView adapts *graph.Graph to gonum's graph.Directed. gonum's own
// simple.DirectedGraph rejects self loops, which includes may contain.
type dotView struct {
	nodes []gonum.Node
	from  map[int64][]gonum.Node
	to    map[int64][]gonum.Node
	g     *graph.Graph
}

func newDOTView(g *graph.Graph) *dotView {
	v := &dotView{
		from: make(map[int64][]gonum.Node),
		to:   make(map[int64][]gonum.Node),
		g:    g,
	}
	for _, n := range g.Nodes() {
		v.nodes = append(v.nodes, dotNode{id: n.ID, label: n.Label})
	}
	for _, e := range g.Edges() {
		v.from[e.From] = append(v.from[e.From], v.nodes[e.To-1])
		v.to[e.To] = append(v.to[e.To], v.nodes[e.From-1])
	}
	return v
}

func (v *dotView) Node(id int64) gonum.Node {
	if id < 1 || id > int64(len(v.nodes)) {
		return nil
	}
	return v.nodes[id-1]
}

func (v *dotView) Nodes() gonum.Nodes { return iterator.NewOrderedNodes(v.nodes) }

func (v *dotView) From(id int64) gonum.Nodes { return iterator.NewOrderedNodes(v.from[id]) }

func (v *dotView) To(id int64) gonum.Nodes { return iterator.NewOrderedNodes(v.to[id]) }

func (v *dotView) HasEdgeBetween(xid, yid int64) bool {
	return v.g.HasEdge(xid, yid) || v.g.HasEdge(yid, xid)
}

func (v *dotView) HasEdgeFromTo(uid, vid int64) bool { return v.g.HasEdge(uid, vid) }

func (v *dotView) Edge(uid, vid int64) gonum.Edge {
	if !v.g.HasEdge(uid, vid) {
		return nil
	}
	return simple.Edge{F: v.nodes[uid-1], T: v.nodes[vid-1]}
}

func marshalDOT(g *graph.Graph) ([]byte, error) {
	out, err := dot.Marshal(newDOTView(g), "", "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
