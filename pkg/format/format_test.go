package format

import (
	"bytes"
	"encoding/xml"
	"errors"
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dotparse "gonum.org/v1/gonum/graph/formats/dot"
	"gonum.org/v1/gonum/graph/formats/dot/ast"

	"github.com/simonhull/firebird-suite/weaver/pkg/graph"
)

// sampleGraph mirrors a small slice of a real tree: a source file with a
// system header, two project headers in a cycle, and a self include.
func sampleGraph() *graph.Graph {
	b := graph.NewBuilder(func(t graph.Target) string {
		if !t.Resolved {
			return t.Key
		}
		return t.Key[len("/work/"):]
	})
	b.AddFile("/work/src/f_1.c")
	b.AddInclude("/work/src/f_1.c", graph.Literal("iostream"))
	b.AddInclude("/work/src/f_1.c", graph.File("/work/inc/lib/f_1.h"))
	b.AddInclude("/work/inc/lib/f_1.h", graph.File("/work/inc/lib/f_3.h"))
	b.AddInclude("/work/inc/lib/f_3.h", graph.File("/work/inc/lib/f_1.h"))
	b.AddInclude("/work/inc/lib/f_3.h", graph.File("/work/inc/lib/f_3.h"))
	b.AddInclude("/work/src/f_1.c", graph.Literal(`we"ird <&> \name`))
	b.AddFile("/work/src/empty.c")
	return b.Graph()
}

type labelEdge struct{ From, To string }

func expectedSets(g *graph.Graph) (map[string]bool, map[labelEdge]bool) {
	labels := make(map[string]bool)
	for _, n := range g.Nodes() {
		labels[n.Label] = true
	}
	edges := make(map[labelEdge]bool)
	for _, e := range g.Edges() {
		from, _ := g.Node(e.From)
		to, _ := g.Node(e.To)
		edges[labelEdge{from.Label, to.Label}] = true
	}
	return labels, edges
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatDOT},
		{"dot", FormatDOT},
		{"DOT", FormatDOT},
		{"xml", FormatGraphML},
		{"graphml", FormatGraphML},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFormat("json")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSerialize_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, sampleGraph(), Format("svg"))

	assert.True(t, errors.Is(err, ErrUnknownFormat))
	assert.Zero(t, buf.Len(), "nothing is written on error")
}

func TestDOT_Exact(t *testing.T) {
	b := graph.NewBuilder(nil)
	b.AddInclude("/r/a.c", graph.Literal("iostream"))
	b.AddInclude("/r/a.c", graph.File("/r/x y.h"))
	b.AddInclude("/r/x y.h", graph.File("/r/x y.h"))

	out, err := Serialize(b.Graph(), FormatDOT)
	require.NoError(t, err)

	want := `strict digraph {
  // Node definitions.
  1 [label="/r/a.c"];
  2 [label="iostream"];
  3 [label="/r/x y.h"];

  // Edge definitions.
  1 -> 2;
  1 -> 3;
  3 -> 3;
}
`
	assert.Equal(t, want, string(out))
}

func TestDOT_Empty(t *testing.T) {
	out, err := Serialize(graph.NewBuilder(nil).Graph(), FormatDOT)
	require.NoError(t, err)
	assert.Equal(t, "strict digraph {\n}\n", string(out))
}

func TestDOT_ParsesBack(t *testing.T) {
	g := sampleGraph()
	out, err := Serialize(g, FormatDOT)
	require.NoError(t, err)

	file, err := dotparse.ParseBytes(out)
	require.NoError(t, err)
	require.Len(t, file.Graphs, 1)
	require.True(t, file.Graphs[0].Directed)

	labelByID := make(map[string]string)
	labels := make(map[string]bool)
	edges := make(map[labelEdge]bool)
	for _, stmt := range file.Graphs[0].Stmts {
		switch s := stmt.(type) {
		case *ast.NodeStmt:
			for _, a := range s.Attrs {
				if a.Key == "label" {
					label, err := strconv.Unquote(a.Val)
					require.NoError(t, err)
					labelByID[s.Node.ID] = label
					labels[label] = true
				}
			}
		case *ast.EdgeStmt:
			from := s.From.(*ast.Node).ID
			to := s.To.Vertex.(*ast.Node).ID
			edges[labelEdge{labelByID[from], labelByID[to]}] = true
		}
	}

	wantLabels, wantEdges := expectedSets(g)
	assert.Equal(t, wantLabels, labels)
	assert.Equal(t, wantEdges, edges)
	assert.Equal(t, "src/f_1.c", labelByID["1"])
}

type graphmlDoc struct {
	XMLName xml.Name `xml:"graphml"`
	Keys    []struct {
		ID   string `xml:"id,attr"`
		For  string `xml:"for,attr"`
		Name string `xml:"attr.name,attr"`
	} `xml:"key"`
	Graph struct {
		EdgeDefault string `xml:"edgedefault,attr"`
		Nodes       []struct {
			ID   string `xml:"id,attr"`
			Data []struct {
				Key   string `xml:"key,attr"`
				Value string `xml:",chardata"`
			} `xml:"data"`
		} `xml:"node"`
		Edges []struct {
			Source string `xml:"source,attr"`
			Target string `xml:"target,attr"`
		} `xml:"edge"`
	} `xml:"graph"`
}

func TestGraphML_RoundTrip(t *testing.T) {
	g := sampleGraph()
	out, err := Serialize(g, FormatGraphML)
	require.NoError(t, err)

	var doc graphmlDoc
	require.NoError(t, xml.Unmarshal(out, &doc))

	require.NotEmpty(t, doc.Keys)
	assert.Equal(t, "key1", doc.Keys[0].ID)
	assert.Equal(t, "node", doc.Keys[0].For)
	assert.Equal(t, "label", doc.Keys[0].Name)
	assert.Equal(t, "directed", doc.Graph.EdgeDefault)

	labelByID := make(map[string]string)
	for _, n := range doc.Graph.Nodes {
		for _, d := range n.Data {
			if d.Key == "key1" {
				labelByID[n.ID] = d.Value
			}
		}
	}
	require.Len(t, labelByID, g.NodeCount())

	// per-node child sets must match the in-memory graph
	children := make(map[string][]string)
	for _, e := range doc.Graph.Edges {
		children[labelByID[e.Source]] = append(children[labelByID[e.Source]], labelByID[e.Target])
	}
	for _, n := range g.Nodes() {
		var want []string
		for _, id := range g.Children(n.ID) {
			c, _ := g.Node(id)
			want = append(want, c.Label)
		}
		got := children[n.Label]
		sort.Strings(want)
		sort.Strings(got)
		assert.Equal(t, want, got, "children of %s", n.Label)
	}

	assert.Equal(t, `we"ird <&> \name`, labelByID["5"])
}

func TestGraphML_KeyDeclaredBeforeGraph(t *testing.T) {
	out, err := Serialize(sampleGraph(), FormatGraphML)
	require.NoError(t, err)

	key := bytes.Index(out, []byte(`<key id="key1"`))
	graphStart := bytes.Index(out, []byte(`<graph `))
	require.NotEqual(t, -1, key)
	assert.Less(t, key, graphStart)
	assert.Contains(t, string(out), `<node id="1">`)
	assert.True(t, bytes.HasSuffix(out, []byte("</graphml>\n")))
}

func TestSerialize_Deterministic(t *testing.T) {
	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			first, err := Serialize(sampleGraph(), f)
			require.NoError(t, err)
			second, err := Serialize(sampleGraph(), f)
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}
