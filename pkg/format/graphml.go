package format

import (
	"bytes"
	"embed"
	"encoding/xml"
	"fmt"
	"sync"
	"text/template"

	"github.com/simonhull/firebird-suite/weaver/pkg/graph"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// renderer parses embedded templates once and caches them.
type renderer struct {
	funcMap template.FuncMap
	cache   map[string]*template.Template
	mu      sync.RWMutex
}

var templates = &renderer{
	funcMap: template.FuncMap{"xml": escapeXML},
	cache:   make(map[string]*template.Template),
}

func (r *renderer) render(path string, data any) ([]byte, error) {
	r.mu.RLock()
	tmpl, ok := r.cache[path]
	r.mu.RUnlock()

	if !ok {
		src, err := templatesFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read template '%s': %w", path, err)
		}
		tmpl, err = template.New(path).Funcs(r.funcMap).Parse(string(src))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template '%s': %w", path, err)
		}
		r.mu.Lock()
		r.cache[path] = tmpl
		r.mu.Unlock()
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", path, err)
	}
	return buf.Bytes(), nil
}

// escapeXML escapes text for element content and attribute values.
// Characters that XML 1.0 cannot carry become U+FFFD.
func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func marshalGraphML(g *graph.Graph) ([]byte, error) {
	data := struct {
		Nodes []graph.Node
		Edges []graph.Edge
	}{
		Nodes: g.Nodes(),
		Edges: g.Edges(),
	}
	return templates.render("templates/graphml.xml.tmpl", data)
}
