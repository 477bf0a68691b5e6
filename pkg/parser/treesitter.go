package parser

import (
	"fmt"
	"iter"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
)

const includeQuery = `
	(preproc_include path: [(string_literal) (system_lib_string)] @path)
`

// TreeSitter extracts includes from a full C++ syntax tree. The grammar is
// a superset of C for the purposes of preprocessor directives.
type TreeSitter struct {
	lang  *tree_sitter.Language
	query *tree_sitter.Query
}

// NewTreeSitter compiles the include query against the C++ grammar.
func NewTreeSitter() (*TreeSitter, error) {
	lang := tree_sitter.NewLanguage(tree_sitter_cpp.Language())
	query, qerr := tree_sitter.NewQuery(lang, includeQuery)
	if qerr != nil {
		return nil, fmt.Errorf("compile include query: %w", qerr)
	}
	return &TreeSitter{lang: lang, query: query}, nil
}

// Close releases the compiled query.
func (t *TreeSitter) Close() {
	t.query.Close()
}

// Includes implements Extractor. Each call uses its own parser and cursor,
// so a TreeSitter can be shared by workers.
func (t *TreeSitter) Includes(content []byte) iter.Seq[Include] {
	return func(yield func(Include) bool) {
		parser := tree_sitter.NewParser()
		defer parser.Close()
		if err := parser.SetLanguage(t.lang); err != nil {
			return
		}

		tree := parser.Parse(content, nil)
		if tree == nil {
			return
		}
		defer tree.Close()

		cursor := tree_sitter.NewQueryCursor()
		defer cursor.Close()

		matches := cursor.Matches(t.query, tree.RootNode(), content)
		for m := matches.Next(); m != nil; m = matches.Next() {
			for _, c := range m.Captures {
				inc, ok := includeFromNode(&c.Node, content)
				if !ok {
					continue
				}
				if !yield(inc) {
					return
				}
			}
		}
	}
}

func includeFromNode(n *tree_sitter.Node, content []byte) (Include, bool) {
	if n.IsMissing() || n.HasError() {
		return Include{}, false
	}
	text := n.Utf8Text(content)
	if len(text) < 3 {
		return Include{}, false
	}

	inc := Include{Line: int(n.StartPosition().Row) + 1}
	switch n.Kind() {
	case "string_literal":
		if !strings.HasPrefix(text, `"`) || !strings.HasSuffix(text, `"`) {
			return Include{}, false
		}
		inc.Form = Quoted
	case "system_lib_string":
		inc.Form = Angled
	default:
		return Include{}, false
	}

	inc.Path = text[1 : len(text)-1]
	if strings.TrimSpace(inc.Path) == "" {
		return Include{}, false
	}
	return inc, true
}
