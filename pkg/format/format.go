// Package format serializes include graphs as Graphviz DOT or GraphML.
//
// Serialization is deterministic: the same graph always produces the same
// bytes. Output is built fully in memory so a failure never leaves a
// partial document behind.
package format

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/simonhull/firebird-suite/weaver/pkg/graph"
)

// Format is an output format
type Format string

const (
	FormatDOT     Format = "dot"
	FormatGraphML Format = "xml"
)

// Formats lists the accepted format names.
var Formats = []Format{FormatDOT, FormatGraphML}

// ErrUnknownFormat is returned for unsupported format names.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat maps a user supplied name to a Format. The empty string
// selects DOT; "graphml" is accepted as an alias of "xml".
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "dot", "gv":
		return FormatDOT, nil
	case "xml", "graphml":
		return FormatGraphML, nil
	default:
		return "", fmt.Errorf("%w: %s (want one of %v)", ErrUnknownFormat, name, Formats)
	}
}

// Serialize renders g in format f.
func Serialize(g *graph.Graph, f Format) ([]byte, error) {
	switch f {
	case FormatDOT, "":
		return marshalDOT(g)
	case FormatGraphML:
		return marshalGraphML(g)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
}

// Write serializes g and writes it to w in one call.
func Write(w io.Writer, g *graph.Graph, f Format) error {
	data, err := Serialize(g, f)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing %s output: %w", f, err)
	}
	return nil
}
