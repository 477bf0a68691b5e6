// Package parser extracts #include directives from C and C++ source text.
//
// Extraction never fails: malformed directives are skipped and invalid code
// is tolerated. Two backends are available, a byte scanner that understands
// comments and literals, and a tree-sitter C++ grammar.
package parser

import (
	"errors"
	"fmt"
	"iter"
)

// Form is the delimiter style of an include.
type Form int

const (
	// Quoted is #include "x.h": searched in the including directory first.
	Quoted Form = iota
	// Angled is #include <x.h>: searched only on the search path.
	Angled
)

func (f Form) String() string {
	switch f {
	case Quoted:
		return "quoted"
	case Angled:
		return "angled"
	default:
		return "unknown"
	}
}

// Include is one include reference found in a file.
type Include struct {
	Path string
	Form Form
	Line int
}

// Extractor yields the includes of one file in source order.
type Extractor interface {
	Includes(content []byte) iter.Seq[Include]
}

// Kind selects an extraction backend.
type Kind string

const (
	KindScan       Kind = "scan"
	KindTreeSitter Kind = "treesitter"
)

// Kinds lists the accepted backend names.
var Kinds = []Kind{KindScan, KindTreeSitter}

var ErrUnknownParser = errors.New("unknown parser")

// Options tunes extraction.
type Options struct {
	// KeepComments treats comment text as code, so directives inside
	// comments are reported. Only the scan backend honors it.
	KeepComments bool
}

// New returns the extractor for kind. An empty kind selects the scanner.
func New(kind Kind, opts Options) (Extractor, error) {
	switch kind {
	case KindScan, "":
		return NewScanner(opts), nil
	case KindTreeSitter:
		return NewTreeSitter()
	default:
		return nil, fmt.Errorf("%w: %q (want one of %v)", ErrUnknownParser, kind, Kinds)
	}
}

// Collect drains an include sequence into a slice.
func Collect(seq iter.Seq[Include]) []Include {
	var out []Include
	for inc := range seq {
		out = append(out, inc)
	}
	return out
}
