// Package analyzer runs the include graph pipeline: walk the roots, parse
// every file on a worker pool, resolve its includes and feed the results to
// a graph builder in discovery order.
package analyzer

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/simonhull/firebird-suite/weaver/pkg/graph"
	"github.com/simonhull/firebird-suite/weaver/pkg/logger"
	"github.com/simonhull/firebird-suite/weaver/pkg/metrics"
	"github.com/simonhull/firebird-suite/weaver/pkg/parser"
	"github.com/simonhull/firebird-suite/weaver/pkg/walker"
)

// Progress is reported after each file is added to the graph.
type Progress struct {
	Files int
	Path  string
}

// Analyzer builds include graphs
type Analyzer struct {
	extractor parser.Extractor
	walkOpts  walker.Options
	workers   int
	logger    logger.Logger
	metrics   *metrics.Recorder
	progress  func(Progress)
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithLogger sets the logger used by every pipeline stage.
func WithLogger(log logger.Logger) Option {
	return func(a *Analyzer) { a.logger = log }
}

// WithWorkers bounds the parse pool. Zero or less means one per CPU.
func WithWorkers(n int) Option {
	return func(a *Analyzer) { a.workers = n }
}

// WithExtractor replaces the default scanner.
func WithExtractor(e parser.Extractor) Option {
	return func(a *Analyzer) { a.extractor = e }
}

// WithWalkOptions sets the traversal filters.
func WithWalkOptions(opts walker.Options) Option {
	return func(a *Analyzer) { a.walkOpts = opts }
}

// WithMetrics records run counters on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(a *Analyzer) { a.metrics = r }
}

// WithProgress registers a callback invoked from the coordinating goroutine.
func WithProgress(fn func(Progress)) Option {
	return func(a *Analyzer) { a.progress = fn }
}

// NewAnalyzer creates an Analyzer with the scanner backend, default walk
// options and one worker per CPU.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		extractor: parser.NewScanner(parser.Options{}),
		walkOpts:  walker.DefaultOptions(),
		logger:    logger.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.workers <= 0 {
		a.workers = runtime.NumCPU()
	}
	return a
}

// BuildGraph builds the include graph of roots with the default settings.
func BuildGraph(ctx context.Context, roots, searchPaths []string) (*graph.Graph, error) {
	return NewAnalyzer().BuildGraph(ctx, roots, searchPaths)
}

// RootLabeler labels resolved files relative to the first root containing
// them and falls back to the absolute path. Unresolved nodes keep their
// literal text.
func RootLabeler(roots []walker.Root) graph.Labeler {
	return func(t graph.Target) string {
		if !t.Resolved {
			return t.Key
		}
		for _, root := range roots {
			rel, err := filepath.Rel(root.Path, t.Key)
			if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				continue
			}
			return filepath.ToSlash(rel)
		}
		return filepath.ToSlash(t.Key)
	}
}
