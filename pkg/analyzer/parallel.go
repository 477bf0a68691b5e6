package analyzer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/simonhull/firebird-suite/weaver/pkg/graph"
	"github.com/simonhull/firebird-suite/weaver/pkg/logger"
	"github.com/simonhull/firebird-suite/weaver/pkg/parser"
	"github.com/simonhull/firebird-suite/weaver/pkg/resolver"
	"github.com/simonhull/firebird-suite/weaver/pkg/walker"
)

// fileJob is a discovered file tagged with its discovery position.
type fileJob struct {
	seq  int
	file walker.File
}

type resolvedInclude struct {
	include parser.Include
	target  graph.Target
}

// fileResult holds everything a worker learned about one file
type fileResult struct {
	seq      int
	file     walker.File
	includes []resolvedInclude
	err      error
}

// BuildGraph walks roots, parses files in parallel and returns the graph.
// Only an invalid configuration or cancellation makes it fail; unreadable
// files are logged and left out.
func (a *Analyzer) BuildGraph(ctx context.Context, roots, searchPaths []string) (*graph.Graph, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := walker.New(a.walkOpts, a.logger)
	validRoots, err := w.Roots(roots)
	if err != nil {
		return nil, err
	}
	res := resolver.New(searchPaths, a.logger)
	builder := graph.NewBuilder(RootLabeler(validRoots))

	a.logger.Info("Starting include analysis",
		logger.F("roots", len(validRoots)),
		logger.F("search_paths", len(res.SearchPaths())),
		logger.F("workers", a.workers))

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan fileJob, a.workers)
	results := make(chan fileResult, a.workers)

	// Producer: the walker is lazy, so discovery overlaps with parsing.
	g.Go(func() error {
		defer close(jobs)
		seq := 0
		for f := range w.Files(gctx, validRoots) {
			select {
			case jobs <- fileJob{seq: seq, file: f}:
				seq++
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var workers sync.WaitGroup
	for i := 0; i < a.workers; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			return a.parseWorker(gctx, res, jobs, results)
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	// Coordinator: results arrive in any order and are applied strictly in
	// discovery order, which fixes node id allocation.
	pending := make(map[int]fileResult)
	next, files := 0, 0
	for r := range results {
		pending[r.seq] = r
		for {
			p, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if a.apply(builder, p) {
				files++
				if a.progress != nil {
					a.progress(Progress{Files: files, Path: p.file.Rel})
				}
			}
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := builder.Graph()
	resolved := 0
	for _, n := range result.Nodes() {
		if n.Resolved {
			resolved++
		}
	}
	a.metrics.Graph(resolved, result.NodeCount()-resolved, result.EdgeCount(), time.Since(start))

	a.logger.Info("Include analysis complete",
		logger.F("files", files),
		logger.F("nodes", result.NodeCount()),
		logger.F("edges", result.EdgeCount()),
		logger.F("duration", time.Since(start).Round(time.Millisecond)))

	return result, nil
}

// parseWorker reads, parses and resolves files until jobs is drained
func (a *Analyzer) parseWorker(ctx context.Context, res *resolver.Resolver, jobs <-chan fileJob, results chan<- fileResult) error {
	for job := range jobs {
		r := a.parseFile(res, job)
		select {
		case results <- r:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (a *Analyzer) parseFile(res *resolver.Resolver, job fileJob) fileResult {
	r := fileResult{seq: job.seq, file: job.file}

	content, err := os.ReadFile(job.file.Path)
	if err != nil {
		r.err = err
		return r
	}

	dir := filepath.Dir(job.file.Path)
	for inc := range a.extractor.Includes(content) {
		r.includes = append(r.includes, resolvedInclude{
			include: inc,
			target:  res.Resolve(inc, dir),
		})
	}
	return r
}

// apply adds one file and its includes to the builder. It reports false
// when the file was skipped.
func (a *Analyzer) apply(b *graph.Builder, r fileResult) bool {
	if r.err != nil {
		a.logger.Warn("Skipping unreadable file",
			logger.F("path", r.file.Path),
			logger.F("error", r.err))
		a.metrics.FileUnreadable()
		return false
	}

	b.AddFile(r.file.Path)
	for _, ri := range r.includes {
		b.AddInclude(r.file.Path, ri.target)
		a.metrics.Include(ri.include.Form.String(), ri.target.Resolved)
	}
	a.metrics.FileScanned()

	a.logger.Debug("Parsed file",
		logger.F("path", r.file.Rel),
		logger.F("includes", len(r.includes)))
	return true
}
