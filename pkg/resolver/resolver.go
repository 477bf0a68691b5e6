// Package resolver maps include references to files on disk the way a C
// compiler searches for headers.
package resolver

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/simonhull/firebird-suite/weaver/pkg/graph"
	"github.com/simonhull/firebird-suite/weaver/pkg/logger"
	"github.com/simonhull/firebird-suite/weaver/pkg/parser"
)

// Canonical returns the absolute, cleaned, symlink-free form of path. When
// symlinks cannot be evaluated (the path does not exist, a permission
// problem) the cleaned absolute path is returned.
func Canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// Resolver resolves includes against an ordered search path. It is safe for
// concurrent use.
type Resolver struct {
	searchPaths []string
	logger      logger.Logger

	// stat results keyed by candidate path
	files sync.Map
}

// New canonicalizes searchPaths, dropping entries that are not directories.
// Order is preserved and the first occurrence of a duplicate wins.
func New(searchPaths []string, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.Default()
	}
	r := &Resolver{logger: log}

	seen := make(map[string]bool, len(searchPaths))
	for _, p := range searchPaths {
		dir := Canonical(p)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			log.Warn("Ignoring include directory", logger.F("path", p), logger.F("reason", "not a directory"))
			continue
		}
		if seen[dir] {
			continue
		}
		seen[dir] = true
		r.searchPaths = append(r.searchPaths, dir)
	}
	return r
}

// SearchPaths returns the canonical search directories in priority order.
func (r *Resolver) SearchPaths() []string {
	out := make([]string, len(r.searchPaths))
	copy(out, r.searchPaths)
	return out
}

// Candidates lists the paths probed for inc, in priority order. Quoted
// includes look next to the including file first; angled includes never do.
func (r *Resolver) Candidates(inc parser.Include, includingDir string) []string {
	ref := filepath.FromSlash(inc.Path)
	if filepath.IsAbs(ref) {
		return []string{filepath.Clean(ref)}
	}

	out := make([]string, 0, len(r.searchPaths)+1)
	if inc.Form == parser.Quoted {
		out = append(out, filepath.Join(includingDir, ref))
	}
	for _, dir := range r.searchPaths {
		out = append(out, filepath.Join(dir, ref))
	}
	return out
}

// Resolve returns the node target for inc. A missing header is not an
// error: the literal reference text becomes the key.
func (r *Resolver) Resolve(inc parser.Include, includingDir string) graph.Target {
	for _, candidate := range r.Candidates(inc, includingDir) {
		if r.isFile(candidate) {
			return graph.File(Canonical(candidate))
		}
	}
	r.logger.Debug("Unresolved include", logger.F("include", inc.Path), logger.F("form", inc.Form))
	return graph.Literal(inc.Path)
}

func (r *Resolver) isFile(path string) bool {
	if v, ok := r.files.Load(path); ok {
		return v.(bool)
	}
	info, err := os.Stat(path)
	ok := err == nil && info.Mode().IsRegular()
	r.files.Store(path, ok)
	return ok
}
