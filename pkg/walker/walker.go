// Package walker enumerates C and C++ source files below one or more roots.
//
// Traversal is lazy and deterministic: entries are visited in lexical order
// and every call to Files starts a fresh walk with its own visited sets, so
// symlink loops terminate and concurrent walks never share state.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/simonhull/firebird-suite/weaver/pkg/logger"
	"github.com/simonhull/firebird-suite/weaver/pkg/resolver"
)

// DefaultExtensions are the recognized source and header suffixes.
var DefaultExtensions = []string{
	".c", ".cc", ".cpp", ".cxx", ".c++",
	".h", ".hh", ".hpp", ".hxx", ".h++",
	".inl", ".ipp", ".tcc", ".tpp",
}

// DefaultIgnoreDirs are version control and editor directories that never
// hold sources worth scanning.
var DefaultIgnoreDirs = []string{
	".git", ".svn", ".hg", "node_modules",
	".idea", ".vscode", ".vs",
}

// ErrNoValidRoot is returned when none of the requested roots can be walked.
var ErrNoValidRoot = errors.New("no valid root directory")

// RootError describes a root that was rejected.
type RootError struct {
	Path string
	Err  error
}

func (e *RootError) Error() string {
	return fmt.Sprintf("invalid root %s: %v", e.Path, e.Err)
}

func (e *RootError) Unwrap() error { return e.Err }

var errNotDir = errors.New("not a directory")

// Options configures traversal.
type Options struct {
	Extensions     []string // Recognized suffixes (default: DefaultExtensions)
	IgnoreDirs     []string // Directory names to skip (default: DefaultIgnoreDirs)
	Exclude        []string // gitignore-style patterns, relative to each root
	IncludeHidden  bool     // Descend into dot files and directories
	FollowSymlinks bool     // Follow symbolic links to files and directories
}

// DefaultOptions follows symlinks and uses the default filters.
func DefaultOptions() Options {
	return Options{FollowSymlinks: true}
}

// Root is a validated traversal root.
type Root struct {
	Path  string // canonical absolute path
	Given string // as supplied by the caller
}

// File is a discovered source file.
type File struct {
	Path string // canonical absolute path
	Root string // canonical root it was found under
	Rel  string // slash-separated path relative to Root as traversed
}

// Walker walks source trees.
type Walker struct {
	opts       Options
	exts       map[string]bool
	ignoreDirs map[string]bool
	exclude    *ignore.GitIgnore
	logger     logger.Logger
}

// New creates a walker. A nil logger uses the package default.
func New(opts Options, log logger.Logger) *Walker {
	if log == nil {
		log = logger.Default()
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	dirs := opts.IgnoreDirs
	if len(dirs) == 0 {
		dirs = DefaultIgnoreDirs
	}

	w := &Walker{
		opts:       opts,
		exts:       make(map[string]bool, len(exts)),
		ignoreDirs: make(map[string]bool, len(dirs)),
		logger:     log,
	}
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		w.exts[e] = true
	}
	for _, d := range dirs {
		w.ignoreDirs[d] = true
	}
	if len(opts.Exclude) > 0 {
		w.exclude = ignore.CompileIgnoreLines(opts.Exclude...)
	}
	return w
}

// Recognized reports whether name has a source or header extension.
func (w *Walker) Recognized(name string) bool {
	return w.exts[strings.ToLower(filepath.Ext(name))]
}

// Roots validates paths. Rejected roots are logged; ErrNoValidRoot is
// returned only when nothing usable remains.
func (w *Walker) Roots(paths []string) ([]Root, error) {
	var (
		roots []Root
		errs  []error
		seen  = make(map[string]bool)
	)
	for _, p := range paths {
		canonical := resolver.Canonical(p)
		if err := checkRoot(canonical); err != nil {
			rerr := &RootError{Path: p, Err: err}
			w.logger.Error("Skipping root", logger.F("path", p), logger.F("error", err))
			errs = append(errs, rerr)
			continue
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		roots = append(roots, Root{Path: canonical, Given: p})
	}

	if len(roots) == 0 {
		if len(errs) == 0 {
			return nil, ErrNoValidRoot
		}
		return nil, fmt.Errorf("%w: %w", ErrNoValidRoot, errors.Join(errs...))
	}
	return roots, nil
}

func checkRoot(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errNotDir
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Files yields every recognized file below roots in deterministic order.
// A file reachable through several paths is yielded once, under the first
// root that reaches it. The walk stops early when ctx is cancelled.
func (w *Walker) Files(ctx context.Context, roots []Root) iter.Seq[File] {
	return func(yield func(File) bool) {
		t := &traversal{
			w:     w,
			ctx:   ctx,
			dirs:  make(map[string]bool),
			files: make(map[string]bool),
			yield: yield,
		}
		for _, root := range roots {
			if !t.dir(root, root.Path, "") {
				return
			}
		}
	}
}

// traversal holds the state of one walk.
type traversal struct {
	w     *Walker
	ctx   context.Context
	dirs  map[string]bool
	files map[string]bool
	yield func(File) bool
}

// dir walks the canonical directory dir, reached as rel below root. It
// returns false when the walk must stop.
func (t *traversal) dir(root Root, dir, rel string) bool {
	if t.ctx.Err() != nil {
		return false
	}
	if t.dirs[dir] {
		t.w.logger.Debug("Directory already visited", logger.F("path", dir))
		return true
	}
	t.dirs[dir] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.w.logger.Warn("Cannot read directory", logger.F("path", dir), logger.F("error", err))
		if len(entries) == 0 {
			return true
		}
	}

	for _, entry := range entries {
		name := entry.Name()
		childRel := path.Join(rel, name)
		if !t.w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
			continue
		}

		target := filepath.Join(dir, name)
		mode := entry.Type()
		if mode&fs.ModeSymlink != 0 {
			if !t.w.opts.FollowSymlinks {
				continue
			}
			resolved, err := filepath.EvalSymlinks(target)
			if err != nil {
				t.w.logger.Debug("Skipping broken symlink", logger.F("path", target))
				continue
			}
			info, err := os.Stat(resolved)
			if err != nil {
				continue
			}
			target, mode = resolved, info.Mode().Type()
		}

		switch {
		case mode.IsDir():
			if t.w.ignoreDirs[name] || t.excluded(childRel+"/") {
				continue
			}
			if !t.dir(root, target, childRel) {
				return false
			}
		case mode.IsRegular():
			if !t.w.Recognized(name) || t.excluded(childRel) || t.files[target] {
				continue
			}
			t.files[target] = true
			if !t.yield(File{Path: target, Root: root.Path, Rel: childRel}) {
				return false
			}
		}
	}
	return true
}

func (t *traversal) excluded(rel string) bool {
	return t.w.exclude != nil && t.w.exclude.MatchesPath(rel)
}
