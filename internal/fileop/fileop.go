// Package fileop validates and performs the file writes of a weaver run.
package fileop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrExists is returned when a target exists and force is off.
var ErrExists = errors.New("file already exists")

// Operation is a file system change that can be checked before it runs.
//
// Validate reports whether Execute would succeed; force=true skips the
// conflict check. Execute must only be called after Validate succeeds.
type Operation interface {
	Validate(ctx context.Context, force bool) error
	Execute(ctx context.Context) error
	Description() string
}

// WriteFileOp writes Content to Path. Parent directories are created as
// needed and the file is replaced through a rename so readers never see a
// partial graph.
type WriteFileOp struct {
	Path    string      // File path to create
	Content []byte      // File content (can be empty, must not be nil)
	Mode    fs.FileMode // File permissions (e.g., 0644)
}

func (op *WriteFileOp) Validate(ctx context.Context, force bool) error {
	if op.Content == nil {
		return fmt.Errorf("content is nil for file: %s", op.Path)
	}

	info, err := os.Stat(op.Path)
	switch {
	case err == nil && info.IsDir():
		return fmt.Errorf("%s is a directory", op.Path)
	case err == nil && !force:
		return fmt.Errorf("%w: %s (use --force to overwrite)", ErrExists, op.Path)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("cannot stat %s: %w", op.Path, err)
	}

	// Missing parents are created by Execute; the nearest existing one
	// must be a directory.
	for dir := filepath.Dir(op.Path); ; {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("cannot create directory below %s: not a directory", dir)
			}
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("cannot stat %s: %w", dir, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}
	return nil
}

func (op *WriteFileOp) Execute(ctx context.Context) error {
	dir := filepath.Dir(op.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(op.Path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(op.Content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	mode := op.Mode
	if mode == 0 {
		mode = 0644
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), op.Path)
}

func (op *WriteFileOp) Description() string {
	return fmt.Sprintf("Write %s (%d bytes)", op.Path, len(op.Content))
}

// ExecuteOptions configures execution behavior
type ExecuteOptions struct {
	DryRun bool
	Force  bool
	Writer io.Writer // Where to report each operation (defaults to io.Discard)
}

// Execute validates every operation, then runs them in order.
func Execute(ctx context.Context, ops []Operation, opts ExecuteOptions) error {
	if opts.Writer == nil {
		opts.Writer = io.Discard
	}

	for _, op := range ops {
		if err := op.Validate(ctx, opts.Force); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		if opts.DryRun {
			fmt.Fprintf(opts.Writer, "✓ [DRY RUN] %s\n", op.Description())
			continue
		}
		if err := op.Execute(ctx); err != nil {
			return fmt.Errorf("execution failed: %w", err)
		}
		fmt.Fprintf(opts.Writer, "✓ %s\n", op.Description())
	}
	return nil
}
