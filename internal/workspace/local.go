package workspace

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalAcquirer copies an on-disk tree into a fresh workspace. Symlinks are
// recreated, not followed.
type LocalAcquirer struct {
	BaseDir string
	Logger  *slog.Logger
}

// Acquire copies the directory at src. On failure the workspace directory
// is removed before returning.
func (l *LocalAcquirer) Acquire(ctx context.Context, src string) (*Workspace, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", src, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("acquire %s: not a directory", src)
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ws, err := create(l.BaseDir, logger)
	if err != nil {
		return nil, err
	}
	if err := copyTree(ctx, src, ws.Root); err != nil {
		ws.Remove()
		return nil, fmt.Errorf("acquire %s: %w", src, err)
	}
	logger.Debug("workspace.copied", "src", src, "root", ws.Root)
	return ws, nil
}

func copyTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			return copyFile(path, target)
		default:
			return nil
		}
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
