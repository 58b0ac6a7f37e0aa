// Package workspace acquires a source tree into a fresh, disposable
// directory. Every later pipeline stage mutates the workspace in place, so
// acquisition never hands out the caller's own tree.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrInvalidURL is returned when a repository URL uses an unsupported scheme.
var ErrInvalidURL = errors.New("unsupported repository URL")

var urlPrefixes = []string{"http://", "https://", "git@", "ssh://"}

// ValidateURL accepts http(s), ssh:// and scp-style git@ URLs.
func ValidateURL(url string) error {
	for _, p := range urlPrefixes {
		if strings.HasPrefix(url, p) && len(url) > len(p) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidURL, url)
}

// Acquirer materializes a source into a new Workspace.
type Acquirer interface {
	Acquire(ctx context.Context, source string) (*Workspace, error)
}

// Workspace is a per-run directory. Dir is the UUID-named directory owned
// by the workspace; Root is the acquired tree inside it.
type Workspace struct {
	Dir  string
	Root string

	once   sync.Once
	err    error
	logger *slog.Logger
}

// Remove deletes the workspace directory. Safe to call more than once; only
// the first call touches the filesystem.
func (w *Workspace) Remove() error {
	w.once.Do(func() {
		w.err = os.RemoveAll(w.Dir)
		if w.err != nil && w.logger != nil {
			w.logger.Warn("workspace.remove_failed", "dir", w.Dir, "err", w.err)
		}
	})
	return w.err
}

// create makes base/<uuid>/ and returns a Workspace whose Root is
// base/<uuid>/repo. Root itself is not created.
func create(base string, logger *slog.Logger) (*Workspace, error) {
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "cryptosieve-"+strings.ReplaceAll(uuid.NewString(), "-", ""))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{Dir: abs, Root: filepath.Join(abs, "repo"), logger: logger}, nil
}

var repoNameRe = regexp.MustCompile(`[:/]([^/:]+)/([^/]+?)(?:\.git)?/?$`)

// ProjectName derives a human-readable name from a source: "owner/repo" for
// repository URLs, the base name for local paths.
func ProjectName(source string) string {
	if ValidateURL(source) == nil {
		if m := repoNameRe.FindStringSubmatch(source); m != nil {
			return m[1] + "/" + m[2]
		}
	}
	name := filepath.Base(filepath.Clean(source))
	if name == "." || name == string(filepath.Separator) {
		return source
	}
	return name
}
