package workspace

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// CloneError reports a failed clone. Stderr holds git's diagnostic output.
type CloneError struct {
	URL    string
	Stderr string
	Err    error
}

func (e *CloneError) Error() string {
	msg := fmt.Sprintf("git clone %s: %v", e.URL, e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *CloneError) Unwrap() error { return e.Err }

// GitAcquirer shallow-clones a repository URL into a fresh workspace.
type GitAcquirer struct {
	baseDir string
	timeout time.Duration
	depth   int
	git     string
	logger  *slog.Logger
}

// GitOption configures a GitAcquirer.
type GitOption func(*GitAcquirer)

// WithBaseDir sets the parent directory for workspaces.
func WithBaseDir(dir string) GitOption {
	return func(g *GitAcquirer) { g.baseDir = dir }
}

// WithTimeout bounds the clone. Zero disables the bound.
func WithTimeout(d time.Duration) GitOption {
	return func(g *GitAcquirer) { g.timeout = d }
}

// WithDepth sets the clone depth. Zero or less clones full history.
func WithDepth(n int) GitOption {
	return func(g *GitAcquirer) { g.depth = n }
}

// WithGitBinary overrides the git executable.
func WithGitBinary(path string) GitOption {
	return func(g *GitAcquirer) { g.git = path }
}

// WithGitLogger sets the logger.
func WithGitLogger(l *slog.Logger) GitOption {
	return func(g *GitAcquirer) { g.logger = l }
}

// NewGitAcquirer returns a GitAcquirer with a 60 second timeout and depth 1.
func NewGitAcquirer(opts ...GitOption) *GitAcquirer {
	g := &GitAcquirer{
		timeout: 60 * time.Second,
		depth:   1,
		git:     "git",
	}
	for _, o := range opts {
		o(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Acquire validates url and clones it. On any failure the workspace
// directory is removed before returning.
func (g *GitAcquirer) Acquire(ctx context.Context, url string) (*Workspace, error) {
	if err := ValidateURL(url); err != nil {
		return nil, err
	}
	ws, err := create(g.baseDir, g.logger)
	if err != nil {
		return nil, err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	args := []string{"clone"}
	if g.depth > 0 {
		args = append(args, "--depth", strconv.Itoa(g.depth))
	}
	args = append(args, url, ws.Root)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.git, args...)
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.WaitDelay = time.Second

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		ws.Remove()
		return nil, &CloneError{URL: url, Stderr: stderr.String(), Err: err}
	}
	if _, err := os.Stat(ws.Root); err != nil {
		ws.Remove()
		return nil, &CloneError{URL: url, Stderr: stderr.String(), Err: err}
	}
	g.logger.Debug("workspace.cloned", "url", url, "root", ws.Root, "elapsed", time.Since(start))
	return ws, nil
}
