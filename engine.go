package cryptosieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jward/cryptosieve/internal/cbom"
	"github.com/jward/cryptosieve/internal/config"
	"github.com/jward/cryptosieve/internal/imports"
	"github.com/jward/cryptosieve/internal/match"
	"github.com/jward/cryptosieve/internal/prune"
	"github.com/jward/cryptosieve/internal/runtime"
	"github.com/jward/cryptosieve/internal/store"
	"github.com/jward/cryptosieve/internal/workspace"
)

// ErrNoSynthesizer is returned when CBOM synthesis is requested but no
// synthesizer is configured.
var ErrNoSynthesizer = errors.New("no CBOM synthesizer configured")

// ErrProjectNotFound is returned for an unknown project identifier.
var ErrProjectNotFound = errors.New("project not found")

// Engine runs the triage pipeline against a SQLite store.
type Engine struct {
	store     *store.Store
	cfg       *config.Config
	matcher   *match.Matcher
	pruner    *prune.Pruner
	imports   *imports.Extractor
	acquirer  workspace.Acquirer
	extractor runtime.Extractor
	synth     cbom.Synthesizer
	outputDir string
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the configuration. The default is config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithLogger sets the logger used by the Engine and its components.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithAcquirer replaces the default acquirer, which clones repository URLs
// and copies local directories.
func WithAcquirer(a workspace.Acquirer) Option {
	return func(e *Engine) {
		e.acquirer = a
	}
}

// WithASTExtractor replaces the extractor built from the configuration.
func WithASTExtractor(x runtime.Extractor) Option {
	return func(e *Engine) {
		e.extractor = x
	}
}

// WithSynthesizer sets the CBOM synthesizer.
func WithSynthesizer(s cbom.Synthesizer) Option {
	return func(e *Engine) {
		e.synth = s
	}
}

// WithOutputDir sets where run artifacts are written. Empty disables
// artifact files.
func WithOutputDir(dir string) Option {
	return func(e *Engine) {
		e.outputDir = dir
	}
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string, opts ...Option) (*Engine, error) {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.cfg == nil {
		e.cfg = config.Default()
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cryptosieve: %w", err)
	}

	m, err := e.cfg.Matcher()
	if err != nil {
		return nil, fmt.Errorf("cryptosieve: %w", err)
	}
	e.matcher = m
	e.pruner = prune.New(e.cfg.Extensions, e.cfg.IgnoreDirs, prune.WithLogger(e.logger))
	e.imports = imports.NewExtractor(
		imports.WithExtensions(e.cfg.ResolveExtensions...),
		imports.WithLogger(e.logger),
	)

	if e.acquirer == nil {
		e.acquirer = &sourceAcquirer{
			git: workspace.NewGitAcquirer(
				workspace.WithBaseDir(e.cfg.Clone.WorkRoot),
				workspace.WithTimeout(e.cfg.Clone.Timeout),
				workspace.WithDepth(e.cfg.Clone.Depth),
				workspace.WithGitLogger(e.logger),
			),
			local: &workspace.LocalAcquirer{BaseDir: e.cfg.Clone.WorkRoot, Logger: e.logger},
		}
	}
	if e.extractor == nil {
		x, err := newExtractor(e.cfg.AST, e.logger)
		if err != nil {
			return nil, fmt.Errorf("cryptosieve: %w", err)
		}
		e.extractor = x
	}
	if e.synth == nil && len(e.cfg.CBOM.Command) > 0 {
		e.synth = &cbom.CommandSynthesizer{Command: e.cfg.CBOM.Command}
	}

	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("cryptosieve: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("cryptosieve: migrate: %w", err)
	}
	e.store = s
	return e, nil
}

// newExtractor builds the configured AST extractor: an external command
// when one is set, tree-sitter otherwise, with the optional transform.
func newExtractor(cfg config.ASTConfig, logger *slog.Logger) (runtime.Extractor, error) {
	var transform *runtime.Transform
	if cfg.TransformScript != "" {
		dir, file := filepath.Split(cfg.TransformScript)
		rt := runtime.NewRuntime(dir, runtime.WithRuntimeLogger(logger))
		t, err := rt.LoadTransform(file)
		if err != nil {
			return nil, err
		}
		transform = t
	}
	if len(cfg.Command) > 0 {
		return &runtime.CommandExtractor{Command: cfg.Command, Transform: transform}, nil
	}
	return runtime.NewTreeSitterExtractor(
		runtime.WithIncludeText(cfg.IncludeText),
		runtime.WithTransform(transform),
		runtime.WithExtractorLogger(logger),
	), nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Config returns the effective configuration.
func (e *Engine) Config() *Config {
	return e.cfg
}

// Projects lists every stored project with its file and AST counts.
func (e *Engine) Projects() ([]*ProjectStats, error) {
	return e.store.Projects()
}

// DeleteProject removes a project together with its files and ASTs.
func (e *Engine) DeleteProject(id string) error {
	p, err := e.store.ProjectByID(id)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	if err := e.store.DeleteProject(id); err != nil {
		return err
	}
	e.logger.Info("project.deleted", "project", id, "name", p.Name)
	return nil
}

// Reset removes every stored project.
func (e *Engine) Reset() error {
	return e.store.ClearAll()
}

// sourceAcquirer clones repository URLs and copies existing local
// directories.
type sourceAcquirer struct {
	git   *workspace.GitAcquirer
	local *workspace.LocalAcquirer
}

func (a *sourceAcquirer) Acquire(ctx context.Context, source string) (*workspace.Workspace, error) {
	if info, err := os.Stat(source); err == nil && info.IsDir() {
		return a.local.Acquire(ctx, source)
	}
	return a.git.Acquire(ctx, source)
}
