package cryptosieve

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jward/cryptosieve/internal/prune"
	"github.com/jward/cryptosieve/internal/workspace"
)

// State is a pipeline run state.
type State string

const (
	StatePending           State = "pending"
	StateAcquired          State = "acquired"
	StateExtensionFiltered State = "extension_filtered"
	StateClosureAugmented  State = "closure_augmented"
	StateCategoryTrimmed   State = "category_trimmed"
	StateASTAttached       State = "ast_attached"
	StateCBOMSynthesized   State = "cbom_synthesized"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// StageError is a fatal pipeline error. Stage is the state the run was
// trying to reach.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// RunOptions controls a single run.
type RunOptions struct {
	// Name is the project name. Empty derives one from the source.
	Name string
	// Reset clears every stored project before the run.
	Reset bool
	// CBOM enables CBOM synthesis after AST attachment.
	CBOM bool
	// KeepWorkspace leaves the pruned workspace on disk.
	KeepWorkspace bool
}

// FileFailure records a per-file collaborator failure.
type FileFailure struct {
	FilePath string `json:"file_path"`
	Error    string `json:"error"`
}

// Report summarizes a run. It is returned even when the run fails, with
// State set to StateFailed and the counts reached so far. Kept maps each
// surviving path to its categories and file identifier.
type Report struct {
	Source       string                    `json:"source"`
	ProjectID    string                    `json:"project_id,omitempty"`
	Name         string                    `json:"name"`
	State        State                     `json:"state"`
	Workspace    string                    `json:"workspace,omitempty"`
	Filtered     FilterCounts              `json:"filtered"`
	Augmented    AugmentCounts             `json:"augmented"`
	Trimmed      TrimCounts                `json:"trimmed"`
	Matches      map[string][]string       `json:"matches_by_category"`
	Kept         map[string]prune.KeptFile `json:"kept_crypto_files,omitempty"`
	ASTsAttached int                       `json:"asts_attached"`
	ASTFailures  []FileFailure             `json:"ast_failures"`
	CBOMResults  int                       `json:"cbom_results"`
	CBOMFailures []CBOMFailure             `json:"cbom_failures,omitempty"`
	Artifacts    []string                  `json:"artifacts,omitempty"`
	Elapsed      time.Duration             `json:"elapsed_ns"`
}

// FilterCounts summarizes the extension filter.
type FilterCounts struct {
	Kept        int `json:"kept"`
	Deleted     int `json:"deleted"`
	RemovedDirs int `json:"removed_dirs"`
}

// AugmentCounts summarizes closure augmentation.
type AugmentCounts struct {
	Entries int `json:"entries"`
	Inlined int `json:"inlined"`
}

// TrimCounts summarizes the category trim.
type TrimCounts struct {
	Kept        int `json:"kept"`
	Removed     int `json:"removed"`
	RemovedDirs int `json:"removed_dirs"`
}

// Run acquires source and drives it through the pipeline. A fatal error
// returns the partial Report together with a *StageError.
func (e *Engine) Run(ctx context.Context, source string, opts RunOptions) (*Report, error) {
	start := time.Now()
	rep := &Report{
		Source:      source,
		Name:        opts.Name,
		State:       StatePending,
		ASTFailures: []FileFailure{},
	}
	if rep.Name == "" {
		rep.Name = workspace.ProjectName(source)
	}
	defer func() { rep.Elapsed = time.Since(start) }()

	fail := func(stage State, err error) (*Report, error) {
		rep.State = StateFailed
		e.logger.Error("pipeline.failed", "stage", stage, "source", source, "err", err)
		return rep, &StageError{Stage: stage, Err: err}
	}

	if opts.Reset {
		if err := e.store.ClearAll(); err != nil {
			return fail(StateAcquired, fmt.Errorf("reset: %w", err))
		}
		e.logger.Info("pipeline.reset")
	}

	ws, err := e.acquirer.Acquire(ctx, source)
	if err != nil {
		return fail(StateAcquired, err)
	}
	if opts.KeepWorkspace {
		rep.Workspace = ws.Root
	} else {
		defer ws.Remove()
	}
	e.advance(rep, StateAcquired, "root", ws.Root)

	fres, err := e.pruner.FilterExtensions(ws.Root)
	if err != nil {
		return fail(StateExtensionFiltered, err)
	}
	rep.Filtered = FilterCounts{Kept: len(fres.Kept), Deleted: len(fres.Deleted), RemovedDirs: len(fres.RemovedDirs)}
	e.advance(rep, StateExtensionFiltered, "kept", rep.Filtered.Kept, "deleted", rep.Filtered.Deleted)

	aug, err := e.augment(ws.Root)
	if err != nil {
		return fail(StateClosureAugmented, err)
	}
	rep.Augmented = *aug
	e.advance(rep, StateClosureAugmented, "entries", aug.Entries, "inlined", aug.Inlined)

	projectID, err := e.store.InsertProject(rep.Name)
	if err != nil {
		return fail(StateCategoryTrimmed, err)
	}
	rep.ProjectID = projectID

	tres, err := e.pruner.Trim(ws.Root, e.matcher, func(path string) (string, error) {
		return e.store.InsertFile(projectID, path)
	})
	if err != nil {
		return fail(StateCategoryTrimmed, err)
	}
	rep.Trimmed = TrimCounts{Kept: len(tres.Kept), Removed: len(tres.Removed), RemovedDirs: len(tres.RemovedDirs)}
	rep.Matches = tres.ByCategory
	rep.Kept = tres.Kept
	if path, err := e.WriteArtifact(matchesArtifact, tres.ByCategory); err != nil {
		return fail(StateCategoryTrimmed, err)
	} else if path != "" {
		rep.Artifacts = append(rep.Artifacts, path)
	}
	e.advance(rep, StateCategoryTrimmed, "kept", rep.Trimmed.Kept, "removed", rep.Trimmed.Removed)

	attached, failures, err := e.attachASTs(ctx, tres.Kept)
	if err != nil {
		return fail(StateASTAttached, err)
	}
	rep.ASTsAttached = attached
	rep.ASTFailures = failures
	if e.outputDir != "" {
		export, err := e.ExportASTs(projectID)
		if err != nil {
			return fail(StateASTAttached, err)
		}
		path, err := e.WriteArtifact(astsArtifact, export)
		if err != nil {
			return fail(StateASTAttached, err)
		}
		rep.Artifacts = append(rep.Artifacts, path)
	}
	e.advance(rep, StateASTAttached, "attached", attached, "failed", len(failures))

	if opts.CBOM {
		cr, err := e.SynthesizeCBOM(ctx, projectID)
		if err != nil {
			return fail(StateCBOMSynthesized, err)
		}
		rep.CBOMResults = len(cr.Results)
		rep.CBOMFailures = cr.Failures
		rep.Artifacts = append(rep.Artifacts, cr.Artifacts...)
		e.advance(rep, StateCBOMSynthesized, "results", len(cr.Results), "failed", len(cr.Failures))
	}

	rep.State = StateDone
	e.logger.Info("pipeline.done", "project", projectID, "elapsed", time.Since(start))
	return rep, nil
}

func (e *Engine) advance(rep *Report, s State, attrs ...any) {
	rep.State = s
	e.logger.Info("pipeline.stage", append([]any{"state", s}, attrs...)...)
}

// attachASTs extracts and stores a tree for every kept file, in path order.
// Extraction failures are collected; a persistence failure is fatal.
func (e *Engine) attachASTs(ctx context.Context, kept map[string]prune.KeptFile) (int, []FileFailure, error) {
	paths := make([]string, 0, len(kept))
	for p := range kept {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	failures := []FileFailure{}
	attached := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return attached, failures, err
		}
		payload, err := e.extractOne(ctx, path)
		if err != nil {
			e.logger.Warn("pipeline.ast_failed", "path", path, "err", err)
			failures = append(failures, FileFailure{FilePath: path, Error: err.Error()})
			continue
		}
		if _, err := e.store.InsertAST(kept[path].FileID, payload); err != nil {
			return attached, failures, err
		}
		attached++
	}
	return attached, failures, nil
}

func (e *Engine) extractOne(ctx context.Context, path string) (string, error) {
	if d := e.cfg.AST.Timeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return e.extractor.Extract(ctx, path)
}
