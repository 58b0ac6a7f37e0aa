package cryptosieve

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jward/cryptosieve/internal/cbom"
)

// Artifact file names written to the output directory.
const (
	matchesArtifact   = "matches.json"
	astsArtifact      = "asts.json"
	cbomRawArtifact   = "cbom_raw.json"
	cbomISOArtifact   = "cbom_iso.json"
	cbomCleanArtifact = "cbom_clean.json"
)

// ASTExport is the bulk AST export document.
type ASTExport struct {
	DatabaseReference string          `json:"database_reference"`
	ProjectID         string          `json:"project_id"`
	TotalFiles        int             `json:"total_files"`
	Files             []ASTExportFile `json:"files"`
}

// ASTExportFile is one stored tree. AST is the stored payload, embedded as
// JSON when it parses and as a string otherwise.
type ASTExportFile struct {
	ASTID    string          `json:"ast_id"`
	FileName string          `json:"file_name"`
	AST      json.RawMessage `json:"ast"`
}

// ExportASTs builds the bulk export document for a project.
func (e *Engine) ExportASTs(projectID string) (*ASTExport, error) {
	p, err := e.store.ProjectByID(projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	asts, err := e.store.ASTsByProject(projectID)
	if err != nil {
		return nil, err
	}
	out := &ASTExport{
		DatabaseReference: e.store.Path(),
		ProjectID:         projectID,
		TotalFiles:        len(asts),
		Files:             make([]ASTExportFile, 0, len(asts)),
	}
	for _, a := range asts {
		raw := json.RawMessage(a.Payload)
		if !json.Valid(raw) {
			quoted, err := json.Marshal(a.Payload)
			if err != nil {
				return nil, err
			}
			raw = quoted
		}
		out.Files = append(out.Files, ASTExportFile{ASTID: a.ID, FileName: a.FilePath, AST: raw})
	}
	return out, nil
}

// CBOMRun is the outcome of SynthesizeCBOM.
type CBOMRun struct {
	Results   []cbom.Result  `json:"results"`
	Failures  []cbom.Failure `json:"failures"`
	ISO       []any          `json:"iso"`
	Clean     any            `json:"clean"`
	Artifacts []string       `json:"artifacts,omitempty"`
}

// SynthesizeCBOM sends every stored tree of a project to the configured
// synthesizer. Per-file failures are collected. When an output directory is
// set, the raw, normalized and cleaned documents are written to it.
func (e *Engine) SynthesizeCBOM(ctx context.Context, projectID string) (*CBOMRun, error) {
	if e.synth == nil {
		return nil, ErrNoSynthesizer
	}
	p, err := e.store.ProjectByID(projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	asts, err := e.store.ASTsByProject(projectID)
	if err != nil {
		return nil, err
	}
	inputs := make([]cbom.Input, 0, len(asts))
	for _, a := range asts {
		inputs = append(inputs, cbom.Input{FilePath: a.FilePath, Payload: a.Payload})
	}

	cfg := e.cfg.CBOM
	gen := cbom.NewGenerator(e.synth,
		cbom.WithModel(cfg.Model),
		cbom.WithMaxChars(cfg.MaxChars),
		cbom.WithRetryPolicy(cbom.RetryPolicy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.BaseDelay}),
		cbom.WithLogger(e.logger),
	)
	results, failures := gen.GenerateAll(ctx, inputs)
	iso := cbom.Normalize(results, e.logger)
	run := &CBOMRun{
		Results:  results,
		Failures: failures,
		ISO:      iso,
		Clean:    cbom.Clean(iso),
	}

	for _, a := range []struct {
		name string
		v    any
	}{
		{cbomRawArtifact, run.Results},
		{cbomISOArtifact, run.ISO},
		{cbomCleanArtifact, run.Clean},
	} {
		path, err := e.WriteArtifact(a.name, a.v)
		if err != nil {
			return run, err
		}
		if path != "" {
			run.Artifacts = append(run.Artifacts, path)
		}
	}
	e.logger.Info("cbom.done", "project", projectID, "results", len(results), "failed", len(failures))
	return run, nil
}

// WriteArtifact writes v as indented JSON into the output directory and returns
// the file path, or "" when no output directory is set.
func (e *Engine) WriteArtifact(name string, v any) (string, error) {
	if e.outputDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	path := filepath.Join(e.outputDir, name)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}
