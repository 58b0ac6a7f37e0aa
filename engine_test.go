package cryptosieve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jward/cryptosieve/internal/config"
	"github.com/jward/cryptosieve/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExtractor returns a small envelope per file and fails for any file
// whose base name starts with "bad".
type fakeExtractor struct {
	mu    sync.Mutex
	paths []string
}

func (f *fakeExtractor) Extract(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()
	if strings.HasPrefix(filepath.Base(path), "bad") {
		return "", errors.New("parse failed")
	}
	return fmt.Sprintf(`{"ok":true,"language":"typescript","ast":{"type":"program","file":%q}}`, filepath.Base(path)), nil
}

type fakeSynth struct {
	calls int
}

func (f *fakeSynth) Synthesize(_ context.Context, model, prompt string) (string, error) {
	f.calls++
	return "```json\n{\"algorithm\":\"AES\",\"mode\":\"\",\"key_size\":null,\"model\":\"" + model + "\"}\n```", nil
}

// trackingAcquirer wraps LocalAcquirer and remembers the workspaces it made.
type trackingAcquirer struct {
	inner  workspace.LocalAcquirer
	hook   func()
	mu     sync.Mutex
	issued []*workspace.Workspace
}

func (a *trackingAcquirer) Acquire(ctx context.Context, src string) (*workspace.Workspace, error) {
	ws, err := a.inner.Acquire(ctx, src)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.issued = append(a.issued, ws)
	a.mu.Unlock()
	if a.hook != nil {
		a.hook()
	}
	return ws, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Clone.WorkRoot = t.TempDir()
	return cfg
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	base := []Option{WithConfig(testConfig(t)), WithASTExtractor(&fakeExtractor{})}
	e, err := New(dbPath, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_CreatesStore(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	require.NotNil(t, e.Store())
	assert.Equal(t, []string{".js", ".jsx", ".ts", ".tsx"}, e.Config().Extensions)

	_, err := e.Store().InsertProject("p")
	require.NoError(t, err)
}

func TestNew_InvalidPath(t *testing.T) {
	t.Parallel()
	_, err := New("/nonexistent/dir/db.sqlite", WithConfig(testConfig(t)))
	require.Error(t, err)
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Categories = append(cfg.Categories, cfg.Categories[0])
	cfg.Categories[len(cfg.Categories)-1].Patterns = []string{"("}
	_, err := New(filepath.Join(t.TempDir(), "test.db"), WithConfig(cfg))
	require.Error(t, err)
}

func TestNew_MissingTransformScript(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.AST.TransformScript = filepath.Join(t.TempDir(), "missing.risor")
	_, err := New(filepath.Join(t.TempDir(), "test.db"), WithConfig(cfg))
	require.Error(t, err)
}

// =============================================================================
// Run
// =============================================================================

func TestRun_KeepsMatchingAndDeletesProse(t *testing.T) {
	t.Parallel()
	src := writeTree(t, map[string]string{
		"a.ts":                "const c = AES.encrypt(data, k);\n",
		"b.js":                "console.log(1);\n",
		"README.md":           "# AES notes\n",
		"docs/guide.txt":      "hello\n",
		"node_modules/x/y.js": "console.log(2);\n",
	})
	x := &fakeExtractor{}
	e := newTestEngine(t, WithASTExtractor(x))

	rep, err := e.Run(context.Background(), src, RunOptions{Name: "demo", KeepWorkspace: true})
	require.NoError(t, err)

	assert.Equal(t, StateDone, rep.State)
	assert.Equal(t, "demo", rep.Name)
	assert.NotEmpty(t, rep.ProjectID)
	assert.Equal(t, 2, rep.Filtered.Deleted, "README.md and guide.txt")
	assert.Equal(t, 1, rep.Filtered.RemovedDirs, "docs")
	assert.Equal(t, 1, rep.Trimmed.Kept)
	assert.Equal(t, 1, rep.Trimmed.Removed)
	assert.Equal(t, []string{"a.ts"}, baseNames(rep.Matches["aes"]))
	assert.Empty(t, rep.Matches["rsa"])
	assert.Equal(t, 1, rep.ASTsAttached)
	assert.Empty(t, rep.ASTFailures)

	require.NotEmpty(t, rep.Workspace)
	assert.FileExists(t, filepath.Join(rep.Workspace, "a.ts"))
	assert.NoFileExists(t, filepath.Join(rep.Workspace, "b.js"))
	assert.NoFileExists(t, filepath.Join(rep.Workspace, "README.md"))
	assert.FileExists(t, filepath.Join(rep.Workspace, "node_modules", "x", "y.js"), "ignored dirs are untouched")
	assert.FileExists(t, filepath.Join(src, "b.js"), "source tree is never modified")

	for path, kf := range rep.Kept {
		assert.Equal(t, "a.ts", filepath.Base(path))
		assert.Equal(t, []string{"aes"}, kf.Categories)
	}

	files, err := e.Store().FilesByProject(rep.ProjectID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.ts", filepath.Base(files[0].Path))

	asts, err := e.Store().ASTsByProject(rep.ProjectID)
	require.NoError(t, err)
	require.Len(t, asts, 1)
	assert.Contains(t, asts[0].Payload, `"file":"a.ts"`)
}

func TestRun_InlinesImportClosure(t *testing.T) {
	t.Parallel()
	src := writeTree(t, map[string]string{
		"entry.ts":  "import { h } from './helper';\nconst c = AES.encrypt(h);",
		"helper.ts": "import { e } from './entry';\nimport { u } from './util';\nexport const h = 1;\n",
		"util.ts":   "export const u = 2;\n",
		"other.py":  "import os\n",
	})
	e := newTestEngine(t)

	rep, err := e.Run(context.Background(), src, RunOptions{KeepWorkspace: true})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Augmented.Entries)
	assert.Equal(t, 2, rep.Augmented.Inlined)

	data, err := os.ReadFile(filepath.Join(rep.Workspace, "entry.ts"))
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "import { h } from './helper';\nconst c = AES.encrypt(h);\n"))
	assert.Contains(t, text, "// ---- cryptosieve: inlined dependency helper.ts ----\n")
	assert.Contains(t, text, "// ---- cryptosieve: end util.ts ----\n")
	assert.Less(t, strings.Index(text, "dependency helper.ts"), strings.Index(text, "dependency util.ts"))
	assert.NotContains(t, text, "inlined dependency entry.ts")

	// Dependencies that match no category are still trimmed.
	assert.NoFileExists(t, filepath.Join(rep.Workspace, "helper.ts"))
	assert.NoFileExists(t, filepath.Join(rep.Workspace, "util.ts"))
}

func TestRun_ClosureSeesUntouchedTree(t *testing.T) {
	t.Parallel()
	src := writeTree(t, map[string]string{
		"a.ts": "import './b';\nsha256(x)\n",
		"b.ts": "import './a';\nrsa2048(y)\n",
	})
	e := newTestEngine(t)

	rep, err := e.Run(context.Background(), src, RunOptions{KeepWorkspace: true})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Augmented.Entries)

	a, err := os.ReadFile(filepath.Join(rep.Workspace, "a.ts"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(a), "inlined dependency"), "b is inlined as it was before augmentation")
	assert.NotContains(t, string(a), "inlined dependency a.ts")
}

func TestRun_SymlinkedEntryIsNotWritten(t *testing.T) {
	t.Parallel()
	outside := t.TempDir()
	shared := filepath.Join(outside, "shared.ts")
	original := "import { h } from './helper';\nconst c = AES.encrypt(h);\n"
	require.NoError(t, os.WriteFile(shared, []byte(original), 0o644))

	src := writeTree(t, map[string]string{"helper.ts": "export const h = 1;\n"})
	require.NoError(t, os.Symlink(shared, filepath.Join(src, "shared.ts")))
	e := newTestEngine(t)

	rep, err := e.Run(context.Background(), src, RunOptions{KeepWorkspace: true})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Augmented.Entries)

	data, err := os.ReadFile(shared)
	require.NoError(t, err)
	assert.Equal(t, original, string(data), "file outside the workspace is untouched")
}

func TestRun_DependencyOutsideWorkspaceIsNotInlined(t *testing.T) {
	t.Parallel()
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.ts")
	require.NoError(t, os.WriteFile(secret, []byte("export const s = 'outside-secret';\n"), 0o644))

	src := writeTree(t, map[string]string{
		"entry.ts": "import { s } from './secret';\nconst c = AES.encrypt(s);\n",
	})
	require.NoError(t, os.Symlink(secret, filepath.Join(src, "secret.ts")))
	e := newTestEngine(t)

	rep, err := e.Run(context.Background(), src, RunOptions{KeepWorkspace: true})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Augmented.Entries)

	data, err := os.ReadFile(filepath.Join(rep.Workspace, "entry.ts"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "outside-secret")
	assert.FileExists(t, secret)
}

func TestRun_AliasLinkAppendsOnce(t *testing.T) {
	t.Parallel()
	src := writeTree(t, map[string]string{
		"a.ts":      "import { h } from './helper';\nconst c = AES.encrypt(h);\n",
		"helper.ts": "export const h = 1;\n",
	})
	require.NoError(t, os.Symlink("a.ts", filepath.Join(src, "alias.ts")))
	e := newTestEngine(t)

	rep, err := e.Run(context.Background(), src, RunOptions{KeepWorkspace: true})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Augmented.Entries)

	data, err := os.ReadFile(filepath.Join(rep.Workspace, "a.ts"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "inlined dependency helper.ts"))
}

func TestRun_CollectsASTFailures(t *testing.T) {
	t.Parallel()
	src := writeTree(t, map[string]string{
		"good.ts": "hash(x)\n",
		"bad.ts":  "hash(y)\n",
	})
	e := newTestEngine(t)

	rep, err := e.Run(context.Background(), src, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, StateDone, rep.State)
	assert.Equal(t, 1, rep.ASTsAttached)
	require.Len(t, rep.ASTFailures, 1)
	assert.Equal(t, "bad.ts", filepath.Base(rep.ASTFailures[0].FilePath))
	assert.Equal(t, "parse failed", rep.ASTFailures[0].Error)
}

func TestRun_InvalidSourceFailsAtAcquisition(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	rep, err := e.Run(context.Background(), "ftp://example.com/repo.git", RunOptions{})
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StateAcquired, se.Stage)
	assert.ErrorIs(t, err, workspace.ErrInvalidURL)
	assert.Equal(t, StateFailed, rep.State)
	assert.Equal(t, "repo.git", rep.Name)
}

func TestRun_RemovesWorkspace(t *testing.T) {
	t.Parallel()
	src := writeTree(t, map[string]string{"a.ts": "token\n"})
	acq := &trackingAcquirer{inner: workspace.LocalAcquirer{BaseDir: t.TempDir()}}
	e := newTestEngine(t, WithAcquirer(acq))

	rep, err := e.Run(context.Background(), src, RunOptions{})
	require.NoError(t, err)
	assert.Empty(t, rep.Workspace)
	require.Len(t, acq.issued, 1)
	assert.NoDirExists(t, acq.issued[0].Dir)
}

func TestRun_PersistenceFailureIsFatal(t *testing.T) {
	t.Parallel()
	src := writeTree(t, map[string]string{"a.ts": "token\n"})
	acq := &trackingAcquirer{inner: workspace.LocalAcquirer{BaseDir: t.TempDir()}}
	e := newTestEngine(t, WithAcquirer(acq))
	acq.hook = func() { e.Store().DB().Close() }

	rep, err := e.Run(context.Background(), src, RunOptions{})
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StateCategoryTrimmed, se.Stage)
	assert.Equal(t, StateFailed, rep.State)
	require.Len(t, acq.issued, 1)
	assert.NoDirExists(t, acq.issued[0].Dir, "workspace removed on failure")
}

func TestRun_Reset(t *testing.T) {
	t.Parallel()
	src := writeTree(t, map[string]string{"a.ts": "secret\n"})
	e := newTestEngine(t)

	_, err := e.Run(context.Background(), src, RunOptions{})
	require.NoError(t, err)
	_, err = e.Run(context.Background(), src, RunOptions{})
	require.NoError(t, err)
	projects, _, _, err := e.Store().Counts()
	require.NoError(t, err)
	assert.Equal(t, 2, projects)

	_, err = e.Run(context.Background(), src, RunOptions{Reset: true})
	require.NoError(t, err)
	projects, files, asts, err := e.Store().Counts()
	require.NoError(t, err)
	assert.Equal(t, 1, projects)
	assert.Equal(t, 1, files)
	assert.Equal(t, 1, asts)
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()
	src := writeTree(t, map[string]string{"a.ts": "secret\n"})
	e := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := e.Run(ctx, src, RunOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateFailed, rep.State)
}

// =============================================================================
// Artifacts
// =============================================================================

func TestRun_WritesArtifacts(t *testing.T) {
	t.Parallel()
	src := writeTree(t, map[string]string{
		"a.ts": "AES.encrypt(x)\n",
		"b.ts": "verify(sig)\n",
	})
	out := filepath.Join(t.TempDir(), "out")
	synth := &fakeSynth{}
	e := newTestEngine(t, WithOutputDir(out), WithSynthesizer(synth))

	rep, err := e.Run(context.Background(), src, RunOptions{CBOM: true})
	require.NoError(t, err)
	assert.Equal(t, StateDone, rep.State)
	assert.Equal(t, 2, synth.calls)
	assert.Equal(t, 2, rep.CBOMResults)
	assert.Empty(t, rep.CBOMFailures)
	assert.Len(t, rep.Artifacts, 5)

	var matches map[string][]string
	readJSON(t, filepath.Join(out, "matches.json"), &matches)
	assert.Equal(t, []string{"a.ts"}, baseNames(matches["aes"]))
	assert.Equal(t, []string{"b.ts"}, baseNames(matches["signing"]))

	var export ASTExport
	readJSON(t, filepath.Join(out, "asts.json"), &export)
	assert.Equal(t, e.Store().Path(), export.DatabaseReference)
	assert.Equal(t, 2, export.TotalFiles)
	require.Len(t, export.Files, 2)
	assert.JSONEq(t, `{"ok":true,"language":"typescript","ast":{"type":"program","file":"a.ts"}}`, string(export.Files[0].AST))

	var raw []map[string]any
	readJSON(t, filepath.Join(out, "cbom_raw.json"), &raw)
	require.Len(t, raw, 2)
	assert.Equal(t, "gpt-4.1-mini", raw[0]["model"])

	var iso []map[string]any
	readJSON(t, filepath.Join(out, "cbom_iso.json"), &iso)
	require.Len(t, iso, 2)
	assert.Contains(t, iso[0], "mode")

	var clean []map[string]any
	readJSON(t, filepath.Join(out, "cbom_clean.json"), &clean)
	require.Len(t, clean, 2)
	assert.Equal(t, "AES", clean[0]["algorithm"])
	assert.NotContains(t, clean[0], "mode")
	assert.NotContains(t, clean[0], "key_size")
}

func TestRun_CBOMWithoutSynthesizer(t *testing.T) {
	t.Parallel()
	src := writeTree(t, map[string]string{"a.ts": "secret\n"})
	e := newTestEngine(t)

	rep, err := e.Run(context.Background(), src, RunOptions{CBOM: true})
	require.ErrorIs(t, err, ErrNoSynthesizer)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StateCBOMSynthesized, se.Stage)
	assert.Equal(t, 1, rep.ASTsAttached)
}

func TestExportASTs_UnknownProject(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	_, err := e.ExportASTs("missing")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestExportASTs_NonJSONPayload(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	pid, err := e.Store().InsertProject("p")
	require.NoError(t, err)
	fid, err := e.Store().InsertFile(pid, "/w/a.ts")
	require.NoError(t, err)
	_, err = e.Store().InsertAST(fid, "not json")
	require.NoError(t, err)

	export, err := e.ExportASTs(pid)
	require.NoError(t, err)
	require.Len(t, export.Files, 1)
	assert.Equal(t, `"not json"`, string(export.Files[0].AST))
	assert.Equal(t, "/w/a.ts", export.Files[0].FileName)
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

// =============================================================================
// Project management
// =============================================================================

func TestDeleteProject_Cascades(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	pid, err := e.Store().InsertProject("p")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		fid, err := e.Store().InsertFile(pid, fmt.Sprintf("/w/%d.ts", i))
		require.NoError(t, err)
		for j := 0; j < 2 && i*2+j < 5; j++ {
			_, err := e.Store().InsertAST(fid, "{}")
			require.NoError(t, err)
		}
	}
	projects, files, asts, err := e.Store().Counts()
	require.NoError(t, err)
	require.Equal(t, []int{1, 3, 5}, []int{projects, files, asts})

	require.NoError(t, e.DeleteProject(pid))
	projects, files, asts, err = e.Store().Counts()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0}, []int{projects, files, asts})

	assert.ErrorIs(t, e.DeleteProject(pid), ErrProjectNotFound)
}

func TestProjectsAndReset(t *testing.T) {
	t.Parallel()
	src := writeTree(t, map[string]string{"a.ts": "pbkdf2\n", "b.ts": "bcrypt\n"})
	e := newTestEngine(t)
	rep, err := e.Run(context.Background(), src, RunOptions{Name: "one"})
	require.NoError(t, err)

	stats, err := e.Projects()
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, rep.ProjectID, stats[0].ID)
	assert.Equal(t, "one", stats[0].Name)
	assert.Equal(t, 2, stats[0].FileCount)
	assert.Equal(t, 2, stats[0].ASTCount)

	require.NoError(t, e.Reset())
	stats, err = e.Projects()
	require.NoError(t, err)
	assert.Empty(t, stats)
}

// =============================================================================
// Default extractor
// =============================================================================

func TestRun_TreeSitterExtractor(t *testing.T) {
	t.Parallel()
	src := writeTree(t, map[string]string{
		"lib/cipher.ts": "import crypto from 'crypto';\nexport const c = crypto.createCipheriv('aes-256-gcm', k, iv);\n",
	})
	dbPath := filepath.Join(t.TempDir(), "test.db")
	e, err := New(dbPath, WithConfig(testConfig(t)))
	require.NoError(t, err)
	defer e.Close()

	rep, err := e.Run(context.Background(), src, RunOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, rep.ASTsAttached)

	asts, err := e.Store().ASTsByProject(rep.ProjectID)
	require.NoError(t, err)
	require.Len(t, asts, 1)

	var env struct {
		OK       bool           `json:"ok"`
		Language string         `json:"language"`
		AST      map[string]any `json:"ast"`
	}
	require.NoError(t, json.Unmarshal([]byte(asts[0].Payload), &env))
	assert.True(t, env.OK)
	assert.Equal(t, "typescript", env.Language)
	assert.Equal(t, "program", env.AST["type"])
}

// =============================================================================
// Fixture tree
// =============================================================================

func TestRun_WebappFixture(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.AST.TransformScript = filepath.Join("scripts", "transforms", "strip_comments.risor")
	e, err := New(filepath.Join(t.TempDir(), "test.db"), WithConfig(cfg))
	require.NoError(t, err)
	defer e.Close()

	rep, err := e.Run(context.Background(), filepath.Join("testdata", "webapp"), RunOptions{KeepWorkspace: true})
	require.NoError(t, err)

	assert.Equal(t, "webapp", rep.Name)
	assert.Equal(t, 2, rep.Filtered.Deleted, "package.json and README.md")
	assert.Equal(t, AugmentCounts{Entries: 1, Inlined: 1}, rep.Augmented)
	assert.Equal(t, 2, rep.Trimmed.Kept)
	assert.Equal(t, 2, rep.Trimmed.Removed)
	assert.Equal(t, 2, rep.Trimmed.RemovedDirs, "src/ui and src/util")
	assert.Equal(t, []string{"cipher.ts"}, baseNames(rep.Matches["aes"]))
	assert.ElementsMatch(t, []string{"cipher.ts", "keys.ts"}, baseNames(rep.Matches["keys"]))
	assert.DirExists(t, filepath.Join(rep.Workspace, "node_modules", "left-pad"))
	assert.NoDirExists(t, filepath.Join(rep.Workspace, "src", "ui"))

	asts, err := e.Store().ASTsByProject(rep.ProjectID)
	require.NoError(t, err)
	require.Len(t, asts, 2)
	for _, a := range asts {
		assert.Contains(t, a.Payload, `"type":"program"`)
		assert.NotContains(t, a.Payload, `"type":"comment"`, a.FilePath)
	}
}

func TestNew_OutlineTransform(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.AST.TransformScript = filepath.Join("scripts", "transforms", "outline.risor")
	e, err := New(filepath.Join(t.TempDir(), "test.db"), WithConfig(cfg))
	require.NoError(t, err)
	defer e.Close()

	payload, err := e.extractor.Extract(context.Background(), filepath.Join("testdata", "webapp", "src", "crypto", "cipher.ts"))
	require.NoError(t, err)
	assert.NotContains(t, payload, `"type":"comment"`)
	assert.NotContains(t, payload, `"type":"call_expression"`, "deeper levels are dropped")
}
