package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestProject(t *testing.T, s *Store, name string) string {
	t.Helper()
	id, err := s.InsertProject(name)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func insertTestFile(t *testing.T, s *Store, projectID, path string) string {
	t.Helper()
	id, err := s.InsertFile(projectID, path)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func tableCount(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"projects", "project_files", "file_asts"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var mode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

func TestMigrate_ForeignKeysOn(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var on int
	require.NoError(t, s.db.QueryRow("PRAGMA foreign_keys").Scan(&on))
	assert.Equal(t, 1, on)
}

func TestNewStore_InvalidPath(t *testing.T) {
	t.Parallel()
	_, err := NewStore("/nonexistent/dir/db.sqlite")
	require.Error(t, err)
}

// =============================================================================
// Inserts & lookups
// =============================================================================

func TestProject_InsertAndRetrieve(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	id := insertTestProject(t, s, "editorconfig/editorconfig-core-js")
	got, err := s.ProjectByID(id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "editorconfig/editorconfig-core-js", got.Name)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestProject_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	got, err := s.ProjectByID("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsert_UniqueIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	p := insertTestProject(t, s, "p")

	seen := map[string]bool{p: true}
	for range 50 {
		id := insertTestFile(t, s, p, "/same/path.ts")
		assert.False(t, seen[id], "id %s reused", id)
		seen[id] = true
	}
}

func TestFile_DuplicatePathsAccepted(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	p := insertTestProject(t, s, "p")

	insertTestFile(t, s, p, "/repo/a.ts")
	insertTestFile(t, s, p, "/repo/a.ts")

	files, err := s.FilesByProject(p)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	for _, f := range files {
		assert.Equal(t, "/repo/a.ts", f.Path)
		assert.Equal(t, p, f.ProjectID)
	}
}

func TestFile_RequiresProject(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, err := s.InsertFile("no-such-project", "/a.ts")
	require.Error(t, err)
}

func TestAST_RequiresFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	_, err := s.InsertAST("no-such-file", `{}`)
	require.Error(t, err)
}

func TestASTsByProject_JoinsPath(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	p := insertTestProject(t, s, "p")
	other := insertTestProject(t, s, "other")

	f1 := insertTestFile(t, s, p, "/repo/b.ts")
	f2 := insertTestFile(t, s, p, "/repo/a.ts")
	f3 := insertTestFile(t, s, other, "/elsewhere/c.ts")

	a1, err := s.InsertAST(f1, `{"type":"program","n":1}`)
	require.NoError(t, err)
	_, err = s.InsertAST(f2, `{"type":"program","n":2}`)
	require.NoError(t, err)
	_, err = s.InsertAST(f3, `{"type":"program","n":3}`)
	require.NoError(t, err)

	asts, err := s.ASTsByProject(p)
	require.NoError(t, err)
	require.Len(t, asts, 2)
	assert.Equal(t, "/repo/a.ts", asts[0].FilePath)
	assert.Equal(t, "/repo/b.ts", asts[1].FilePath)
	assert.Equal(t, a1, asts[1].ID)
	assert.JSONEq(t, `{"type":"program","n":1}`, asts[1].Payload)
}

// =============================================================================
// Deletion
// =============================================================================

func TestDeleteProject_Cascades(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	p := insertTestProject(t, s, "p")

	files := []string{
		insertTestFile(t, s, p, "/r/1.ts"),
		insertTestFile(t, s, p, "/r/2.ts"),
		insertTestFile(t, s, p, "/r/3.ts"),
	}
	for i := range 5 {
		_, err := s.InsertAST(files[i%len(files)], `{}`)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, tableCount(t, s, "project_files"))
	assert.Equal(t, 5, tableCount(t, s, "file_asts"))

	require.NoError(t, s.DeleteProject(p))

	assert.Equal(t, 0, tableCount(t, s, "projects"))
	assert.Equal(t, 0, tableCount(t, s, "project_files"))
	assert.Equal(t, 0, tableCount(t, s, "file_asts"))
}

func TestDeleteProject_LeavesOtherProjects(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	p1 := insertTestProject(t, s, "one")
	p2 := insertTestProject(t, s, "two")
	f1 := insertTestFile(t, s, p1, "/one.ts")
	f2 := insertTestFile(t, s, p2, "/two.ts")
	_, err := s.InsertAST(f1, `{}`)
	require.NoError(t, err)
	_, err = s.InsertAST(f2, `{}`)
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(p1))

	files, err := s.FilesByProject(p2)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	asts, err := s.ASTsByProject(p2)
	require.NoError(t, err)
	assert.Len(t, asts, 1)
}

func TestClearAll(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	p := insertTestProject(t, s, "p")
	f := insertTestFile(t, s, p, "/a.ts")
	_, err := s.InsertAST(f, `{}`)
	require.NoError(t, err)

	require.NoError(t, s.ClearAll())

	projects, files, asts, err := s.Counts()
	require.NoError(t, err)
	assert.Zero(t, projects)
	assert.Zero(t, files)
	assert.Zero(t, asts)

	// Clearing an empty database is fine.
	require.NoError(t, s.ClearAll())
}

func TestProjects_Stats(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	p := insertTestProject(t, s, "p")
	f := insertTestFile(t, s, p, "/a.ts")
	insertTestFile(t, s, p, "/b.ts")
	_, err := s.InsertAST(f, `{}`)
	require.NoError(t, err)

	stats, err := s.Projects()
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "p", stats[0].Name)
	assert.Equal(t, 2, stats[0].FileCount)
	assert.Equal(t, 1, stats[0].ASTCount)
}
