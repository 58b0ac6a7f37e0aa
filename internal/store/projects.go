package store

import (
	"database/sql"
	"fmt"
)

// --- Project operations ---

func (s *Store) InsertProject(name string) (string, error) {
	id := newID()
	if _, err := s.db.Exec("INSERT INTO projects (id, name) VALUES (?, ?)", id, name); err != nil {
		return "", fmt.Errorf("insert project: %w", err)
	}
	return id, nil
}

func (s *Store) ProjectByID(id string) (*Project, error) {
	p := &Project{}
	err := s.db.QueryRow(
		"SELECT id, name, created_at FROM projects WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("project by id: %w", err)
	}
	return p, nil
}

// Projects lists every project with its file and AST counts, oldest first.
func (s *Store) Projects() ([]*ProjectStats, error) {
	rows, err := s.db.Query(`
		SELECT p.id, p.name, p.created_at,
		       (SELECT COUNT(*) FROM project_files f WHERE f.project_id = p.id),
		       (SELECT COUNT(*) FROM file_asts a
		          JOIN project_files f ON a.file_id = f.id
		         WHERE f.project_id = p.id)
		FROM projects p
		ORDER BY p.created_at, p.id`)
	if err != nil {
		return nil, fmt.Errorf("projects: %w", err)
	}
	defer rows.Close()
	var out []*ProjectStats
	for rows.Next() {
		ps := &ProjectStats{}
		if err := rows.Scan(&ps.ID, &ps.Name, &ps.CreatedAt, &ps.FileCount, &ps.ASTCount); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

// DeleteProject removes a project. Its files and their ASTs are removed by
// the ON DELETE CASCADE rules within the same statement.
func (s *Store) DeleteProject(id string) error {
	if _, err := s.db.Exec("DELETE FROM projects WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// --- File operations ---

// InsertFile records a tracked file. Paths are not deduplicated.
func (s *Store) InsertFile(projectID, path string) (string, error) {
	id := newID()
	if _, err := s.db.Exec(
		"INSERT INTO project_files (id, path, project_id) VALUES (?, ?, ?)",
		id, path, projectID,
	); err != nil {
		return "", fmt.Errorf("insert file: %w", err)
	}
	return id, nil
}

func (s *Store) FilesByProject(projectID string) ([]*File, error) {
	rows, err := s.db.Query(
		"SELECT id, path, project_id FROM project_files WHERE project_id = ? ORDER BY path, id", projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("files by project: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.ProjectID); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// --- AST operations ---

func (s *Store) InsertAST(fileID, payload string) (string, error) {
	id := newID()
	if _, err := s.db.Exec(
		"INSERT INTO file_asts (id, file_id, payload) VALUES (?, ?, ?)",
		id, fileID, payload,
	); err != nil {
		return "", fmt.Errorf("insert ast: %w", err)
	}
	return id, nil
}

// ASTsByProject returns every AST owned by the project's files, joined with
// the file path.
func (s *Store) ASTsByProject(projectID string) ([]*AST, error) {
	rows, err := s.db.Query(`
		SELECT a.id, a.payload, f.path
		FROM file_asts a
		JOIN project_files f ON a.file_id = f.id
		WHERE f.project_id = ?
		ORDER BY f.path, a.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("asts by project: %w", err)
	}
	defer rows.Close()
	var asts []*AST
	for rows.Next() {
		a := &AST{}
		if err := rows.Scan(&a.ID, &a.Payload, &a.FilePath); err != nil {
			return nil, fmt.Errorf("scan ast: %w", err)
		}
		asts = append(asts, a)
	}
	return asts, rows.Err()
}

// Counts returns the total number of rows in each table.
func (s *Store) Counts() (projects, files, asts int, err error) {
	err = s.db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM projects),
		       (SELECT COUNT(*) FROM project_files),
		       (SELECT COUNT(*) FROM file_asts)`,
	).Scan(&projects, &files, &asts)
	if err != nil {
		err = fmt.Errorf("counts: %w", err)
	}
	return projects, files, asts, err
}
