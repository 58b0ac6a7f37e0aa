package store

import "time"

type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// File is a tracked source file that survived filtering. Path is recorded as
// given at insertion time.
type File struct {
	ID        string
	Path      string
	ProjectID string
}

// AST is a stored syntax tree joined with the path of the file it belongs to.
type AST struct {
	ID       string `json:"ast_id"`
	Payload  string `json:"ast"`
	FilePath string `json:"file_name"`
}

// ProjectStats summarizes the rows owned by a project.
type ProjectStats struct {
	Project
	FileCount int
	ASTCount  int
}
