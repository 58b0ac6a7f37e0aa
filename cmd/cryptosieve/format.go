package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/jward/cryptosieve"
	"github.com/jward/cryptosieve/internal/inventory"
)

// CLIResult is the top-level JSON envelope for every command.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIProject is a JSON-friendly project listing row.
type CLIProject struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	Files     int    `json:"files"`
	ASTs      int    `json:"asts"`
}

func toCLIProject(s *cryptosieve.ProjectStats) CLIProject {
	return CLIProject{
		ID:        s.ID,
		Name:      s.Name,
		CreatedAt: s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Files:     s.FileCount,
		ASTs:      s.ASTCount,
	}
}

func (a *app) outputResult(result CLIResult) error {
	if a.format() == "text" {
		return outputResultText(a.out, result)
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// writeResult encodes result as JSON and returns err unchanged.
func (a *app) writeResult(result CLIResult, err error) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func (a *app) outputError(command string, err error) error {
	a.errorHandled = true
	if a.format() == "text" {
		fmt.Fprintf(a.errOut, "Error: %s\n", err)
		return err
	}
	return a.writeResult(CLIResult{Command: command, Error: err.Error()}, err)
}

// outputResultText dispatches to the text formatter for the result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case *cryptosieve.Report:
		formatReportText(w, v)
	case []CLIProject:
		formatProjectsText(w, v)
	case *cryptosieve.ASTExport:
		formatExportText(w, v)
	case *cryptosieve.CBOMRun:
		formatCBOMText(w, v)
	case *inventory.Report:
		formatInventoryText(w, v)
	case map[string]string:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s: %s\n", k, v[k])
		}
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

func formatReportText(w io.Writer, r *cryptosieve.Report) {
	fmt.Fprintf(w, "Project: %s (%s)\n", r.Name, r.ProjectID)
	fmt.Fprintf(w, "State: %s\n", r.State)
	fmt.Fprintf(w, "Extension filter: %d kept, %d deleted\n", r.Filtered.Kept, r.Filtered.Deleted)
	fmt.Fprintf(w, "Closure: %d entries, %d dependencies inlined\n", r.Augmented.Entries, r.Augmented.Inlined)
	fmt.Fprintf(w, "Trim: %d kept, %d removed\n", r.Trimmed.Kept, r.Trimmed.Removed)
	fmt.Fprintf(w, "ASTs: %d attached, %d failed\n", r.ASTsAttached, len(r.ASTFailures))
	if r.CBOMResults > 0 || len(r.CBOMFailures) > 0 {
		fmt.Fprintf(w, "CBOM: %d results, %d failed\n", r.CBOMResults, len(r.CBOMFailures))
	}
	if r.Workspace != "" {
		fmt.Fprintf(w, "Workspace: %s\n", r.Workspace)
	}
	fmt.Fprintln(w)

	cats := make([]string, 0, len(r.Matches))
	for c := range r.Matches {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tFILES")
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\t%d\n", c, len(r.Matches[c]))
	}
	tw.Flush()

	if len(r.ASTFailures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "AST failures:")
		for _, f := range r.ASTFailures {
			fmt.Fprintf(w, "  %s: %s\n", f.FilePath, f.Error)
		}
	}
	for _, p := range r.Artifacts {
		fmt.Fprintf(w, "Wrote %s\n", p)
	}
}

func formatProjectsText(w io.Writer, projects []CLIProject) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tFILES\tASTS\tCREATED")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", p.ID, p.Name, p.Files, p.ASTs, p.CreatedAt)
	}
	tw.Flush()
}

func formatExportText(w io.Writer, x *cryptosieve.ASTExport) {
	fmt.Fprintf(w, "Database: %s\n", x.DatabaseReference)
	fmt.Fprintf(w, "Files: %d\n", x.TotalFiles)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AST\tFILE\tBYTES")
	for _, f := range x.Files {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", f.ASTID, f.FileName, len(f.AST))
	}
	tw.Flush()
}

func formatCBOMText(w io.Writer, run *cryptosieve.CBOMRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tINPUT\tCHARS\tATTEMPTS")
	for _, r := range run.Results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", r.FileName, r.InputKind, r.InputChars, r.Attempts)
	}
	tw.Flush()
	for _, f := range run.Failures {
		fmt.Fprintf(w, "failed: %s: %s\n", f.FilePath, f.Error)
	}
	for _, p := range run.Artifacts {
		fmt.Fprintf(w, "Wrote %s\n", p)
	}
}

func formatInventoryText(w io.Writer, r *inventory.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tMODE\tSIZE\tPATH")
	for _, e := range r.Entries {
		path := e.Path
		if e.SymlinkTarget != "" {
			path += " -> " + e.SymlinkTarget
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.Type, e.Permissions.Mode, e.SizeBytes, path)
	}
	tw.Flush()
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
