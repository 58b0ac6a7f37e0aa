package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jward/cryptosieve"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [url]",
		Short: "Run the triage pipeline on a repository URL or a local directory",
		Long: "Clones the repository (or copies --dir) into a fresh workspace, deletes files outside the extension allow-list, " +
			"inlines each matching file's local imports, trims files matching no category, and stores a syntax tree for every survivor.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPipeline(cmd.Context(), args)
		},
	}
	f := cmd.Flags()
	f.String("dir", "", "local directory to analyze instead of a URL")
	f.String("name", "", "project name (default: derived from the source)")
	f.String("out", "", "directory for matches.json, asts.json and CBOM artifacts")
	f.Bool("reset", false, "clear all stored projects before the run")
	f.Bool("cbom", false, "synthesize a CBOM for every stored tree")
	f.String("model", "", "model identifier passed to the CBOM synthesizer")
	f.Bool("keep-workspace", false, "leave the pruned workspace on disk")
	return cmd
}

func (a *app) runPipeline(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	source, err := resolveSource(args, a.v.GetString("dir"))
	if err != nil {
		return a.outputError("run", err)
	}

	start := time.Now()
	e, err := a.openEngine(cryptosieve.WithOutputDir(a.v.GetString("out")))
	if err != nil {
		return a.outputError("run", err)
	}
	defer e.Close()

	rep, err := e.Run(ctx, source, cryptosieve.RunOptions{
		Name:          a.v.GetString("name"),
		Reset:         a.v.GetBool("reset"),
		CBOM:          a.v.GetBool("cbom"),
		KeepWorkspace: a.v.GetBool("keep-workspace"),
	})
	if err != nil {
		if rep != nil && a.format() == "json" {
			a.errorHandled = true
			return a.writeResult(CLIResult{Command: "run", Results: rep, Error: err.Error()}, err)
		}
		return a.outputError("run", err)
	}

	fmt.Fprintf(a.errOut, "Triaged %s in %s\n", source, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(a.errOut, "Database: %s\n", e.Store().Path())
	return a.outputResult(CLIResult{Command: "run", Results: rep})
}

// resolveSource returns the URL argument, or the absolute path of --dir.
// Exactly one of the two must be given.
func resolveSource(args []string, dir string) (string, error) {
	switch {
	case dir != "" && len(args) > 0:
		return "", fmt.Errorf("give either a URL or --dir, not both")
	case dir != "":
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("resolving path %q: %w", dir, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("directory not found: %s", abs)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("not a directory: %s", abs)
		}
		return abs, nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("a repository URL or --dir is required")
	}
}
