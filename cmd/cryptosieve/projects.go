package main

import (
	"context"
	"fmt"

	"github.com/jward/cryptosieve"
	"github.com/spf13/cobra"
)

func newProjectsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List stored projects with their file and AST counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openEngine()
			if err != nil {
				return a.outputError("projects", err)
			}
			defer e.Close()

			stats, err := e.Projects()
			if err != nil {
				return a.outputError("projects", err)
			}
			projects := make([]CLIProject, 0, len(stats))
			for _, s := range stats {
				projects = append(projects, toCLIProject(s))
			}
			return a.outputResult(CLIResult{Command: "projects", Results: projects})
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <project-id>",
		Short: "Write the bulk AST export of a project",
		Long:  "Prints {database_reference, total_files, files} for the project, or writes asts.json into --out.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := a.v.GetString("out")
			e, err := a.openEngine(cryptosieve.WithOutputDir(out))
			if err != nil {
				return a.outputError("export", err)
			}
			defer e.Close()

			export, err := e.ExportASTs(args[0])
			if err != nil {
				return a.outputError("export", err)
			}
			if out == "" {
				return a.outputResult(CLIResult{Command: "export", Results: export})
			}
			path, err := e.WriteArtifact("asts.json", export)
			if err != nil {
				return a.outputError("export", err)
			}
			fmt.Fprintf(a.errOut, "Wrote %d trees to %s\n", export.TotalFiles, path)
			return nil
		},
	}
	cmd.Flags().String("out", "", "directory to write asts.json into (default: stdout)")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project together with its files and ASTs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openEngine()
			if err != nil {
				return a.outputError("delete", err)
			}
			defer e.Close()

			if err := e.DeleteProject(args[0]); err != nil {
				return a.outputError("delete", err)
			}
			return a.outputResult(CLIResult{Command: "delete", Results: map[string]string{"deleted": args[0]}})
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove every stored project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openEngine()
			if err != nil {
				return a.outputError("reset", err)
			}
			defer e.Close()

			if err := e.Reset(); err != nil {
				return a.outputError("reset", err)
			}
			fmt.Fprintf(a.errOut, "Cleared database: %s\n", e.Store().Path())
			return nil
		},
	}
}

func newCBOMCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cbom <project-id>",
		Short: "Synthesize CBOM entries from a project's stored ASTs",
		Long: "Sends each stored tree to the command configured under cbom.command and writes cbom_raw.json, " +
			"cbom_iso.json and cbom_clean.json into --out. Rate-limited calls are retried with linear backoff.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			e, err := a.openEngine(cryptosieve.WithOutputDir(a.v.GetString("out")))
			if err != nil {
				return a.outputError("cbom", err)
			}
			defer e.Close()

			run, err := e.SynthesizeCBOM(ctx, args[0])
			if err != nil {
				return a.outputError("cbom", err)
			}
			return a.outputResult(CLIResult{Command: "cbom", Results: run})
		},
	}
	cmd.Flags().String("out", "", "directory for the CBOM artifacts")
	cmd.Flags().String("model", "", "model identifier passed to the synthesizer")
	return cmd
}
