package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jward/cryptosieve"
	"github.com/jward/cryptosieve/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	a := newApp(os.Stdout, os.Stderr)
	if err := newRootCmd(a).Execute(); err != nil {
		if !a.errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

// app carries the state shared by every command: the flag/env binding, the
// output streams and whether an error was already reported.
type app struct {
	v            *viper.Viper
	out          io.Writer
	errOut       io.Writer
	logger       *slog.Logger
	errorHandled bool
}

func newApp(out, errOut io.Writer) *app {
	v := viper.New()
	v.SetEnvPrefix("CRYPTOSIEVE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &app{v: v, out: out, errOut: errOut}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "cryptosieve",
		Short:         "Triage a repository down to its cryptography-relevant files",
		Long:          "cryptosieve copies or clones a source tree, prunes it to the files matching cryptographic patterns, inlines their local imports, and stores their syntax trees in SQLite for CBOM generation.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			a.logger = newLogger(a.errOut, a.v.GetBool("verbose"))
			slog.SetDefault(a.logger)
			return validateFormat(a.format())
		},
		// No Run; prints help by default.
	}

	pf := root.PersistentFlags()
	pf.String("db", "cryptosieve.db", "SQLite database path")
	pf.String("config", "", "YAML configuration file (default: built-in configuration)")
	pf.String("format", "json", "output format: json|text")
	pf.Bool("verbose", false, "log debug events to stderr")

	root.AddCommand(
		newRunCmd(a),
		newProjectsCmd(a),
		newExportCmd(a),
		newDeleteCmd(a),
		newResetCmd(a),
		newCBOMCmd(a),
		newInventoryCmd(a),
		newConfigCmd(a),
	)
	return root
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (a *app) format() string {
	return a.v.GetString("format")
}

// loadConfig reads the --config file over the built-in defaults.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.v.GetString("config"))
	if err != nil {
		return nil, err
	}
	if model := a.v.GetString("model"); model != "" {
		cfg.CBOM.Model = model
	}
	return cfg, nil
}

// openEngine builds an Engine from the database flag and configuration.
func (a *app) openEngine(opts ...cryptosieve.Option) (*cryptosieve.Engine, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	base := []cryptosieve.Option{
		cryptosieve.WithConfig(cfg),
		cryptosieve.WithLogger(a.logger),
	}
	e, err := cryptosieve.New(a.v.GetString("db"), append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return e, nil
}
