package main

import (
	"github.com/jward/cryptosieve/internal/inventory"
	"github.com/spf13/cobra"
)

func newInventoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inventory [path]",
		Short: "Print filesystem metadata for every entry under a directory",
		Long:  "Walks the tree without following symlinks and reports type, size, mode, ownership and inode for each entry.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			rep, err := inventory.Scan(root, a.logger)
			if err != nil {
				return a.outputError("inventory", err)
			}
			return a.outputResult(CLIResult{Command: "inventory", Results: rep})
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return a.outputError("config", err)
			}
			data, err := cfg.Marshal()
			if err != nil {
				return a.outputError("config", err)
			}
			_, err = a.out.Write(data)
			return err
		},
	}
}
