package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved startup configuration",
	Long: `config prints every setting pgview resolved from --config, the
PGVIEW_* environment, and its defaults: platform, workspace, typecheck,
prunequery, ivm, answer (spec.md §6).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "platform   = %s\n", cfg.Platform)
		fmt.Fprintf(out, "workspace  = %s\n", cfg.Workspace)
		fmt.Fprintf(out, "typecheck  = %t\n", cfg.Typecheck)
		fmt.Fprintf(out, "prunequery = %t\n", cfg.Prunequery)
		fmt.Fprintf(out, "ivm        = %t\n", cfg.IVM)
		fmt.Fprintf(out, "answer     = %t\n", cfg.Answer)
		return nil
	},
}
