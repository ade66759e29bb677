// Package main provides a CLI for running pgview command scripts against
// a chosen storage backend.
//
// The CLI supports:
//   - run: execute a batch script of pgview commands line by line
//   - status: report the current session's backend and graph count
//   - config: show the resolved startup configuration
//   - version: print version information
//
// cmd/pgview is a thin driver, not an interactive shell: it exists to
// wire pkg/catalog.Session to a chosen backend.Backend and a batch script,
// the way the teacher's cmd/melange wires its tooling packages to a flag
// set. There is no REPL, no HTTP server, and no bulk-ingestion tool here
// (spec.md's explicit non-goals) — only enough surface to drive the
// engine end to end for manual smoke-testing.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgview/pgview"
	"github.com/pgview/pgview/internal/config"
	"github.com/pgview/pgview/pkg/backend"
	"github.com/pgview/pgview/pkg/backend/memdb"
	"github.com/pgview/pgview/pkg/backend/postgres"
	"github.com/pgview/pgview/pkg/catalog"
)

var (
	// Global state set during PersistentPreRunE.
	cfg *config.Config

	// Persistent flags.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "pgview",
	Short: "Property-graph view engine command runner",
	Long: `pgview - property-graph view engine

Compiles Cypher-like transformation views and pattern queries over a
property graph into a backend-independent Datalog program, and runs it
against an in-memory or PostgreSQL backend.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command group IDs.
const (
	groupRun        = "run"
	groupIntrospect = "introspect"
	groupUtility    = "utility"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (properties format; default: all settings default)")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupRun, Title: "Run:"},
		&cobra.Group{ID: groupIntrospect, Title: "Introspect:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	runCmd.GroupID = groupRun
	rootCmd.AddCommand(runCmd)

	statusCmd.GroupID = groupIntrospect
	rootCmd.AddCommand(statusCmd)

	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command, exiting with the taxonomy's exit code
// (pgview.ExitCode) on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "error:", err)
		os.Exit(pgview.ExitCode(err))
	}
}

// newSession builds a Session with every wired backend registered, and
// connects it to cfg's chosen platform. If cfg.Workspace names a graph,
// it is created and selected so a script can start straight in on schema
// and query commands.
func newSession(ctx context.Context, cfg *config.Config) (*catalog.Session, error) {
	sess := catalog.NewSession(map[string]backend.Backend{
		"mem": memdb.New(),
		"pg":  postgres.New(),
	})
	if err := sess.Connect(ctx, cfg.Platform); err != nil {
		return nil, err
	}
	if cfg.Workspace != "" {
		if _, err := sess.CreateGraph(ctx, cfg.Workspace); err != nil {
			return nil, err
		}
		if err := sess.UseGraph(cfg.Workspace); err != nil {
			return nil, err
		}
	}
	return sess, nil
}
