package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the resolved backend and graph count",
	Long: `status connects with the resolved configuration and prints a
single health view: which backend is active, which graph (if any) is
current, and how many graphs the session holds.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		st := sess.Status()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "backend:       %s\n", st.Backend)
		fmt.Fprintf(out, "current graph: %s\n", orNone(st.CurrentGraph))
		fmt.Fprintf(out, "graph count:   %d\n", st.GraphCount)
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
