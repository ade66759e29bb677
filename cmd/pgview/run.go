package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pgview/pgview/pkg/catalog"
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a batch script of pgview commands, one per line",
	Long: `run executes script line by line through catalog.Session.Execute,
stopping at the first command that fails. Blank lines and lines starting
with "#" are skipped, matching the comment convention of the config file
format (spec.md §6).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer func() { _ = f.Close() }()

		out := cmd.OutOrStdout()
		sc := bufio.NewScanner(f)
		line := 0
		for sc.Scan() {
			line++
			src := strings.TrimSpace(sc.Text())
			if src == "" || strings.HasPrefix(src, "#") {
				continue
			}
			res, err := sess.Execute(cmd.Context(), src)
			if err != nil {
				return fmt.Errorf("line %d: %q: %w", line, src, err)
			}
			printResult(out, res)
		}
		return sc.Err()
	},
}

// printResult renders a Result the way a script's author would want to
// see it echoed back: introspection text as-is, a query's answer tuples
// one per line, or nothing for a bare mutation.
func printResult(out io.Writer, res catalog.Result) {
	if res.Text != "" {
		fmt.Fprintln(out, res.Text)
	}
	if res.Tuples != nil {
		for _, t := range res.Tuples {
			fmt.Fprintln(out, strings.Join(t, "\t"))
		}
	} else if len(res.Vars) > 0 {
		fmt.Fprintf(out, "%d result(s)\n", res.Count)
	}
}
