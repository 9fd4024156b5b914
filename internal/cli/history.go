package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqlang/sqtest/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	RunID    string
	Limit    int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded suite runs",
		Long: `Show suite runs recorded with --db.

Without --run, lists recent runs newest first. With --run, shows the
per-case verdicts of one run in corpus order.

Examples:
  sqtest history --db history.db
  sqtest history --db history.db --run 8f14e45f-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the history database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show per-case results for one run")
	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "maximum number of runs to list")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	w := cmd.OutOrStdout()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	defer st.Close()

	ctx := cmd.Context()

	if opts.RunID != "" {
		rows, err := st.CaseResults(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read case results", err)
		}
		if opts.Format == "json" {
			return writeJSON(w, CLIResponse{Status: "ok", Data: rows})
		}
		for _, row := range rows {
			glyph := "✓"
			if row.Verdict != "pass" {
				glyph = "✗"
			}
			fmt.Fprintf(w, "%s %s", glyph, row.Name)
			if row.Kind != "" {
				fmt.Fprintf(w, " (%s: %s)", row.Stage, row.Kind)
			}
			fmt.Fprintln(w)
		}
		return nil
	}

	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if opts.Format == "json" {
		return writeJSON(w, CLIResponse{Status: "ok", Data: runs})
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No recorded runs.")
		return nil
	}
	for _, r := range runs {
		status := "PASS"
		if !r.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s  %s  %-9s  %d/%d passed  %s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Policy, r.Passed, r.Total, status)
	}
	return nil
}
