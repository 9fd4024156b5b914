package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlang/sqtest/internal/config"
	"github.com/sqlang/sqtest/internal/corpus"
	"github.com/sqlang/sqtest/internal/harness"
	"github.com/sqlang/sqtest/internal/store"
	"github.com/sqlang/sqtest/internal/toolchain"
)

// DefaultManifest is used when the run command gets no positional argument.
const DefaultManifest = "suite.yaml"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	FailFast  bool
	Filter    string
	Database  string
	SkipBuild bool
}

// RunReport is the JSON payload of a suite run.
type RunReport struct {
	RunID string `json:"run_id,omitempty"`
	*harness.SuiteResult
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [suite.yaml]",
		Short: "Run the conformance suite",
		Long: `Run the conformance suite described by a manifest.

Builds the compiler (unless --skip-build), then for every positive case
compiles, links against the runtime library, executes, and compares stdout
against the golden file. Negative-corpus cases pass when the compiler
rejects them.

Exit codes:
  0 - All cases passed
  1 - One or more cases failed
  2 - Harness error (broken manifest, missing golden file, missing tool)

Examples:
  sqtest run
  sqtest run suites/x86.yaml --fail-fast
  sqtest run --filter "sum*" --format json
  sqtest run --db history.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest := DefaultManifest
			if len(args) == 1 {
				manifest = args[0]
			}
			return runSuite(opts, manifest, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "abort the suite at the first failing case")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter cases by glob pattern")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record run history to this SQLite database")
	cmd.Flags().BoolVar(&opts.SkipBuild, "skip-build", false, "skip the compiler build step")

	return cmd
}

func runSuite(opts *RunOptions, manifestPath string, cmd *cobra.Command) error {
	w := cmd.OutOrStdout()

	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg, err := config.Load(manifestPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load manifest", err)
	}

	policyName := cfg.Policy
	if opts.FailFast {
		policyName = "fail-fast"
	}
	policy, err := harness.ParsePolicy(policyName)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid policy", err)
	}

	loader := &corpus.Loader{
		Root:         cfg.Corpus.Dir,
		NegativeDir:  cfg.Corpus.NegativeDir,
		SourceExt:    cfg.Corpus.SourceExt,
		GoldenSuffix: cfg.Corpus.GoldenSuffix,
	}
	cases, err := loader.Load()
	if err != nil {
		// A malformed corpus (e.g. missing golden) aborts before any
		// case is attempted.
		return WrapExitError(ExitCommandError, "failed to load corpus", err)
	}
	cases, err = filterCases(cases, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	if len(cases) == 0 {
		if opts.Format == "json" {
			return writeJSON(w, CLIResponse{Status: "ok", Data: RunReport{SuiteResult: &harness.SuiteResult{}}})
		}
		fmt.Fprintln(w, "No cases found.")
		return nil
	}

	runner := &harness.Runner{
		Compiler: &toolchain.Compiler{Argv: cfg.Compiler.Command, Output: cfg.Compiler.Output},
		Linker:   &toolchain.Linker{Argv: cfg.Linker.Command, Runtime: cfg.Linker.Runtime, Output: config.DefaultExecutable},
		Invoker:  &toolchain.Invoker{Timeout: time.Duration(cfg.Timeout), Logger: logger},
		Policy:   policy,
		Logger:   logger,
	}
	if opts.Format != "json" {
		runner.OnResult = func(cr harness.CaseResult) {
			printCaseResult(w, cr)
		}
	}

	ctx := cmd.Context()
	if !opts.SkipBuild {
		if err := runner.BuildCompiler(ctx, filepath.Dir(manifestAbs(manifestPath)), cfg.Compiler.Build); err != nil {
			return WrapExitError(ExitCommandError, "compiler build failed", err)
		}
	}

	startedAt := time.Now()
	suite, runErr := runner.Run(ctx, cases)

	// Record whatever completed, including partial fail-fast or aborted
	// suites, so history reflects every run.
	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Database
	}
	var runID string
	if dbPath != "" && len(suite.Cases) > 0 {
		runID, err = recordSuite(ctx, dbPath, startedAt, policyName, suite)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
	}

	if runErr != nil {
		if opts.Format == "json" {
			_ = writeJSON(w, CLIResponse{
				Status: "error",
				Data:   RunReport{RunID: runID, SuiteResult: suite},
				Error:  &CLIError{Code: "E_HARNESS", Message: runErr.Error()},
			})
		}
		return WrapExitError(ExitCommandError, "harness error", runErr)
	}

	if opts.Format == "json" {
		return outputRunJSON(w, RunReport{RunID: runID, SuiteResult: suite})
	}
	return outputRunText(w, suite)
}

func manifestAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// filterCases keeps cases whose base name (without the source extension)
// matches the glob pattern. An empty pattern keeps everything.
func filterCases(cases []corpus.Case, filter string) ([]corpus.Case, error) {
	if filter == "" {
		return cases, nil
	}
	var out []corpus.Case
	for _, c := range cases {
		base := filepath.Base(c.Name)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		matched, err := filepath.Match(filter, name)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if matched {
			out = append(out, c)
		}
	}
	return out, nil
}

func recordSuite(ctx context.Context, dbPath string, startedAt time.Time, policy string, suite *harness.SuiteResult) (string, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer st.Close()
	return st.RecordSuite(ctx, startedAt, policy, suite)
}

// printCaseResult emits the per-case glyph line, plus failure detail with
// the stage, kind, and for output mismatches both texts verbatim.
func printCaseResult(w io.Writer, cr harness.CaseResult) {
	if cr.Verdict == harness.VerdictPass {
		fmt.Fprintf(w, "✓ %s\n", cr.Name)
		return
	}

	fmt.Fprintf(w, "✗ %s (%s: %s)\n", cr.Name, cr.Stage, cr.Kind)
	if cr.Diagnostic != "" {
		for _, line := range strings.Split(strings.TrimRight(cr.Diagnostic, "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	if cr.Kind == harness.KindOutputMismatch {
		fmt.Fprintln(w, "--- expected ---")
		fmt.Fprint(w, cr.Expected)
		if !strings.HasSuffix(cr.Expected, "\n") {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, "--- actual ---")
		fmt.Fprint(w, cr.Actual)
		if !strings.HasSuffix(cr.Actual, "\n") {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, "---")
	}
}

func outputRunJSON(w io.Writer, report RunReport) error {
	status := "ok"
	resp := CLIResponse{Status: status, Data: report}
	if !report.Pass() {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    "E_SUITE_FAILED",
			Message: fmt.Sprintf("%d case(s) failed", report.Failed),
		}
	}
	if err := writeJSON(w, resp); err != nil {
		return err
	}
	if !report.Pass() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d case(s) failed", report.Failed))
	}
	return nil
}

func outputRunText(w io.Writer, suite *harness.SuiteResult) error {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Suite Summary: %d passed, %d failed, %d total\n", suite.Passed, suite.Failed, suite.Total)
	if suite.Aborted {
		fmt.Fprintln(w, "Suite aborted at first failure (fail-fast).")
	}

	if !suite.Pass() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d case(s) failed", suite.Failed))
	}
	fmt.Fprintln(w, "✓ All cases passed")
	return nil
}
