package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sqlang/sqtest/internal/config"
	"github.com/sqlang/sqtest/internal/corpus"
)

// ValidationResult holds manifest and corpus validation results.
type ValidationResult struct {
	Valid  bool                     `json:"valid"`
	Errors []config.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [suite.yaml]",
		Short: "Validate the suite manifest and corpus layout",
		Long: `Validate the suite manifest against its schema and check the corpus
invariants without running any tool: every positive source must have a
golden companion, and negative-corpus sources must have none.

Reports all violations, not just the first.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest := DefaultManifest
			if len(args) == 1 {
				manifest = args[0]
			}
			return runValidate(rootOpts, manifest, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, manifestPath string, cmd *cobra.Command) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read manifest", err)
	}

	_, errs := config.Parse(data)
	if len(errs) > 0 {
		return outputValidation(opts, cmd, ValidationResult{Valid: false, Errors: errs})
	}

	// Schema is clean; re-load with path resolution and check the
	// corpus invariants the run command would trip over.
	cfg, err := config.Load(manifestPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load manifest", err)
	}

	loader := &corpus.Loader{
		Root:         cfg.Corpus.Dir,
		NegativeDir:  cfg.Corpus.NegativeDir,
		SourceExt:    cfg.Corpus.SourceExt,
		GoldenSuffix: cfg.Corpus.GoldenSuffix,
	}

	var corpusErrs []config.ValidationError
	if _, err := loader.Load(); err != nil {
		corpusErrs = append(corpusErrs, config.ValidationError{Field: "corpus", Message: err.Error()})
	} else {
		stray, err := loader.StrayGoldens()
		if err != nil {
			corpusErrs = append(corpusErrs, config.ValidationError{Field: "corpus", Message: err.Error()})
		}
		for _, path := range stray {
			corpusErrs = append(corpusErrs, config.ValidationError{
				Field:   "corpus",
				Message: fmt.Sprintf("negative corpus must not carry golden files: %s", path),
			})
		}
	}

	return outputValidation(opts, cmd, ValidationResult{
		Valid:  len(corpusErrs) == 0,
		Errors: corpusErrs,
	})
}

func outputValidation(opts *RootOptions, cmd *cobra.Command, result ValidationResult) error {
	w := cmd.OutOrStdout()

	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    "E_INVALID_SUITE",
				Message: fmt.Sprintf("%d validation error(s)", len(result.Errors)),
			}
		}
		if err := writeJSON(w, resp); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Fprintln(w, "✓ Suite is valid")
	} else {
		for _, e := range result.Errors {
			if e.Field != "" {
				fmt.Fprintf(w, "✗ %s: %s\n", e.Field, e.Message)
			} else {
				fmt.Fprintf(w, "✗ %s\n", e.Message)
			}
		}
		fmt.Fprintf(w, "\n%d validation error(s)\n", len(result.Errors))
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(result.Errors)))
	}
	return nil
}
