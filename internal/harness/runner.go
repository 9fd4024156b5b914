// Package harness sequences the conformance pipeline for every case:
// compile, link, execute, compare. A single Runner serves both run
// policies; fail-fast and continue-and-report differ only in whether the
// loop stops at the first failing case.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sqlang/sqtest/internal/corpus"
	"github.com/sqlang/sqtest/internal/toolchain"
)

// Policy selects how the suite reacts to a failing case.
type Policy int

const (
	// Continue runs every case regardless of prior failures and
	// reports an aggregate.
	Continue Policy = iota

	// FailFast aborts the remaining suite at the first failing case.
	FailFast
)

// ParsePolicy maps the manifest policy string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "continue":
		return Continue, nil
	case "fail-fast":
		return FailFast, nil
	default:
		return Continue, fmt.Errorf("unknown policy %q", s)
	}
}

// Runner executes the suite strictly sequentially: each case's stages run
// to completion, blocking on each subprocess, before the next case
// begins. Case isolation comes from per-case scratch directories, so the
// compiler's fixed output filename never collides even though execution
// stays single-threaded.
type Runner struct {
	Compiler *toolchain.Compiler
	Linker   *toolchain.Linker
	Invoker  *toolchain.Invoker
	Policy   Policy
	Logger   *slog.Logger

	// WorkDir overrides where case directories are created.
	// Empty means the system temp dir.
	WorkDir string

	// OnResult, when set, receives each case result as it completes.
	// The CLI uses it for per-case progress lines.
	OnResult func(CaseResult)
}

// BuildCompiler runs the optional compiler build step with dir as the
// working directory. The suite must not start when the compiler itself
// cannot be built, so any failure here is a HarnessError.
func (r *Runner) BuildCompiler(ctx context.Context, dir string, argv []string) error {
	if len(argv) == 0 {
		return nil
	}
	r.logger().Info("building compiler", "command", strings.Join(argv, " "))
	res, err := r.Invoker.Run(ctx, dir, argv)
	if err != nil {
		return &HarnessError{Err: fmt.Errorf("compiler build: %w", err)}
	}
	if res.ExitCode != 0 {
		return &HarnessError{Err: fmt.Errorf("compiler build exited %d: %s",
			res.ExitCode, strings.TrimSpace(res.Stderr))}
	}
	return nil
}

// Run executes all cases under the configured policy.
//
// The returned SuiteResult lists every attempted case in corpus order. A
// non-nil error is always a *HarnessError: the environment is broken and
// the run was aborted regardless of policy, with any partial results
// included. Case scratch directories are removed on every exit path.
func (r *Runner) Run(ctx context.Context, cases []corpus.Case) (*SuiteResult, error) {
	suite := &SuiteResult{Total: len(cases)}

	for _, c := range cases {
		cr, err := r.runCase(ctx, c)
		if err != nil {
			return suite, err
		}

		suite.add(cr)
		if r.OnResult != nil {
			r.OnResult(cr)
		}

		if r.Policy == FailFast && cr.Verdict != VerdictPass {
			suite.Aborted = len(suite.Cases) < len(cases)
			break
		}
	}

	return suite, nil
}

// runCase drives one case through the pipeline. Negative cases terminate
// at the compile stage: rejection is their success path, acceptance their
// failure. The returned error is non-nil only for environment breakage.
func (r *Runner) runCase(ctx context.Context, c corpus.Case) (CaseResult, error) {
	cr := CaseResult{Name: c.Name, Stage: StageCompiling}
	logger := r.logger().With("case", c.Name)

	ar, err := newArena(r.WorkDir)
	if err != nil {
		return cr, &HarnessError{Case: c.Name, Err: err}
	}
	defer ar.remove(logger)

	logger.Debug("compiling", "source", c.SourcePath)
	compRes, asmPath, err := r.Compiler.Compile(ctx, r.Invoker, ar.dir, c.SourcePath)
	cr.CompileExit = compRes.ExitCode
	cr.Duration += compRes.Duration
	if err != nil {
		return cr, &HarnessError{Case: c.Name, Stage: StageCompiling, Err: err}
	}

	if c.Outcome == corpus.Reject {
		if compRes.ExitCode != 0 {
			cr.Verdict = VerdictPass
			return cr, nil
		}
		cr.Verdict = VerdictFail
		cr.Kind = KindUnexpectedAcceptance
		cr.Diagnostic = "compiler accepted a program from the negative corpus"
		return cr, nil
	}

	if compRes.ExitCode != 0 {
		cr.Verdict = VerdictFail
		cr.Kind = KindCompileFailure
		cr.Diagnostic = strings.TrimSpace(compRes.Stderr)
		return cr, nil
	}

	cr.Stage = StageLinking
	logger.Debug("linking", "assembly", asmPath)
	linkRes, exePath, err := r.Linker.Link(ctx, r.Invoker, ar.dir, asmPath)
	cr.LinkExit = linkRes.ExitCode
	cr.Duration += linkRes.Duration
	if err != nil {
		return cr, &HarnessError{Case: c.Name, Stage: StageLinking, Err: err}
	}
	if linkRes.ExitCode != 0 {
		cr.Verdict = VerdictFail
		cr.Kind = KindLinkFailure
		cr.Diagnostic = strings.TrimSpace(linkRes.Stderr)
		return cr, nil
	}

	cr.Stage = StageExecuting
	logger.Debug("executing", "binary", exePath)
	runRes, err := r.Invoker.Run(ctx, ar.dir, []string{exePath})
	cr.RunExit = runRes.ExitCode
	cr.Duration += runRes.Duration
	if err != nil {
		return cr, &HarnessError{Case: c.Name, Stage: StageExecuting, Err: err}
	}

	cr.Stage = StageComparing
	golden, err := os.ReadFile(c.GoldenPath)
	if err != nil {
		return cr, &HarnessError{Case: c.Name, Stage: StageComparing, Err: err}
	}

	// Strict byte equality: output correctness is the oracle. The
	// program's own exit code is recorded but not judged on its own.
	if runRes.Stdout != string(golden) {
		cr.Verdict = VerdictFail
		cr.Kind = KindOutputMismatch
		cr.Expected = string(golden)
		cr.Actual = runRes.Stdout
		if runRes.ExitCode != 0 {
			cr.Diagnostic = fmt.Sprintf("program exited %d", runRes.ExitCode)
		}
		return cr, nil
	}

	cr.Verdict = VerdictPass
	return cr, nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
