package harness

import "time"

// Verdict classifies the outcome of one case.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// Kind pinpoints which stage regressed when a case fails.
type Kind string

const (
	// KindCompileFailure: the compiler rejected a program it should
	// have accepted.
	KindCompileFailure Kind = "compile_failure"

	// KindLinkFailure: the assembler rejected compiler-accepted output,
	// i.e. a codegen defect.
	KindLinkFailure Kind = "link_failure"

	// KindOutputMismatch: the binary ran but its stdout differs from
	// the golden file.
	KindOutputMismatch Kind = "output_mismatch"

	// KindUnexpectedAcceptance: the compiler accepted a program from
	// the negative corpus.
	KindUnexpectedAcceptance Kind = "unexpected_acceptance"
)

// Stage names a step of the per-case pipeline, used in failure reports to
// pinpoint where a case stopped.
type Stage string

const (
	StageCompiling Stage = "compiling"
	StageLinking   Stage = "linking"
	StageExecuting Stage = "executing"
	StageComparing Stage = "comparing"
)

// CaseResult is the recorded outcome of one case. Exit codes are only
// meaningful for stages the case reached.
type CaseResult struct {
	Name    string  `json:"name"`
	Verdict Verdict `json:"verdict"`
	Stage   Stage   `json:"stage"`
	Kind    Kind    `json:"kind,omitempty"`

	CompileExit int `json:"compile_exit"`
	LinkExit    int `json:"link_exit,omitempty"`
	RunExit     int `json:"run_exit,omitempty"`

	// Expected and Actual carry both stdout texts verbatim for
	// output-mismatch failures.
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`

	// Diagnostic holds captured tool output explaining a failure.
	Diagnostic string `json:"diagnostic,omitempty"`

	Duration time.Duration `json:"-"`
}

// SuiteResult aggregates the whole run in corpus order.
type SuiteResult struct {
	Cases  []CaseResult `json:"cases"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Total  int          `json:"total"`

	// Aborted is set when fail-fast stopped the suite before every
	// loaded case was attempted.
	Aborted bool `json:"aborted,omitempty"`
}

// Pass reports overall suite success: the logical AND of all verdicts.
func (s *SuiteResult) Pass() bool {
	return s.Failed == 0 && !s.Aborted
}

func (s *SuiteResult) add(cr CaseResult) {
	s.Cases = append(s.Cases, cr)
	if cr.Verdict == VerdictPass {
		s.Passed++
	} else {
		s.Failed++
	}
}
