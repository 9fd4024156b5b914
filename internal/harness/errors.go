package harness

import "fmt"

// HarnessError means the test environment itself is broken rather than
// the compiler under test: a failed compiler build, a missing golden
// file, an unlaunchable tool, a vanished artifact, or a stage timeout.
// It aborts the run immediately under both policies.
type HarnessError struct {
	Case  string // empty for suite-level failures
	Stage Stage  // empty when no case stage was active
	Err   error
}

func (e *HarnessError) Error() string {
	switch {
	case e.Case != "" && e.Stage != "":
		return fmt.Sprintf("harness error in case %s (%s): %v", e.Case, e.Stage, e.Err)
	case e.Case != "":
		return fmt.Sprintf("harness error in case %s: %v", e.Case, e.Err)
	default:
		return fmt.Sprintf("harness error: %v", e.Err)
	}
}

func (e *HarnessError) Unwrap() error { return e.Err }
