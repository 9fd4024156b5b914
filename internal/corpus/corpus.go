// Package corpus enumerates the conformance corpora.
//
// A corpus directory holds positive source programs, each paired with a
// sibling golden file recording the exact stdout the compiled program must
// produce. A negative subdirectory holds programs the compiler must reject;
// those carry no golden companion.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Outcome determines which verdict rules apply to a case.
// The two outcomes are mutually exclusive and exhaustive.
type Outcome int

const (
	// RunAndMatch cases must compile, link, execute, and print stdout
	// byte-identical to their golden file.
	RunAndMatch Outcome = iota

	// Reject cases must be refused by the compiler (nonzero exit).
	Reject
)

// String returns the outcome name for reports.
func (o Outcome) String() string {
	if o == Reject {
		return "reject"
	}
	return "run-and-match"
}

// Case is a single conformance test case. Immutable once loaded.
type Case struct {
	// Name identifies the case in reports: the source filename, prefixed
	// with the negative subdirectory name for reject cases.
	Name string

	// SourcePath is the absolute path to the source program.
	SourcePath string

	// GoldenPath is the absolute path to the golden stdout file.
	// Empty for Reject cases.
	GoldenPath string

	Outcome Outcome
}

// MissingGoldenError reports a positive source file without its golden
// companion. This is a harness configuration error, not a test failure:
// the suite must abort before running any case.
type MissingGoldenError struct {
	Source string // source file missing its companion
	Golden string // the path that was expected to exist
}

func (e *MissingGoldenError) Error() string {
	return fmt.Sprintf("missing golden file %s for source %s", e.Golden, e.Source)
}

// Loader enumerates a corpus directory into an ordered case list.
// Enumeration is read-only and re-runnable; loading twice with an
// unchanged corpus yields identical slices.
type Loader struct {
	// Root is the positive corpus directory.
	Root string

	// NegativeDir is the name of the subdirectory under Root holding
	// reject cases.
	NegativeDir string

	// SourceExt filters source files, e.g. ".sq".
	SourceExt string

	// GoldenSuffix is appended to the source filename to locate the
	// golden companion, e.g. ".y" pairs sum.sq with sum.sq.y.
	GoldenSuffix string
}

// Load enumerates both corpora. Positive cases come first, then negative
// cases, each group in lexicographic filename order so report ordering is
// stable across runs.
//
// Every positive source must have a golden companion; the first violation
// aborts the load with a MissingGoldenError.
func (l *Loader) Load() ([]Case, error) {
	root, err := filepath.Abs(l.Root)
	if err != nil {
		return nil, fmt.Errorf("corpus: resolving %s: %w", l.Root, err)
	}

	positive, err := l.loadDir(root, "", RunAndMatch)
	if err != nil {
		return nil, err
	}

	negRoot := filepath.Join(root, l.NegativeDir)
	if _, err := os.Stat(negRoot); err != nil {
		return nil, fmt.Errorf("corpus: negative corpus directory %s: %w", negRoot, err)
	}
	negative, err := l.loadDir(negRoot, l.NegativeDir, Reject)
	if err != nil {
		return nil, err
	}

	return append(positive, negative...), nil
}

// loadDir enumerates a single directory. os.ReadDir returns entries
// sorted by filename, which gives the lexicographic ordering directly.
func (l *Loader) loadDir(dir, prefix string, outcome Outcome) ([]Case, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus: reading %s: %w", dir, err)
	}

	var cases []Case
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), l.SourceExt) {
			continue
		}

		c := Case{
			Name:       entry.Name(),
			SourcePath: filepath.Join(dir, entry.Name()),
			Outcome:    outcome,
		}
		if prefix != "" {
			c.Name = prefix + "/" + entry.Name()
		}

		if outcome == RunAndMatch {
			c.GoldenPath = c.SourcePath + l.GoldenSuffix
			if _, err := os.Stat(c.GoldenPath); err != nil {
				return nil, &MissingGoldenError{Source: c.SourcePath, Golden: c.GoldenPath}
			}
		}

		cases = append(cases, c)
	}
	return cases, nil
}

// StrayGoldens returns golden files in the negative corpus. Reject cases
// must not carry expectations; the validate command reports these as
// corpus errors.
func (l *Loader) StrayGoldens() ([]string, error) {
	dir := filepath.Join(l.Root, l.NegativeDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus: reading %s: %w", dir, err)
	}

	var stray []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), l.SourceExt+l.GoldenSuffix) {
			stray = append(stray, filepath.Join(dir, entry.Name()))
		}
	}
	return stray, nil
}
