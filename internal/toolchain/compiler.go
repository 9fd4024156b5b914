package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// MissingArtifactError means the compiler exited zero but the well-known
// assembly artifact was not written. A correct compiler never does this,
// so it is treated as a broken environment rather than a case failure.
type MissingArtifactError struct {
	Path string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("compiler reported success but wrote no artifact at %s", e.Path)
}

// Compiler invokes the external compiler under test.
//
// The compiler takes a single positional source-file argument and writes
// its assembly to a fixed well-known filename in the working directory.
// Running each case in its own scratch directory keeps that fixed filename
// from colliding across cases.
type Compiler struct {
	// Argv is the compiler command plus any fixed leading arguments.
	Argv []string

	// Output is the fixed artifact filename the compiler writes,
	// e.g. "output.s".
	Output string
}

// Compile runs the compiler against sourcePath with dir as the working
// directory. On exit 0 the returned artifact path points at the assembly
// file, whose existence has been verified; its content is never inspected.
//
// The compiler's own stdout and stderr are captured for diagnostics only
// and never reach the harness's user-visible output on success.
func (c *Compiler) Compile(ctx context.Context, inv *Invoker, dir, sourcePath string) (Result, string, error) {
	argv := append(append([]string{}, c.Argv...), sourcePath)
	res, err := inv.Run(ctx, dir, argv)
	if err != nil {
		return res, "", err
	}
	if res.ExitCode != 0 {
		return res, "", nil
	}

	artifact := filepath.Join(dir, c.Output)
	if _, statErr := os.Stat(artifact); statErr != nil {
		return res, "", &MissingArtifactError{Path: artifact}
	}
	return res, artifact, nil
}
