package toolchain

import (
	"context"
	"path/filepath"
)

// Linker drives the system assembler/linker to turn the compiler's
// assembly output plus the runtime support library into an executable.
//
// The runtime library is a fixed set of foreign print primitives every
// test binary links against; its ABI is the oracle surface for output
// comparison and is never reimplemented here.
type Linker struct {
	// Argv is the assembler/linker command, e.g. ["cc"].
	Argv []string

	// Runtime is the absolute path to the runtime support library
	// source or object file.
	Runtime string

	// Output is the executable filename produced inside the working
	// directory.
	Output string
}

// Link assembles asmPath together with the runtime library into an
// executable inside dir and returns its path. A nonzero exit is reported
// through the Result; it always signals a compiler codegen defect, since
// the assembler is only ever handed compiler-accepted output.
func (l *Linker) Link(ctx context.Context, inv *Invoker, dir, asmPath string) (Result, string, error) {
	exe := filepath.Join(dir, l.Output)
	argv := append(append([]string{}, l.Argv...), asmPath, l.Runtime, "-o", exe)
	res, err := inv.Run(ctx, dir, argv)
	if err != nil {
		return res, "", err
	}
	if res.ExitCode != 0 {
		return res, "", nil
	}
	return res, exe, nil
}
