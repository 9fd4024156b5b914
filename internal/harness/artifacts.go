package harness

import (
	"fmt"
	"log/slog"
	"os"
)

// arena is the per-case scratch directory. The compiler writes its
// fixed-name assembly artifact into it and the linker places the
// executable beside it, so the well-known filenames never collide across
// cases. Each arena is owned by exactly one case and removed on every
// exit path.
type arena struct {
	dir string
}

func newArena(root string) (*arena, error) {
	dir, err := os.MkdirTemp(root, "sqtest-case-*")
	if err != nil {
		return nil, fmt.Errorf("creating case directory: %w", err)
	}
	return &arena{dir: dir}, nil
}

func (a *arena) remove(logger *slog.Logger) {
	if err := os.RemoveAll(a.dir); err != nil {
		logger.Warn("failed to remove case directory", "dir", a.dir, "error", err)
	}
}
