package cli

import (
	"io"
	"os"

	"golang.org/x/term"

	"github.com/hupe1980/xrd2template/internal/config"
)

// colorEnabled reports whether ANSI colors should be written to w. NO_COLOR
// and --no-color both switch color off.
func colorEnabled(cfg *config.Config, w io.Writer) bool {
	if cfg.NoColor || os.Getenv("NO_COLOR") != "" {
		return false
	}

	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}
