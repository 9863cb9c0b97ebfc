package status

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

// Console writes each display as one line, coloured by category when the
// writer is a terminal.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
}

// NewConsole wraps out; colour is enabled only for TTY file descriptors.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out, colorize: IsTerminal(out)}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Show prints d.
func (c *Console) Show(d Display) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, Render(d, c.colorize))
}

// Render formats a display line, optionally wrapped in ANSI colour codes.
func Render(d Display, colorize bool) string {
	line := d.String()
	if !colorize {
		return line
	}
	if color := categoryColor(d.Category); color != "" {
		return color + line + ansiReset
	}
	return line
}

func categoryColor(c Category) string {
	switch c {
	case Success:
		return ansiGreen
	case Warning:
		return ansiYellow
	case Error:
		return ansiRed
	default:
		return ""
	}
}
