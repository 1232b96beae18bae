package logging

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether writer is an interactive terminal.
func IsTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
