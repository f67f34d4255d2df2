package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// New returns a stdlib-backed logger with component prefix, for libraries
// that only accept a printf-style logger. A nil writer means stdout.
func New(component string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stdout
	}
	prefix := fmt.Sprintf("[%s] ", component)
	return log.New(w, prefix, log.LstdFlags)
}
