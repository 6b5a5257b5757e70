//go:build !stdlog && !nolog
// +build !stdlog,!nolog

package build

import "os"

// LoggingType is a log type that writes to both stderr and the log rotator, if
// present.
const LoggingType = LogTypeDefault

// Write writes b to stderr and then to the log rotator, if present. Stdout is
// left to command output.
func (w *LogWriter) Write(b []byte) (int, error) {
	_, _ = os.Stderr.Write(b)

	if w.RotatorPipe == nil {
		return len(b), nil
	}

	return w.RotatorPipe.Write(b)
}
