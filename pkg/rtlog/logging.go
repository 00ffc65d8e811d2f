// Package rtlog provides the structured logging used across the runtime:
// a global logger with stdout/stderr stream splitting, plus a
// context-aware wrapper for attaching request/transaction fields.
package rtlog

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes error-level log lines (text or JSON format) to
// stderr and everything else to stdout, so container log collectors can
// treat the two streams differently.
type OutputSplitter struct{}

func (s *OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the package-wide logrus instance; services should derive
// their own *logrus.Entry from it via WithField rather than logging
// through it directly.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}
