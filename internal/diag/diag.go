// Package diag is the diagnostic sink shared by every compiler stage. It
// wraps logrus so call sites read like spec.md's own
// `fprintf(stderr, ...); exit(1)` style while giving the whole pipeline
// one place to configure output formatting and, eventually, structured
// fields (source stage, span) without touching every call site.
package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// plainFormatter writes just the log entry's message, with a trailing
// newline and nothing else — no level tag, no timestamp. spec.md §6/§7
// specifies exact one-line diagnostic text; logrus is used for its
// leveled-call-site ergonomics, not to decorate that text.
type plainFormatter struct{}

func (plainFormatter) Format(e *logrus.Entry) ([]byte, error) {
	return []byte(e.Message + "\n"), nil
}

// Sink is a diagnostic logger for one compile. Fatal errors are reported
// through it and then returned as a FatalError for the caller to unwind
// with; Soft diagnostics are just logged.
type Sink struct {
	log *logrus.Logger
}

// New returns a Sink that writes to w (typically os.Stderr).
func New(w io.Writer) *Sink {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(plainFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return &Sink{log: log}
}

// Default is a Sink writing to os.Stderr, used by callers that don't need
// to capture diagnostics (e.g. the cmd/smlc driver).
func Default() *Sink {
	return New(os.Stderr)
}

// Soft logs a recoverable diagnostic and lets the caller continue, per
// spec.md §7's "report and continue" error class.
func (s *Sink) Soft(msg string) {
	s.log.Error(msg)
}

// Softf is Soft with Printf-style formatting.
func (s *Sink) Softf(format string, args ...interface{}) {
	s.log.Errorf(format, args...)
}

// FatalError is returned by a pipeline stage after it has already logged
// the diagnostic describing why compilation cannot continue; the message
// is preserved on the error value too so callers that check err.Error()
// (e.g. tests asserting "containing ...") still see the diagnostic text.
type FatalError struct {
	msg string
}

func (e *FatalError) Error() string { return e.msg }

// Fatal logs msg and returns a FatalError carrying the same text, for the
// caller to return up the stack and unwind the current pipeline stage.
// It never calls os.Exit itself — that decision belongs to cmd/smlc.
func (s *Sink) Fatal(msg string) error {
	s.log.Error(msg)
	return &FatalError{msg: msg}
}

// Fatalf is Fatal with Printf-style formatting.
func (s *Sink) Fatalf(format string, args ...interface{}) error {
	return s.Fatal(fmt.Sprintf(format, args...))
}
