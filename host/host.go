// Package host implements the HostServices seam spec.md's design notes
// call for: an explicit struct the world is constructed with, forwarding
// allocation diagnostics and structured logging to components that need
// them, in place of the process-global logging/allocator hooks the
// original C source relied on.
package host

import "github.com/sirupsen/logrus"

// Diagnostics is the structured-logging surface the core calls into for
// warnings and fatal preconditions. It is intentionally narrow — the core
// never needs more than leveled, field-tagged messages.
type Diagnostics interface {
	Warnf(fields map[string]any, format string, args ...any)
	Errorf(fields map[string]any, format string, args ...any)
}

// logrusDiagnostics adapts a *logrus.Logger to Diagnostics. Grounded on
// the ECS-flavored other_examples/d8c2f751_opd-ai-venture engine package,
// which imports sirupsen/logrus directly for entity/component lifecycle
// logging.
type logrusDiagnostics struct {
	log *logrus.Logger
}

func (l *logrusDiagnostics) Warnf(fields map[string]any, format string, args ...any) {
	l.log.WithFields(fields).Warnf(format, args...)
}

func (l *logrusDiagnostics) Errorf(fields map[string]any, format string, args ...any) {
	l.log.WithFields(fields).Errorf(format, args...)
}

// NewLogrusDiagnostics wraps an existing *logrus.Logger as Diagnostics,
// so callers can route core diagnostics into their own logging setup.
func NewLogrusDiagnostics(log *logrus.Logger) Diagnostics {
	if log == nil {
		log = logrus.New()
	}
	return &logrusDiagnostics{log: log}
}

// Services bundles the host-provided collaborators the world forwards
// diagnostics to. A nil *Services is valid everywhere it's accepted;
// Default() is used in that case.
type Services struct {
	Diagnostics Diagnostics
}

// Default returns Services backed by a fresh logrus.Logger at its default
// settings.
func Default() *Services {
	return &Services{Diagnostics: NewLogrusDiagnostics(logrus.New())}
}

func (s *Services) diag() Diagnostics {
	if s == nil || s.Diagnostics == nil {
		return Default().Diagnostics
	}
	return s.Diagnostics
}

// Warn emits a structured warning.
func (s *Services) Warn(fields map[string]any, format string, args ...any) {
	s.diag().Warnf(fields, format, args...)
}

// Fatal logs err structurally, then panics with it. The core never calls
// it itself: World methods return precondition violations as ordinary
// errors and do not abort, and a caller that wants them fatal passes the
// returned error here.
func (s *Services) Fatal(err error) {
	s.diag().Errorf(map[string]any{"fatal": true}, "%v", err)
	panic(err)
}
