package host

import "testing"

type recordingDiagnostics struct {
	warnings []string
	errors   []string
}

func (r *recordingDiagnostics) Warnf(fields map[string]any, format string, args ...any) {
	r.warnings = append(r.warnings, format)
}

func (r *recordingDiagnostics) Errorf(fields map[string]any, format string, args ...any) {
	r.errors = append(r.errors, format)
}

func TestServicesWarnForwardsToDiagnostics(t *testing.T) {
	rec := &recordingDiagnostics{}
	s := &Services{Diagnostics: rec}
	s.Warn(nil, "something happened")
	if len(rec.warnings) != 1 {
		t.Fatalf("expected one warning recorded, got %d", len(rec.warnings))
	}
}

func TestNilServicesFallsBackToDefault(t *testing.T) {
	var s *Services
	// Should not panic despite a nil receiver; Default() backs every call.
	s.Warn(nil, "ok")
}

func TestFatalPanicsWithTheError(t *testing.T) {
	rec := &recordingDiagnostics{}
	s := &Services{Diagnostics: rec}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected Fatal to panic")
		}
	}()
	s.Fatal(errFatalTest)
}

var errFatalTest = testError("boom")

type testError string

func (e testError) Error() string { return string(e) }
