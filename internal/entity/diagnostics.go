package entity

import (
	"sync"

	"go.uber.org/zap"

	"xrmkit.io/xrmkit/internal/metadata"
	apperrors "xrmkit.io/xrmkit/internal/pkg/errors"
	"xrmkit.io/xrmkit/internal/pkg/logger"
)

// Severity grades a Diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic describes a tolerated schema violation on property access.
type Diagnostic struct {
	Code     string   `json:"code"`
	Entity   string   `json:"entity"`
	Property string   `json:"property"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Reporter receives diagnostics from entity property access.
type Reporter interface {
	Report(d Diagnostic)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(d Diagnostic)

func (f ReporterFunc) Report(d Diagnostic) { f(d) }

// LogReporter writes diagnostics to a zap logger. A zero LogReporter uses
// the global logger.
type LogReporter struct {
	Logger *zap.Logger
}

func (r LogReporter) Report(d Diagnostic) {
	log := r.Logger
	if log == nil {
		log = logger.L()
	}
	fields := []zap.Field{
		zap.String("entity", d.Entity),
		zap.String("property", d.Property),
		zap.String("code", d.Code),
	}
	if d.Severity == SeverityError {
		log.Error(d.Message, fields...)
		return
	}
	log.Warn(d.Message, fields...)
}

// Recorder collects diagnostics in memory.
type Recorder struct {
	mu    sync.Mutex
	diags []Diagnostic
}

func (r *Recorder) Report(d Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags = append(r.diags, d)
}

// Diagnostics returns a copy of everything recorded so far.
func (r *Recorder) Diagnostics() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Diagnostic, len(r.diags))
	copy(out, r.diags)
	return out
}

// Codes returns the recorded diagnostic codes in order.
func (r *Recorder) Codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]string, len(r.diags))
	for i, d := range r.diags {
		codes[i] = d.Code
	}
	return codes
}

// Reset drops everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags = nil
}

// Tee forwards every diagnostic to each reporter in turn.
func Tee(reporters ...Reporter) Reporter {
	return ReporterFunc(func(d Diagnostic) {
		for _, r := range reporters {
			r.Report(d)
		}
	})
}

func notFound(name string) Diagnostic {
	return Diagnostic{
		Code:     apperrors.CodePropertyNotFound,
		Property: metadata.NormalizeName(name),
		Message:  "property not found",
	}
}

func notReadable(name string) Diagnostic {
	return Diagnostic{
		Code:     apperrors.CodePropertyNotReadable,
		Property: metadata.NormalizeName(name),
		Message:  "property not readable",
	}
}

func readOnly(name string) Diagnostic {
	return Diagnostic{
		Code:     apperrors.CodePropertyReadOnly,
		Property: metadata.NormalizeName(name),
		Message:  "property is read-only",
	}
}
