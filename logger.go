package mockldap

import (
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Logger interface for mock directory operations.
type Logger interface {
	Trace(msg string, fields map[string]any)
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// HCLogger adapts an hclog.Logger to the package Logger interface.
type HCLogger struct {
	log hclog.Logger
}

// NewHCLogger creates a Logger backed by the given hclog.Logger.
func NewHCLogger(log hclog.Logger) *HCLogger {
	return &HCLogger{log: log}
}

func (l *HCLogger) Trace(msg string, fields map[string]any) {
	l.log.Trace(msg, flattenFields(fields)...)
}

func (l *HCLogger) Debug(msg string, fields map[string]any) {
	l.log.Debug(msg, flattenFields(fields)...)
}

func (l *HCLogger) Info(msg string, fields map[string]any) {
	l.log.Info(msg, flattenFields(fields)...)
}

func (l *HCLogger) Warn(msg string, fields map[string]any) {
	l.log.Warn(msg, flattenFields(fields)...)
}

func (l *HCLogger) Error(msg string, fields map[string]any) {
	l.log.Error(msg, flattenFields(fields)...)
}

// flattenFields converts a field map into hclog's alternating key/value form,
// with keys sorted so log lines are deterministic.
func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return args
}

// NopLogger discards all log output.
type NopLogger struct{}

// NewNopLogger creates a Logger that discards everything.
func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Trace(string, map[string]any) {}
func (*NopLogger) Debug(string, map[string]any) {}
func (*NopLogger) Info(string, map[string]any)  {}
func (*NopLogger) Warn(string, map[string]any)  {}
func (*NopLogger) Error(string, map[string]any) {}

// logOperation is a helper to log an operation with timing.
func logOperation(log Logger, op Operation, fields map[string]any, fn func() error) error {
	start := time.Now()

	if fields == nil {
		fields = make(map[string]any)
	}
	fields["operation"] = op

	log.Debug("Starting operation", sanitizeFields(fields))

	err := fn()

	fields["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		fields["error"] = err.Error()
		log.Error("Operation failed", sanitizeFields(fields))
	} else {
		log.Debug("Operation completed successfully", sanitizeFields(fields))
	}

	return err
}

// sanitizeFields removes sensitive information from log fields.
func sanitizeFields(fields map[string]any) map[string]any {
	sanitized := make(map[string]any, len(fields))

	sensitiveKeys := map[string]bool{
		"password":    true,
		"passwd":      true,
		"secret":      true,
		"token":       true,
		"credential":  true,
		"credentials": true,
	}

	for k, v := range fields {
		if sensitiveKeys[strings.ToLower(k)] {
			sanitized[k] = "[REDACTED]"
		} else {
			sanitized[k] = v
		}
	}

	return sanitized
}
