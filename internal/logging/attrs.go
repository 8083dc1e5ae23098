package logging

import (
	"log/slog"
	"time"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldContributionID is the standardized key for catalog contribution identifiers.
	FieldContributionID = "contribution_id"
	// FieldTaskID is the standardized key for upload task identifiers.
	FieldTaskID = "task_id"
	// FieldSessionID is the standardized key for recording session identifiers.
	FieldSessionID = "session_id"
	// FieldLanguage is the standardized key for ISO language codes.
	FieldLanguage = "language"
	// FieldPathname is the standardized key for storage object pathnames.
	FieldPathname = "pathname"
	// FieldRequestID is the standardized key for API request correlation identifiers.
	FieldRequestID = "request_id"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// NewNop returns a logger that discards every record.
func NewNop() *slog.Logger {
	return slog.New(nopHandler{})
}

// WithComponent creates a logger tagged with a standardized component
// attribute. A nil base falls back to the no-op logger.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}
