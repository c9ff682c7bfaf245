package domain

import (
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// LogEntry is one line of the execution log.
type LogEntry struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
}

// NewLogEntry stamps a message with a fresh id and the time of day.
func NewLogEntry(message string, severity Severity, now time.Time) LogEntry {
	return LogEntry{
		ID:        uuid.New().String(),
		Timestamp: now.Format("15:04:05"),
		Message:   message,
		Severity:  severity,
	}
}
