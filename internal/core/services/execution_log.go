package services

import (
	"sync"
	"time"

	"github.com/manthysbr/floral/internal/core/domain"
)

// ExecutionLog is the newest-first record of engine activity.
// It is unbounded until Clear.
type ExecutionLog struct {
	mu      sync.RWMutex
	entries []domain.LogEntry
	bus     *EventBus
	now     func() time.Time
}

func NewExecutionLog(bus *EventBus) *ExecutionLog {
	return &ExecutionLog{bus: bus, now: time.Now}
}

// Append prepends a new entry and returns it.
func (l *ExecutionLog) Append(message string, severity domain.Severity) domain.LogEntry {
	entry := domain.NewLogEntry(message, severity, l.now())

	l.mu.Lock()
	l.entries = append([]domain.LogEntry{entry}, l.entries...)
	l.mu.Unlock()

	l.bus.Emit(TopicLog, EventLogAppended, entry)
	return entry
}

func (l *ExecutionLog) Info(message string)    { l.Append(message, domain.SeverityInfo) }
func (l *ExecutionLog) Success(message string) { l.Append(message, domain.SeveritySuccess) }
func (l *ExecutionLog) Error(message string)   { l.Append(message, domain.SeverityError) }

// Clear empties the log.
func (l *ExecutionLog) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()

	l.bus.Emit(TopicLog, EventLogCleared, map[string]any{})
}

// Entries returns up to limit entries, newest first. limit <= 0 returns all.
func (l *ExecutionLog) Entries(limit int) []domain.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.LogEntry, n)
	copy(out, l.entries[:n])
	return out
}

// Len returns the number of entries.
func (l *ExecutionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// CountSeverity returns how many entries carry severity.
func (l *ExecutionLog) CountSeverity(severity domain.Severity) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, e := range l.entries {
		if e.Severity == severity {
			n++
		}
	}
	return n
}
