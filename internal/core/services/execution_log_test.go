package services

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/manthysbr/floral/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionLog_NewestFirst(t *testing.T) {
	log := NewExecutionLog(nil)
	log.now = func() time.Time { return time.Date(2024, 5, 1, 9, 8, 7, 0, time.UTC) }

	log.Info("first")
	log.Success("second")
	log.Error("third")

	entries := log.Entries(0)
	require.Len(t, entries, 3)
	assert.Equal(t, "third", entries[0].Message)
	assert.Equal(t, domain.SeverityError, entries[0].Severity)
	assert.Equal(t, "first", entries[2].Message)
	assert.Equal(t, "09:08:07", entries[2].Timestamp)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)

	assert.Len(t, log.Entries(2), 2)
	assert.Equal(t, "third", log.Entries(1)[0].Message)
	assert.Equal(t, 1, log.CountSeverity(domain.SeveritySuccess))
}

func TestExecutionLog_Clear(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	bus := NewEventBus(logger)
	ch, unsub := bus.Subscribe(TopicLog)
	defer unsub()

	log := NewExecutionLog(bus)
	log.Info("hello")
	log.Clear()

	assert.Equal(t, 0, log.Len())
	assert.Empty(t, log.Entries(10))

	var types []EventType
	for i := 0; i < 2; i++ {
		select {
		case e := <-ch:
			types = append(types, e.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for log events")
		}
	}
	assert.Equal(t, []EventType{EventLogAppended, EventLogCleared}, types)
}

func TestExecutionLog_EntriesIsACopy(t *testing.T) {
	log := NewExecutionLog(nil)
	log.Info("original")

	entries := log.Entries(0)
	entries[0].Message = "changed"

	assert.Equal(t, "original", log.Entries(0)[0].Message)
}
