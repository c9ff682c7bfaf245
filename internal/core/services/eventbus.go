package services

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

type EventType string

const (
	EventPipelineStarted   EventType = "pipeline.started"
	EventPipelineCompleted EventType = "pipeline.completed"
	EventStepStarted       EventType = "step.started"
	EventStepCompleted     EventType = "step.completed"
	EventStepFailed        EventType = "step.failed"
	EventStepInput         EventType = "step.input"
	EventStepsChanged      EventType = "steps.changed"
	EventLedgerUpdated     EventType = "ledger.updated"
	EventLevelUp           EventType = "ledger.level_up"
	EventLogAppended       EventType = "log.appended"
	EventLogCleared        EventType = "log.cleared"
	EventSessionUpdated    EventType = "session.updated"
	EventDocumentIngested  EventType = "document.ingested"
	EventDocumentAnalyzed  EventType = "document.analyzed"
	EventToolCompleted     EventType = "tool.completed"
)

// Topics group related events. TopicAll receives every event.
const (
	TopicAll       = "*"
	TopicPipeline  = "pipeline"
	TopicLedger    = "ledger"
	TopicLog       = "log"
	TopicDocuments = "documents"
	TopicTools     = "tools"
)

type Event struct {
	Topic     string
	Type      EventType
	Data      string // JSON payload
	Timestamp int64
}

type EventBus struct {
	logger *slog.Logger
	mu     sync.RWMutex
	subs   map[string][]chan Event // Key: topic
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		logger: logger,
		subs:   make(map[string][]chan Event),
	}
}

// Subscribe returns a channel that receives events for a topic
func (b *EventBus) Subscribe(topic string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 100) // Buffer to prevent blocking publisher
	b.subs[topic] = append(b.subs[topic], ch)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			subscribers := b.subs[topic]
			for i, sub := range subscribers {
				if sub == ch {
					close(ch)
					b.subs[topic] = append(subscribers[:i], subscribers[i+1:]...)
					break
				}
			}
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
		})
	}

	return ch, unsub
}

// Publish sends an event to the subscribers of its topic and of TopicAll
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	deliver := func(subscribers []chan Event) {
		for _, ch := range subscribers {
			select {
			case ch <- e:
			default:
				// If channel is full, drop event to prevent blocking the engine
				b.logger.Warn("event bus channel full, dropping event", "topic", e.Topic, "type", e.Type)
			}
		}
	}

	deliver(b.subs[e.Topic])
	if e.Topic != TopicAll {
		deliver(b.subs[TopicAll])
	}
}

// Emit marshals data and publishes it. Nil-safe so services can run without a bus.
func (b *EventBus) Emit(topic string, eventType EventType, data any) {
	if b == nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		b.logger.Error("failed to marshal event", "type", eventType, "error", err)
		return
	}
	b.Publish(Event{
		Topic:     topic,
		Type:      eventType,
		Data:      string(payload),
		Timestamp: time.Now().UnixMilli(),
	})
}
