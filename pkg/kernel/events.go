package kernel

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/manthysbr/floral/internal/core/services"
)

const wsWriteWait = 10 * time.Second

// wsMessage is the envelope for every WebSocket frame.
type wsMessage struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// handleEventsSSE streams bus events as server-sent events.
// GET /v1/events?topic=
func (s *Server) handleEventsSSE(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = services.TopicAll
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Subscribe before the headers go out so no event after them is missed.
	ch, unsub := s.eventBus.Subscribe(topic)
	defer unsub()

	// SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, evt.Data)
			flusher.Flush()
		}
	}
}

// handleWebSocket sends a session snapshot, then forwards every bus event.
// Clients only need to read; inbound frames are discarded.
// GET /v1/ws
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch, unsub := s.eventBus.Subscribe(services.TopicAll)
	defer unsub()

	snapshot, err := json.Marshal(s.session.Snapshot())
	if err != nil {
		s.logger.Error("failed to marshal snapshot", "error", err)
		return
	}
	if err := writeWS(conn, wsMessage{Type: "session.snapshot", Payload: snapshot}); err != nil {
		return
	}

	// The read loop notices the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			msg := wsMessage{
				Type:      string(evt.Type),
				Topic:     evt.Topic,
				Payload:   json.RawMessage(evt.Data),
				Timestamp: evt.Timestamp,
			}
			if err := writeWS(conn, msg); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func writeWS(conn *websocket.Conn, msg wsMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
