package events

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Stream serves the event feed as Server-Sent Events at GET /api/v1/events/stream.
// The optional types query parameter is a comma separated list of event types.
type Stream struct {
	broker            *Broker
	logger            *slog.Logger
	heartbeatInterval time.Duration
}

// NewStream creates a new SSE stream handler.
func NewStream(broker *Broker, logger *slog.Logger) *Stream {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Stream{
		broker:            broker,
		logger:            logger,
		heartbeatInterval: 30 * time.Second,
	}
}

// ServeHTTP handles the SSE connection.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Check if request context is already canceled (early client disconnect).
	if r.Context().Err() != nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	rc := http.NewResponseController(w)

	// The stream outlives the server's WriteTimeout.
	_ = rc.SetWriteDeadline(time.Time{})

	if err := rc.Flush(); err != nil {
		s.logger.Error("failed to flush headers", slog.String("error", err.Error()))
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sub, err := s.broker.Subscribe(parseTypes(r.URL.Query().Get("types"))...)
	if err != nil {
		s.logger.Error("failed to register subscriber", slog.String("error", err.Error()))
		http.Error(w, "Failed to establish connection", http.StatusInternalServerError)
		return
	}
	defer s.broker.Unsubscribe(sub.ID)

	subLogger := s.logger.With(slog.String("subscriber_id", sub.ID))

	if err := s.send(w, rc, "connected", map[string]string{"subscriber_id": sub.ID}); err != nil {
		subLogger.Warn("failed to send connection message", slog.String("error", err.Error()))
		return
	}

	ctx := r.Context()
	heartbeat := time.NewTicker(s.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			if err := s.send(w, rc, string(event.Type), event); err != nil {
				subLogger.Info("subscriber disconnected during send")
				return
			}

		case <-heartbeat.C:
			if err := s.send(w, rc, "heartbeat", map[string]time.Time{"timestamp": time.Now().UTC()}); err != nil {
				subLogger.Info("subscriber disconnected during heartbeat")
				return
			}

		case <-sub.Done:
			subLogger.Info("subscriber closed by broker")
			return

		case <-ctx.Done():
			return
		}
	}
}

// send writes one SSE frame: "id", "event" and "data" lines then a blank line.
func (s *Stream) send(w http.ResponseWriter, rc *http.ResponseController, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	if event, ok := data.(Event); ok {
		if _, err := fmt.Fprintf(w, "id: %s\n", event.ID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}

	if err := rc.Flush(); err != nil {
		return err
	}

	// Not every ResponseWriter supports deadlines.
	if err := rc.SetWriteDeadline(time.Now().Add(2 * s.heartbeatInterval)); err != nil {
		s.logger.Debug("failed to set write deadline", slog.String("error", err.Error()))
	}
	return nil
}

func parseTypes(raw string) []EventType {
	if raw == "" {
		return nil
	}
	var types []EventType
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			types = append(types, EventType(part))
		}
	}
	return types
}
