package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rafid/todohub/internal/apperror"
	"github.com/rafid/todohub/internal/feed"
	"github.com/rafid/todohub/internal/gate"
	"github.com/rafid/todohub/internal/model"
)

// heartbeatInterval keeps intermediaries from timing out an idle stream.
const heartbeatInterval = 25 * time.Second

// EventsHandler streams the caller's change feed as server-sent events.
// Each browser tab of a user holds its own subscription; the tabs converge
// through these events without reloading.
type EventsHandler struct {
	broker *feed.Broker
	logger *slog.Logger
}

// NewEventsHandler creates an EventsHandler.
func NewEventsHandler(broker *feed.Broker, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{broker: broker, logger: logger}
}

// eventPayload picks the wire shape for one change event. Created and
// updated events carry the same todoResponse the REST endpoints return, so
// the client merges one format regardless of which path delivered the
// record; removed events carry only the ID.
func eventPayload(ev model.ChangeEvent) any {
	if ev.Kind == model.EventRemoved {
		return struct {
			ID string `json:"id"`
		}{ID: ev.Todo.ID}
	}
	return toTodoResponse(&ev.Todo)
}

// HandleStream serves the SSE stream.
//
// HTTP: GET /api/events (behind RequireSession)
//
// Frames are "event: <kind>" + "data: <json todo>". The subscription is
// cancelled when the request context ends, whichever way the client goes
// away; the feed handle never outlives the connection.
func (h *EventsHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := gate.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("not signed in"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperror.ValidationFailed("stream", "streaming unsupported by this connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events, cancel := h.broker.Subscribe(userID)
	defer cancel()

	// Tell the client the stream is live before the first real event.
	if _, err := w.Write([]byte(": connected\n\n")); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(eventPayload(ev))
			if err != nil {
				h.logger.Error("failed to encode change event",
					slog.String("userID", userID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if _, err := w.Write([]byte("event: " + string(ev.Kind) + "\ndata: ")); err != nil {
				return
			}
			if _, err := w.Write(append(payload, '\n', '\n')); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
