// Package stream implements the Server-Sent-Event endpoints: the
// periodic presence poll stream and the simulated per-word chat
// stream. Each open connection is one goroutine tied to the request
// context; pacing is wall-clock tickers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AlphonseHQ/console/internal/alphonse"
	"github.com/AlphonseHQ/console/internal/timeline"
)

// Event names on the wire.
const (
	EventPresence     = "presence"
	EventChatStart    = "chat_start"
	EventChatChunk    = "chat_chunk"
	EventChatComplete = "chat_complete"
)

// FallbackSeed is streamed when no timeline message matches the
// requested correlation id.
const FallbackSeed = "No recent signal for this correlation id."

// PresenceSource is the upstream poll the presence stream depends on.
type PresenceSource interface {
	PresenceSnapshot(ctx context.Context) alphonse.Presence
}

// Emitter serves both SSE endpoints.
type Emitter struct {
	presence         PresenceSource
	store            *timeline.Store
	presenceInterval time.Duration
	chunkInterval    time.Duration
	observers        []func(alphonse.Presence)
}

// NewEmitter creates an emitter with the given cadences.
func NewEmitter(presence PresenceSource, store *timeline.Store, presenceInterval, chunkInterval time.Duration) *Emitter {
	if presenceInterval <= 0 {
		presenceInterval = 10 * time.Second
	}
	if chunkInterval <= 0 {
		chunkInterval = 350 * time.Millisecond
	}
	return &Emitter{
		presence:         presence,
		store:            store,
		presenceInterval: presenceInterval,
		chunkInterval:    chunkInterval,
	}
}

// ObservePresence registers a callback invoked with every presence
// snapshot the stream polls. Used for availability alerting.
func (e *Emitter) ObservePresence(fn func(alphonse.Presence)) {
	e.observers = append(e.observers, fn)
}

// PresenceHandler streams one presence event immediately and then one
// per interval until the client disconnects. A failed poll is still a
// valid disconnected event, never a stream error.
func (e *Emitter) PresenceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setSSEHeaders(w)
		flusher, _ := w.(http.Flusher)

		emit := func() {
			snap := e.presence.PresenceSnapshot(r.Context())
			for _, fn := range e.observers {
				fn(snap)
			}
			writeEvent(w, flusher, EventPresence, map[string]any{
				"status": snap.Status,
				"note":   snap.Note,
				"at":     timeline.NowISO(),
			})
		}

		emit()
		ticker := time.NewTicker(e.presenceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				emit()
			}
		}
	}
}

// ChatHandler streams the canned per-word reply for a prior
// submission: chat_start, one chat_chunk per word at the chunk
// interval, then chat_complete. Finite and non-restartable; a new
// connection recomputes from current timeline state.
func (e *Emitter) ChatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setSSEHeaders(w)
		flusher, _ := w.(http.Flusher)

		correlationID := strings.TrimSpace(r.URL.Query().Get("correlation_id"))
		seed := FallbackSeed
		if entry, ok := e.store.FindLatestMessage(correlationID); ok {
			seed = entry.Content
		}
		words := ReplyWords(seed)

		writeEvent(w, flusher, EventChatStart, map[string]any{
			"correlation_id": correlationID,
			"seed":           seed,
		})
		ticker := time.NewTicker(e.chunkInterval)
		defer ticker.Stop()
		for i, word := range words {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}
			writeEvent(w, flusher, EventChatChunk, map[string]any{
				"index": i,
				"word":  word,
			})
		}
		writeEvent(w, flusher, EventChatComplete, map[string]any{
			"correlation_id": correlationID,
			"words":          len(words),
		})
	}
}

// ReplyWords splits the fixed reply template, seeded with the message
// being acknowledged, into pacing units.
func ReplyWords(seed string) []string {
	reply := fmt.Sprintf("Acknowledged %q. The agent link is warming up and a full reply will land in the timeline shortly.", seed)
	return strings.Fields(reply)
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	if flusher != nil {
		flusher.Flush()
	}
}
