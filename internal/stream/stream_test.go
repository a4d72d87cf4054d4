package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AlphonseHQ/console/internal/alphonse"
	"github.com/AlphonseHQ/console/internal/timeline"
)

type stubPresence struct {
	snapshots []alphonse.Presence
	calls     int
}

func (s *stubPresence) PresenceSnapshot(ctx context.Context) alphonse.Presence {
	snap := s.snapshots[s.calls%len(s.snapshots)]
	s.calls++
	return snap
}

// eventNames extracts the ordered event names from an SSE body.
func eventNames(body string) []string {
	var names []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "event: ") {
			names = append(names, strings.TrimPrefix(line, "event: "))
		}
	}
	return names
}

func TestChatStreamOrdering(t *testing.T) {
	store := timeline.NewStore()
	store.Append(timeline.Message(timeline.RoleUser, "ping", "Z"))

	e := NewEmitter(&stubPresence{snapshots: []alphonse.Presence{{}}}, store, time.Second, time.Millisecond)

	req := httptest.NewRequest("GET", "/stream/chat?correlation_id=Z", nil)
	rec := httptest.NewRecorder()
	e.ChatHandler()(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Fatalf("unexpected cache control %q", cc)
	}

	names := eventNames(rec.Body.String())
	wantChunks := len(ReplyWords("ping"))
	if len(names) != wantChunks+2 {
		t.Fatalf("expected start + %d chunks + complete, got %d events: %v", wantChunks, len(names), names)
	}
	if names[0] != EventChatStart {
		t.Fatalf("first event must be chat_start, got %q", names[0])
	}
	if names[len(names)-1] != EventChatComplete {
		t.Fatalf("last event must be chat_complete, got %q", names[len(names)-1])
	}
	for _, n := range names[1 : len(names)-1] {
		if n != EventChatChunk {
			t.Fatalf("middle events must all be chat_chunk, got %q", n)
		}
	}
	if !strings.Contains(rec.Body.String(), `\"ping\"`) && !strings.Contains(rec.Body.String(), "ping") {
		t.Fatal("seed text missing from stream")
	}
}

func TestChatStreamFallbackSeed(t *testing.T) {
	store := timeline.NewStore()
	e := NewEmitter(&stubPresence{snapshots: []alphonse.Presence{{}}}, store, time.Second, time.Millisecond)

	req := httptest.NewRequest("GET", "/stream/chat?correlation_id=unknown", nil)
	rec := httptest.NewRecorder()
	e.ChatHandler()(rec, req)

	if !strings.Contains(rec.Body.String(), "No recent signal") {
		t.Fatalf("expected fallback seed in stream, got: %s", rec.Body.String())
	}
	names := eventNames(rec.Body.String())
	if names[0] != EventChatStart || names[len(names)-1] != EventChatComplete {
		t.Fatalf("degraded stream must still bracket with start/complete: %v", names)
	}
}

func TestChatStreamClientDisconnect(t *testing.T) {
	store := timeline.NewStore()
	store.Append(timeline.Message(timeline.RoleUser, "ping", "Z"))
	e := NewEmitter(&stubPresence{snapshots: []alphonse.Presence{{}}}, store, time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/stream/chat?correlation_id=Z", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		e.ChatHandler()(rec, req)
		close(done)
	}()
	time.Sleep(80 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not stop on client disconnect")
	}
	names := eventNames(rec.Body.String())
	for _, n := range names {
		if n == EventChatComplete {
			t.Fatal("disconnected stream must not complete")
		}
	}
}

func TestPresenceStreamEmitsOnCadence(t *testing.T) {
	src := &stubPresence{snapshots: []alphonse.Presence{
		{Status: "connected", Note: "Alphonse API connected"},
		{Status: "disconnected", Note: "Alphonse API unavailable"},
	}}
	store := timeline.NewStore()
	e := NewEmitter(src, store, 20*time.Millisecond, time.Millisecond)

	var observed []string
	e.ObservePresence(func(p alphonse.Presence) { observed = append(observed, p.Status) })

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest("GET", "/stream/presence", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	e.PresenceHandler()(rec, req)

	names := eventNames(rec.Body.String())
	if len(names) < 2 {
		t.Fatalf("expected at least two presence events, got %v", names)
	}
	for _, n := range names {
		if n != EventPresence {
			t.Fatalf("unexpected event %q", n)
		}
	}
	// A failed poll still produces a well-formed disconnected event.
	if !strings.Contains(rec.Body.String(), "disconnected") {
		t.Fatal("expected a disconnected presence event in the stream")
	}
	if len(observed) != src.calls {
		t.Fatalf("observer missed snapshots: %d vs %d", len(observed), src.calls)
	}
}

func TestReplyWordsNeverEmptyForSeed(t *testing.T) {
	if len(ReplyWords("ping")) == 0 {
		t.Fatal("reply template must produce words")
	}
}
