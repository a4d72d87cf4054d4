package relay

import (
	"context"
	"testing"
	"time"

	"github.com/AlphonseHQ/console/internal/alphonse"
	"github.com/AlphonseHQ/console/internal/timeline"
)

type stubSender struct {
	result     alphonse.SendResult
	voiceCalls int

	// When set, SendMessage reports the correlation id it started on
	// and then blocks until release is closed.
	started chan string
	release chan struct{}
}

func (s *stubSender) SendMessage(ctx context.Context, text, correlationID string, args map[string]any) alphonse.SendResult {
	if s.started != nil {
		s.started <- correlationID
	}
	if s.release != nil {
		<-s.release
	}
	res := s.result
	res.CorrelationID = correlationID
	return res
}

func (s *stubSender) SendVoice(ctx context.Context, filename string, audio []byte, correlationID, audioMode string) alphonse.SendResult {
	s.voiceCalls++
	res := s.result
	res.CorrelationID = correlationID
	return res
}

func waitForContent(t *testing.T, store *timeline.Store, cid, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e, ok := store.FindLatestMessage(cid); ok && e.Content == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	e, _ := store.FindLatestMessage(cid)
	t.Fatalf("placeholder never resolved to %q, last seen %+v", want, e)
}

func TestResolverRewritesPlaceholderWithReply(t *testing.T) {
	store := timeline.NewStore()
	store.Append(timeline.Message(timeline.RoleUser, "hi", "c1"))
	store.Append(timeline.Message(timeline.RoleAssistant, timeline.PlaceholderContent, "c1"))

	sender := &stubSender{result: alphonse.SendResult{
		OK:     true,
		Status: alphonse.StatusAccepted,
		Data:   map[string]any{"message": "hello back"},
	}}
	r := NewResolver(sender, store, Options{Workers: 1})
	defer r.Close()

	if !r.Submit(Job{Text: "hi", CorrelationID: "c1"}) {
		t.Fatal("submit should be accepted")
	}
	waitForContent(t, store, "c1", "hello back")
	if store.Len() != 2 {
		t.Fatalf("resolution must rewrite in place, timeline length %d", store.Len())
	}
}

func TestResolverFallsBackWhenUpstreamUnavailable(t *testing.T) {
	store := timeline.NewStore()
	store.Append(timeline.Message(timeline.RoleAssistant, timeline.PlaceholderContent, "c2"))

	sender := &stubSender{result: alphonse.SendResult{OK: false, Status: alphonse.StatusUnavailable}}
	r := NewResolver(sender, store, Options{Workers: 1})
	defer r.Close()

	r.Submit(Job{Text: "hi", CorrelationID: "c2"})
	waitForContent(t, store, "c2", UnavailableReply)
}

func TestResolverFallsBackWhenReplyShapeless(t *testing.T) {
	store := timeline.NewStore()
	store.Append(timeline.Message(timeline.RoleAssistant, timeline.PlaceholderContent, "c3"))

	// OK result whose payload carries no usable message string.
	sender := &stubSender{result: alphonse.SendResult{
		OK:     true,
		Status: alphonse.StatusAccepted,
		Data:   map[string]any{"message_id": 42},
	}}
	r := NewResolver(sender, store, Options{Workers: 1})
	defer r.Close()

	r.Submit(Job{Text: "hi", CorrelationID: "c3"})
	waitForContent(t, store, "c3", UnavailableReply)
}

func TestSubmitNeverBlocksWhenQueueFull(t *testing.T) {
	store := timeline.NewStore()
	store.Append(timeline.Message(timeline.RoleAssistant, timeline.PlaceholderContent, "slow"))
	store.Append(timeline.Message(timeline.RoleAssistant, timeline.PlaceholderContent, "queued"))
	store.Append(timeline.Message(timeline.RoleAssistant, timeline.PlaceholderContent, "spill"))

	sender := &stubSender{
		started: make(chan string, 3),
		release: make(chan struct{}),
		result: alphonse.SendResult{
			OK:   true,
			Data: map[string]any{"message": "late"},
		},
	}
	r := NewResolver(sender, store, Options{Workers: 1, QueueSize: 1})
	defer r.Close()

	r.Submit(Job{CorrelationID: "slow"})
	// Only fill the queue once the worker provably owns "slow";
	// otherwise "queued" may itself hit the full-queue branch.
	if got := <-sender.started; got != "slow" {
		t.Fatalf("expected worker to pick up slow first, got %q", got)
	}
	r.Submit(Job{CorrelationID: "queued"}) // fills the queue
	done := make(chan bool, 1)
	go func() {
		done <- r.Submit(Job{CorrelationID: "spill"}) // must not block
	}()
	select {
	case accepted := <-done:
		if accepted {
			t.Fatal("saturated queue must report rejection")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Submit blocked on a full queue")
	}
	waitForContent(t, store, "spill", UnavailableReply)
	close(sender.release)
	waitForContent(t, store, "queued", "late")
}

func TestVoiceJobDispatchesAsVoice(t *testing.T) {
	store := timeline.NewStore()
	store.Append(timeline.Message(timeline.RoleAssistant, timeline.PlaceholderContent, "v1"))

	sender := &stubSender{result: alphonse.SendResult{
		OK:   true,
		Data: map[string]any{"message": "heard you"},
	}}
	r := NewResolver(sender, store, Options{Workers: 1})

	r.Submit(Job{
		CorrelationID: "v1",
		Filename:      "clip.ogg",
		Audio:         []byte{0x4f, 0x67},
		AudioMode:     "local_audio",
	})
	waitForContent(t, store, "v1", "heard you")
	r.Close()
	if sender.voiceCalls != 1 {
		t.Fatalf("expected one voice dispatch, got %d", sender.voiceCalls)
	}
}
