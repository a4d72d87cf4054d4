package notify

import (
	"testing"

	"github.com/AlphonseHQ/console/internal/alphonse"
)

func TestNewAlerterRequiresTokenAndChannel(t *testing.T) {
	if NewAlerter("", "#ops") != nil {
		t.Fatal("blank token must disable alerting")
	}
	if NewAlerter("xoxb-token", " ") != nil {
		t.Fatal("blank channel must disable alerting")
	}
	if NewAlerter("xoxb-token", "#ops") == nil {
		t.Fatal("expected alerter")
	}
}

func TestNilAlerterIsNoOp(t *testing.T) {
	var a *Alerter
	// Must not panic.
	a.Observe(alphonse.Presence{Status: "disconnected"})
}

func TestObserveTracksTransitionsOnly(t *testing.T) {
	a := NewAlerter("xoxb-token", "#ops")

	a.Observe(alphonse.Presence{Status: "connected"})
	a.mu.Lock()
	if a.last != "up" {
		t.Fatalf("expected up after first snapshot, got %q", a.last)
	}
	a.mu.Unlock()

	// Same state again: no transition recorded beyond the state itself.
	a.Observe(alphonse.Presence{Status: "connected"})
	a.mu.Lock()
	if a.last != "up" {
		t.Fatalf("state drifted without a transition: %q", a.last)
	}
	a.mu.Unlock()
}
