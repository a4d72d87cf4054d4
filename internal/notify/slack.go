// Package notify posts availability alerts to Slack. Like the event
// exporter, a nil *Alerter is a safe no-op.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"github.com/AlphonseHQ/console/internal/alphonse"
)

// Alerter posts a message on agent availability transitions. Repeated
// snapshots in the same state are suppressed; only edges alert.
type Alerter struct {
	api     *slack.Client
	channel string

	mu   sync.Mutex
	last string
}

// NewAlerter creates an alerter, or nil when token or channel is blank.
func NewAlerter(token, channel string) *Alerter {
	token = strings.TrimSpace(token)
	channel = strings.TrimSpace(channel)
	if token == "" || channel == "" {
		return nil
	}
	return &Alerter{api: slack.New(token), channel: channel}
}

// Observe feeds one presence snapshot. Posts only on a transition
// between disconnected and anything else.
func (a *Alerter) Observe(p alphonse.Presence) {
	if a == nil {
		return
	}
	state := "up"
	if p.Status == "disconnected" {
		state = "down"
	}
	a.mu.Lock()
	changed := a.last != "" && a.last != state
	first := a.last == ""
	a.last = state
	a.mu.Unlock()
	if first || !changed {
		return
	}

	text := fmt.Sprintf("Alphonse agent link is %s (status: %s)", state, p.Status)
	_, _, err := a.api.PostMessageContext(
		context.Background(),
		a.channel,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		log.Warn().Err(err).Msg("slack alert failed")
	}
}
