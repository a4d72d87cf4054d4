// Package timeline provides the in-memory conversation timeline shared
// between HTTP handlers and background reply resolvers.
package timeline

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Entry kinds.
const (
	KindMessage    = "message"
	KindDelegation = "delegation"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Delegation statuses.
const (
	DelegationAssigned    = "assigned"
	DelegationQueuedLocal = "queued_local"
)

// PlaceholderContent marks an assistant reply awaiting background resolution.
const PlaceholderContent = "Thinking..."

// Entry is one timeline record: either a chat message or a delegation
// event, discriminated by Kind.
type Entry struct {
	Kind          string `json:"kind"`
	Role          string `json:"role,omitempty"`
	Content       string `json:"content,omitempty"`
	DelegateID    string `json:"delegate_id,omitempty"`
	DelegateName  string `json:"delegate_name,omitempty"`
	Capability    string `json:"capability,omitempty"`
	Command       string `json:"command,omitempty"`
	Status        string `json:"status,omitempty"`
	Timestamp     string `json:"timestamp"`
	CorrelationID string `json:"correlation_id"`
}

// Message builds a message entry stamped with the current time.
func Message(role, content, correlationID string) Entry {
	return Entry{
		Kind:          KindMessage,
		Role:          role,
		Content:       content,
		Timestamp:     NowISO(),
		CorrelationID: correlationID,
	}
}

// Delegation builds a delegation entry stamped with the current time.
func Delegation(delegateID, delegateName, capability, command, status, correlationID string) Entry {
	return Entry{
		Kind:          KindDelegation,
		DelegateID:    delegateID,
		DelegateName:  delegateName,
		Capability:    capability,
		Command:       command,
		Status:        status,
		Timestamp:     NowISO(),
		CorrelationID: correlationID,
	}
}

// NowISO returns the current local time as RFC3339 with offset,
// truncated to seconds.
func NowISO() string {
	return time.Now().Truncate(time.Second).Format(time.RFC3339)
}

// EnsureCorrelationID trims the given id and generates a ui-<millis>
// id when it is blank. Non-blank ids pass through unchanged.
func EnsureCorrelationID(id string) string {
	id = strings.TrimSpace(id)
	if id != "" {
		return id
	}
	return fmt.Sprintf("ui-%d", time.Now().UnixMilli())
}

// Store is the shared ordered log of timeline entries. All structural
// access is serialized by one mutex; callers only ever see copies.
// Growth is unbounded for the process lifetime.
type Store struct {
	mu      sync.Mutex
	entries []Entry
}

// NewStore creates an empty timeline store.
func NewStore() *Store {
	return &Store{}
}

// Append adds an entry to the end of the timeline.
func (s *Store) Append(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

// Snapshot returns a point-in-time copy of the timeline in insertion
// order. The live slice is never aliased.
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the current number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ResolvePendingReply rewrites the newest assistant message with the
// given correlation id in place (content and timestamp). When no such
// entry exists it appends a fresh assistant message instead. Returns
// true when an existing placeholder was rewritten.
//
// Newest-match-wins: two submissions sharing one correlation id can
// cross-resolve each other's placeholders. Duplicate correlation ids
// are unspecified upstream, so that race is tolerated here.
func (s *Store) ResolvePendingReply(correlationID, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := &s.entries[i]
		if e.Kind == KindMessage && e.Role == RoleAssistant && e.CorrelationID == correlationID {
			e.Content = content
			e.Timestamp = NowISO()
			return true
		}
	}
	s.entries = append(s.entries, Message(RoleAssistant, content, correlationID))
	return false
}

// FindLatestMessage returns the newest message entry (any role) with
// the given correlation id.
func (s *Store) FindLatestMessage(correlationID string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.Kind == KindMessage && e.CorrelationID == correlationID {
			return e, true
		}
	}
	return Entry{}, false
}
