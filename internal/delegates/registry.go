// Package delegates resolves the delegate registry: remote records win
// whenever the Agent API returns at least one valid one, otherwise a
// small static fallback set keeps the assignment screens usable.
package delegates

import (
	"context"
	"time"

	"github.com/AlphonseHQ/console/internal/alphonse"
)

// Source is the remote registry lookup the Registry depends on.
type Source interface {
	ListDelegates(ctx context.Context) []alphonse.Delegate
	GetDelegate(ctx context.Context, id string) *alphonse.Delegate
}

// Registry serves delegate lookups with remote-first semantics.
type Registry struct {
	source   Source
	fallback []alphonse.Delegate
}

// NewRegistry creates a registry over the given remote source with the
// static fallback set constructed at process start.
func NewRegistry(source Source) *Registry {
	return &Registry{
		source:   source,
		fallback: fallbackSet(),
	}
}

// List returns the remote registry when it has at least one valid
// record, else the fallback set. Always returns a fresh copy.
func (r *Registry) List(ctx context.Context) []alphonse.Delegate {
	if remote := r.source.ListDelegates(ctx); len(remote) > 0 {
		return remote
	}
	out := make([]alphonse.Delegate, len(r.fallback))
	copy(out, r.fallback)
	return out
}

// Get resolves one delegate by id, remote first, then fallback.
func (r *Registry) Get(ctx context.Context, id string) (alphonse.Delegate, bool) {
	if d := r.source.GetDelegate(ctx, id); d != nil {
		return *d, true
	}
	for _, d := range r.fallback {
		if d.ID == id {
			return d, true
		}
	}
	return alphonse.Delegate{}, false
}

// fallbackSet is the hardcoded registry used when the upstream one is
// unreachable or structurally empty.
func fallbackSet() []alphonse.Delegate {
	seen := time.Now().Add(-15 * time.Minute).Format(time.RFC3339)
	return []alphonse.Delegate{
		{
			ID:              "delegate-researcher",
			Name:            "Researcher",
			Capabilities:    []string{"research", "summarize"},
			ContractVersion: "1.0",
			PricingModel:    "flat",
			Status:          "offline-cache",
			LastSeen:        seen,
		},
		{
			ID:              "delegate-courier",
			Name:            "Courier",
			Capabilities:    []string{"dispatch", "fetch"},
			ContractVersion: "1.0",
			Status:          "offline-cache",
			LastSeen:        seen,
		},
		{
			ID:              "delegate-archivist",
			Name:            "Archivist",
			Capabilities:    []string{"recall", "index"},
			ContractVersion: "1.1",
			Status:          "offline-cache",
			LastSeen:        seen,
		},
	}
}
