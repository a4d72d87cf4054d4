package alphonse

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// The ten upstream CRUD families. All follow one wrapper template:
// list with filters and a clamped limit, get by id, create, partial
// update, delete. Each is validated with the same "object with the
// expected key, else unavailable" discipline.
var ResourceFamilies = []string{
	"tool-configs",
	"onboarding-profiles",
	"locations",
	"device-locations",
	"users",
	"telegram-invites",
	"prompts",
	"abilities",
	"gap-proposals",
	"gap-tasks",
}

const (
	defaultResourceLimit = 50
	maxResourceLimit     = 200
)

// ItemResult is the outcome of a single-record resource operation.
type ItemResult struct {
	OK     bool           `json:"ok"`
	Status string         `json:"status"`
	Item   map[string]any `json:"item,omitempty"`
}

// ItemsResult is the outcome of a resource list operation.
type ItemsResult struct {
	OK     bool             `json:"ok"`
	Status string           `json:"status"`
	Items  []map[string]any `json:"items"`
}

// Resource is a thin handle for one CRUD family under /agent/<family>.
type Resource struct {
	client *Client
	family string
}

// Resource returns the handle for a family, e.g. "users" or "prompts".
func (c *Client) Resource(family string) Resource {
	return Resource{client: c, family: family}
}

// KnownFamily reports whether family is one of the upstream families.
func KnownFamily(family string) bool {
	for _, f := range ResourceFamilies {
		if f == family {
			return true
		}
	}
	return false
}

func (r Resource) basePath() string {
	return "/agent/" + r.family
}

// List fetches records with optional query filters. The limit is
// clamped to [1, 200], defaulting to 50.
func (r Resource) List(ctx context.Context, filters map[string]string, limit int) ItemsResult {
	if limit <= 0 {
		limit = defaultResourceLimit
	}
	if limit > maxResourceLimit {
		limit = maxResourceLimit
	}
	q := url.Values{}
	for k, v := range filters {
		if k != "" && v != "" {
			q.Set(k, v)
		}
	}
	q.Set("limit", strconv.Itoa(limit))
	payload := r.client.requestJSON(ctx, http.MethodGet, r.basePath()+"?"+q.Encode(), nil, presenceTimeout, true)
	items := extractItems(payload)
	if items == nil {
		return ItemsResult{OK: false, Status: StatusUnavailable}
	}
	return ItemsResult{OK: true, Status: "ok", Items: items}
}

// Get fetches one record by id.
func (r Resource) Get(ctx context.Context, id string) ItemResult {
	payload := r.client.requestJSON(ctx, http.MethodGet, r.basePath()+"/"+url.PathEscape(id), nil, presenceTimeout, true)
	return itemResult(payload)
}

// Create posts a new record.
func (r Resource) Create(ctx context.Context, fields map[string]any) ItemResult {
	payload := r.client.requestJSON(ctx, http.MethodPost, r.basePath(), fields, r.client.messageTimeout, true)
	return itemResult(payload)
}

// Update patches a record with only the fields the caller set.
func (r Resource) Update(ctx context.Context, id string, fields map[string]any) ItemResult {
	if len(fields) == 0 {
		return ItemResult{OK: false, Status: "invalid"}
	}
	payload := r.client.requestJSON(ctx, http.MethodPatch, r.basePath()+"/"+url.PathEscape(id), fields, r.client.messageTimeout, true)
	return itemResult(payload)
}

// Delete removes a record by id.
func (r Resource) Delete(ctx context.Context, id string) ItemResult {
	payload := r.client.requestJSON(ctx, http.MethodDelete, r.basePath()+"/"+url.PathEscape(id), nil, r.client.messageTimeout, true)
	if payload == nil {
		return ItemResult{OK: false, Status: StatusUnavailable}
	}
	return ItemResult{OK: true, Status: "deleted"}
}

// extractItems accepts a bare list or an {items:[...]} envelope and
// keeps only object entries.
func extractItems(payload any) []map[string]any {
	var raw []any
	switch v := payload.(type) {
	case []any:
		raw = v
	case map[string]any:
		candidates, ok := v["items"].([]any)
		if !ok {
			return nil
		}
		raw = candidates
	default:
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// itemResult accepts a bare object or an {item:{...}} envelope.
func itemResult(payload any) ItemResult {
	obj, ok := payload.(map[string]any)
	if !ok {
		return ItemResult{OK: false, Status: StatusUnavailable}
	}
	if inner, ok := obj["item"].(map[string]any); ok {
		return ItemResult{OK: true, Status: "ok", Item: inner}
	}
	if len(obj) == 0 {
		return ItemResult{OK: false, Status: StatusUnavailable}
	}
	return ItemResult{OK: true, Status: "ok", Item: obj}
}
