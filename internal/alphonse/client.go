// Package alphonse is the HTTP adapter for the Alphonse Agent API.
//
// The upstream response envelope is not stable across deployments, so
// every call here validates shape before trusting it and degrades to a
// typed unavailable result instead of returning transport errors.
// Callers only ever branch on OK/nil.
package alphonse

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AlphonseHQ/console/internal/config"
)

// Result statuses.
const (
	StatusAccepted    = "accepted"
	StatusAssigned    = "assigned"
	StatusUnavailable = "unavailable"
)

const presenceTimeout = 3 * time.Second

// SendResult is the outcome of a message or voice relay.
type SendResult struct {
	OK            bool           `json:"ok"`
	Status        string         `json:"status"`
	CorrelationID string         `json:"correlation_id"`
	Data          map[string]any `json:"data,omitempty"`
}

// ReplyText mines the upstream payload for a reply string. Prefers the
// top-level "message" field, then "data.message".
func (r SendResult) ReplyText() string {
	if r.Data == nil {
		return ""
	}
	if msg, ok := r.Data["message"].(string); ok {
		return msg
	}
	if inner, ok := r.Data["data"].(map[string]any); ok {
		if msg, ok := inner["message"].(string); ok {
			return msg
		}
	}
	return ""
}

// Presence is a point-in-time view of the agent link.
type Presence struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// AssignResult is the outcome of a delegate assignment.
type AssignResult struct {
	OK     bool           `json:"ok"`
	Status string         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
}

// Delegate is a validated registry record.
type Delegate struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Capabilities    []string `json:"capabilities"`
	ContractVersion string   `json:"contract_version"`
	PricingModel    string   `json:"pricing_model,omitempty"`
	Status          string   `json:"status,omitempty"`
	LastSeen        string   `json:"last_seen,omitempty"`
}

// Client talks to the Alphonse Agent API. It holds no mutable state
// besides configuration read at construction and is safe for
// concurrent use.
type Client struct {
	baseURL        string
	apiToken       string
	userName       string
	messageTimeout time.Duration
	httpClient     *http.Client
}

// New creates a client from the Alphonse config group.
func New(cfg config.AlphonseConfig) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = "http://localhost:8001"
	}
	return &Client{
		baseURL:        base,
		apiToken:       strings.TrimSpace(cfg.APIToken),
		userName:       cfg.UserName,
		messageTimeout: cfg.MessageTimeout(),
		httpClient:     &http.Client{},
	}
}

// SendMessage relays a chat message upstream. The response is accepted
// only if it is a JSON object carrying a string "message"; the raw
// object is carried through on Data so callers can mine it.
func (c *Client) SendMessage(ctx context.Context, text, correlationID string, args map[string]any) SendResult {
	if args == nil {
		args = map[string]any{}
	}
	payload := map[string]any{
		"text":           text,
		"args":           args,
		"channel":        "webui",
		"timestamp":      time.Now().Unix(),
		"correlation_id": correlationID,
		"metadata":       map[string]any{"user_name": c.userName},
	}
	data := c.requestJSON(ctx, http.MethodPost, "/agent/message", payload, c.messageTimeout, false)
	obj, ok := data.(map[string]any)
	if !ok || !validMessageResponse(obj) {
		return SendResult{OK: false, Status: StatusUnavailable, CorrelationID: correlationID}
	}
	return SendResult{OK: true, Status: StatusAccepted, CorrelationID: correlationID, Data: obj}
}

// SendVoice relays a recorded audio clip upstream as a multipart form.
// Same acceptance rule and degradation as SendMessage.
func (c *Client) SendVoice(ctx context.Context, filename string, audio []byte, correlationID, audioMode string) SendResult {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return SendResult{OK: false, Status: StatusUnavailable, CorrelationID: correlationID}
	}
	if _, err := part.Write(audio); err != nil {
		return SendResult{OK: false, Status: StatusUnavailable, CorrelationID: correlationID}
	}
	_ = writer.WriteField("channel", "webui")
	_ = writer.WriteField("correlation_id", correlationID)
	_ = writer.WriteField("audio_mode", audioMode)
	_ = writer.WriteField("user_name", c.userName)
	if err := writer.Close(); err != nil {
		return SendResult{OK: false, Status: StatusUnavailable, CorrelationID: correlationID}
	}

	data := c.requestRaw(ctx, http.MethodPost, "/agent/voice", body.Bytes(), writer.FormDataContentType(), c.messageTimeout)
	obj, ok := data.(map[string]any)
	if !ok || !validMessageResponse(obj) {
		return SendResult{OK: false, Status: StatusUnavailable, CorrelationID: correlationID}
	}
	return SendResult{OK: true, Status: StatusAccepted, CorrelationID: correlationID, Data: obj}
}

// PresenceSnapshot polls the agent status endpoint. Any invalidity
// maps to a disconnected snapshot, never an error.
func (c *Client) PresenceSnapshot(ctx context.Context) Presence {
	data := c.requestJSON(ctx, http.MethodGet, "/agent/status", nil, presenceTimeout, true)
	obj, ok := data.(map[string]any)
	if !ok || !validStatusResponse(obj) {
		return Presence{Status: "disconnected", Note: "Alphonse API unavailable"}
	}
	state := "connected"
	if runtime, ok := obj["runtime"].(map[string]any); ok {
		if v, ok := runtime["state"].(string); ok && v != "" {
			state = v
		} else if v, ok := runtime["status"].(string); ok && v != "" {
			state = v
		}
	}
	return Presence{Status: state, Note: "Alphonse API connected"}
}

// ListDelegates fetches the delegate registry, trying the versioned
// endpoint first and the legacy path on empty or invalid results.
// Malformed records are dropped, not reported.
func (c *Client) ListDelegates(ctx context.Context) []Delegate {
	payload := c.requestJSON(ctx, http.MethodGet, "/api/v1/delegates", nil, presenceTimeout, true)
	if delegates := extractDelegateList(payload); delegates != nil {
		return delegates
	}
	payload = c.requestJSON(ctx, http.MethodGet, "/delegates", nil, presenceTimeout, true)
	return extractDelegateList(payload)
}

// GetDelegate fetches one delegate by id, with the same legacy
// fallback as ListDelegates. Returns nil when no valid record exists.
func (c *Client) GetDelegate(ctx context.Context, id string) *Delegate {
	path := "/api/v1/delegates/" + url.PathEscape(id)
	payload := c.requestJSON(ctx, http.MethodGet, path, nil, presenceTimeout, true)
	if d := extractDelegate(payload); d != nil {
		return d
	}
	payload = c.requestJSON(ctx, http.MethodGet, "/delegates/"+url.PathEscape(id), nil, presenceTimeout, true)
	return extractDelegate(payload)
}

// AssignDelegate posts a command assignment. The acceptance rule is
// deliberately permissive: upstream shape is unspecified, so anything
// plausibly non-empty counts as success rather than failing the
// user-visible action.
func (c *Client) AssignDelegate(ctx context.Context, delegateID, capability, command, correlationID string) AssignResult {
	payload := map[string]any{
		"capability":     capability,
		"command":        command,
		"correlation_id": correlationID,
		"timestamp":      float64(time.Now().UnixNano()) / float64(time.Second),
	}
	for _, path := range []string{
		"/api/v1/delegates/" + url.PathEscape(delegateID) + "/assign",
		"/delegates/" + url.PathEscape(delegateID) + "/assign",
	} {
		response := c.requestJSON(ctx, http.MethodPost, path, payload, c.messageTimeout, true)
		if validAssignResponse(response) {
			data, _ := response.(map[string]any)
			return AssignResult{OK: true, Status: StatusAssigned, Data: data}
		}
	}
	return AssignResult{OK: false, Status: StatusUnavailable}
}

// requestJSON performs one JSON round trip. Returns the decoded object
// or list, or nil on any transport, status, or decode failure. When
// unwrapData is set and the object carries a non-nil "data" field, that
// field is returned instead of the envelope.
func (c *Client) requestJSON(ctx context.Context, method, path string, payload map[string]any, timeout time.Duration, unwrapData bool) any {
	var body []byte
	contentType := ""
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil
		}
		body = encoded
		contentType = "application/json"
	}
	parsed := c.requestRaw(ctx, method, path, body, contentType, timeout)
	if obj, ok := parsed.(map[string]any); ok && unwrapData {
		if data, ok := obj["data"]; ok && data != nil {
			return data
		}
	}
	return parsed
}

func (c *Client) requestRaw(ctx context.Context, method, path string, body []byte, contentType string, timeout time.Duration) any {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiToken != "" {
		req.Header.Set("x-alphonse-api-token", c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("alphonse request failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("alphonse non-2xx")
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil
	}
	switch parsed.(type) {
	case map[string]any, []any:
		return parsed
	}
	return nil
}

// validMessageResponse accepts an object carrying a string reply
// either at the top level or nested under "data", matching the two
// envelope variants the upstream emits.
func validMessageResponse(obj map[string]any) bool {
	if _, ok := obj["message"].(string); ok {
		return true
	}
	if inner, ok := obj["data"].(map[string]any); ok {
		_, ok := inner["message"].(string)
		return ok
	}
	return false
}

func validStatusResponse(obj map[string]any) bool {
	runtime, present := obj["runtime"]
	if !present || runtime == nil {
		return true
	}
	_, ok := runtime.(map[string]any)
	return ok
}

func validAssignResponse(payload any) bool {
	obj, ok := payload.(map[string]any)
	if !ok {
		return false
	}
	if _, ok := obj["status"].(string); ok {
		return true
	}
	if _, ok := obj["delegate_id"]; ok {
		return true
	}
	if _, ok := obj["id"]; ok {
		return true
	}
	return len(obj) > 0
}

func extractDelegateList(payload any) []Delegate {
	var raw []any
	switch v := payload.(type) {
	case []any:
		raw = v
	case map[string]any:
		candidates, ok := v["delegates"].([]any)
		if !ok {
			return nil
		}
		raw = candidates
	default:
		return nil
	}
	var out []Delegate
	for _, item := range raw {
		if d := decodeDelegate(item); d != nil {
			out = append(out, *d)
		}
	}
	return out
}

func extractDelegate(payload any) *Delegate {
	if d := decodeDelegate(payload); d != nil {
		return d
	}
	if obj, ok := payload.(map[string]any); ok {
		return decodeDelegate(obj["delegate"])
	}
	return nil
}

// decodeDelegate applies the validity predicate: id, name and
// contract_version non-blank strings, capabilities a list of strings.
// Anything else is dropped silently.
func decodeDelegate(payload any) *Delegate {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	id, _ := obj["id"].(string)
	name, _ := obj["name"].(string)
	contract, _ := obj["contract_version"].(string)
	if strings.TrimSpace(id) == "" || strings.TrimSpace(name) == "" || strings.TrimSpace(contract) == "" {
		return nil
	}
	rawCaps, ok := obj["capabilities"].([]any)
	if !ok {
		return nil
	}
	caps := make([]string, 0, len(rawCaps))
	for _, c := range rawCaps {
		s, ok := c.(string)
		if !ok {
			return nil
		}
		caps = append(caps, s)
	}
	d := &Delegate{
		ID:              id,
		Name:            name,
		Capabilities:    caps,
		ContractVersion: contract,
	}
	if v, ok := obj["pricing_model"].(string); ok {
		d.PricingModel = v
	}
	if v, ok := obj["status"].(string); ok {
		d.Status = v
	}
	if v, ok := obj["last_seen"].(string); ok {
		d.LastSeen = v
	}
	return d
}

// BaseURL reports the configured upstream base, for diagnostics.
func (c *Client) BaseURL() string { return c.baseURL }
