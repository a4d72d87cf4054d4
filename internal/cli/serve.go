package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/AlphonseHQ/console/internal/alphonse"
	"github.com/AlphonseHQ/console/internal/config"
	"github.com/AlphonseHQ/console/internal/delegates"
	"github.com/AlphonseHQ/console/internal/events"
	"github.com/AlphonseHQ/console/internal/notify"
	"github.com/AlphonseHQ/console/internal/relay"
	"github.com/AlphonseHQ/console/internal/stream"
	"github.com/AlphonseHQ/console/internal/timeline"
	"github.com/AlphonseHQ/console/web"
)

// UI event types stamped on chat endpoint responses and exported to
// the event bus when one is configured.
const (
	EventCommandReceived = "ui.command.received"
	EventCommandFailed   = "ui.command.failed"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the console web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// consoleServer bundles the collaborators every handler closes over.
type consoleServer struct {
	cfg       *config.Config
	client    *alphonse.Client
	store     *timeline.Store
	resolver  *relay.Resolver
	registry  *delegates.Registry
	renderer  *web.Renderer
	emitter   *stream.Emitter
	publisher *events.Publisher
	started   time.Time
}

func runServe() error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	printHeader("🖥️ Alphonse Console")

	client := alphonse.New(cfg.Alphonse)
	store := timeline.NewStore()
	resolver := relay.NewResolver(client, store, relay.Options{})
	registry := delegates.NewRegistry(client)
	renderer, err := web.NewRenderer()
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}
	emitter := stream.NewEmitter(client, store,
		cfg.Stream.PresenceInterval, cfg.Stream.ChatChunkInterval)
	publisher := events.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic)
	if alerter := notify.NewAlerter(cfg.Notify.SlackToken, cfg.Notify.SlackChannel); alerter != nil {
		emitter.ObservePresence(alerter.Observe)
	}

	srv := &consoleServer{
		cfg:       cfg,
		client:    client,
		store:     store,
		resolver:  resolver,
		registry:  registry,
		renderer:  renderer,
		emitter:   emitter,
		publisher: publisher,
		started:   time.Now(),
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{Addr: addr, Handler: srv.routes()}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("agent_api", client.BaseURL()).Msg("console listening")
		fmt.Printf("📡 Console listening on http://%s\n", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		resolver.Close()
		publisher.Close()
		return err
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	resolver.Close()
	publisher.Close()
	return nil
}

// routes assembles the HTTP surface.
func (s *consoleServer) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/chat", http.StatusFound)
	})

	mux.HandleFunc("GET /chat", s.handleChatPage)
	mux.HandleFunc("GET /admin", s.handlePage("admin", "Admin"))
	mux.HandleFunc("GET /integrations", s.handlePage("integrations", "Integrations"))
	mux.HandleFunc("GET /delegates", s.handleDelegatesPage)

	mux.HandleFunc("POST /chat/messages", s.handleChatMessage)
	mux.HandleFunc("GET /chat/timeline", s.handleChatTimeline)
	mux.HandleFunc("POST /chat/voice", s.handleChatVoice)
	mux.HandleFunc("GET /ui/presence", s.handlePresenceFragment)

	mux.HandleFunc("GET /stream/presence", s.emitter.PresenceHandler())
	mux.HandleFunc("GET /stream/chat", s.emitter.ChatHandler())

	mux.HandleFunc("POST /delegates/{id}/assign", s.handleDelegateAssign)

	mux.HandleFunc("/admin/api/{family}", s.handleResourceCollection)
	mux.HandleFunc("/admin/api/{family}/{id}", s.handleResourceItem)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "ok",
			"uptime_seconds": int(time.Since(s.started).Seconds()),
		})
	})

	return mux
}

// setUIHeaders stamps the command-outcome contract on a response.
// Must run before the first body write.
func setUIHeaders(w http.ResponseWriter, ok bool, correlationID string) {
	eventType := EventCommandReceived
	if !ok {
		eventType = EventCommandFailed
	}
	w.Header().Set("X-UI-Ok", strconv.FormatBool(ok))
	w.Header().Set("X-UI-Correlation-Id", correlationID)
	w.Header().Set("X-UI-Timestamp", timeline.NowISO())
	w.Header().Set("X-UI-Event-Type", eventType)
}

// publish exports one UI event when an event bus is configured.
func (s *consoleServer) publish(eventType, correlationID, detail string) {
	s.publisher.Publish(context.Background(), events.UIEvent{
		Type:          eventType,
		CorrelationID: correlationID,
		Detail:        detail,
		Timestamp:     timeline.NowISO(),
	})
}

func (s *consoleServer) handlePage(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := web.PageData{
			Title:       title,
			Path:        r.URL.Path,
			ShowContext: true,
		}
		switch name {
		case "admin":
			data.Data = map[string]any{"Families": alphonse.ResourceFamilies}
		case "integrations":
			data.Data = map[string]any{"BaseURL": s.client.BaseURL()}
		}
		s.renderPage(w, name, data)
	}
}

func (s *consoleServer) handleChatPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, "chat", web.PageData{
		Title:       "Signals",
		Path:        "/chat",
		ShowContext: true,
		Data: map[string]any{
			"Presence": s.client.PresenceSnapshot(r.Context()),
			"Entries":  s.store.Snapshot(),
		},
	})
}

func (s *consoleServer) handleDelegatesPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, "delegates", web.PageData{
		Title:       "Delegates",
		Path:        "/delegates",
		ShowContext: true,
		Data: map[string]any{
			"Delegates": s.registry.List(r.Context()),
		},
	})
}

func (s *consoleServer) renderPage(w http.ResponseWriter, name string, data web.PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Page(w, name, data); err != nil {
		log.Error().Err(err).Str("page", name).Msg("render failed")
	}
}

// handleChatMessage appends the user entry plus the assistant
// placeholder, then hands the dispatch to the relay pool. The request
// never waits on the upstream: local degradation (a saturated relay
// queue) is the only failure this handler can observe, and it still
// answers 200 with the failure recorded in the headers and a system
// entry in the timeline.
func (s *consoleServer) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	message := strings.TrimSpace(r.FormValue("message"))
	correlationID := timeline.EnsureCorrelationID(r.FormValue("correlation_id"))
	if message == "" {
		setUIHeaders(w, false, correlationID)
		s.publish(EventCommandFailed, correlationID, "blank message")
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	s.store.Append(timeline.Message(timeline.RoleUser, message, correlationID))
	s.store.Append(timeline.Message(timeline.RoleAssistant, timeline.PlaceholderContent, correlationID))

	accepted := s.resolver.Submit(relay.Job{
		Text:          message,
		CorrelationID: correlationID,
	})
	if !accepted {
		s.store.Append(timeline.Message(timeline.RoleSystem,
			"Dispatch queue is saturated; the message was recorded but not relayed.", correlationID))
		setUIHeaders(w, false, correlationID)
		s.publish(EventCommandFailed, correlationID, "relay queue full")
	} else {
		setUIHeaders(w, true, correlationID)
		s.publish(EventCommandReceived, correlationID, "chat message")
	}
	s.renderFragment(w, "chat_timeline", s.store.Snapshot())
}

func (s *consoleServer) handleChatTimeline(w http.ResponseWriter, r *http.Request) {
	correlationID := timeline.EnsureCorrelationID(r.URL.Query().Get("correlation_id"))
	setUIHeaders(w, true, correlationID)
	s.renderFragment(w, "chat_timeline", s.store.Snapshot())
}

func (s *consoleServer) handlePresenceFragment(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	s.renderFragment(w, "presence", s.client.PresenceSnapshot(r.Context()))
}

func (s *consoleServer) renderFragment(w http.ResponseWriter, name string, data any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	if err := s.renderer.Fragment(w, name, data); err != nil {
		log.Error().Err(err).Str("fragment", name).Msg("render failed")
	}
}

// handleChatVoice accepts a multipart recording and relays it
// asynchronously, mirroring the text path. Identifiers for the local
// record are minted here so the caller gets them before the upstream
// answers.
func (s *consoleServer) handleChatVoice(w http.ResponseWriter, r *http.Request) {
	correlationID := timeline.EnsureCorrelationID(r.FormValue("correlation_id"))

	file, header, err := r.FormFile("audio")
	if err != nil {
		setUIHeaders(w, false, correlationID)
		s.publish(EventCommandFailed, correlationID, "missing audio")
		http.Error(w, "audio file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()
	audio, err := io.ReadAll(file)
	if err != nil || len(audio) == 0 {
		setUIHeaders(w, false, correlationID)
		s.publish(EventCommandFailed, correlationID, "empty audio")
		http.Error(w, "audio file is required", http.StatusBadRequest)
		return
	}

	audioMode := "none"
	if strings.TrimSpace(r.FormValue("audio_mode")) == "local_audio" {
		audioMode = "local_audio"
	}

	s.store.Append(timeline.Message(timeline.RoleUser, "[voice message]", correlationID))
	s.store.Append(timeline.Message(timeline.RoleAssistant, timeline.PlaceholderContent, correlationID))

	accepted := s.resolver.Submit(relay.Job{
		CorrelationID: correlationID,
		Filename:      header.Filename,
		Audio:         audio,
		AudioMode:     audioMode,
	})
	status := alphonse.StatusAccepted
	eventType := EventCommandReceived
	if !accepted {
		status = alphonse.StatusUnavailable
		eventType = EventCommandFailed
	}
	setUIHeaders(w, accepted, correlationID)
	s.publish(eventType, correlationID, "voice message")
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             accepted,
		"status":         status,
		"correlation_id": correlationID,
		"message_id":     uuid.NewString(),
		"asset_id":       uuid.NewString(),
		"provider":       "alphonse",
		"channel":        "webui",
		"audio_mode":     audioMode,
	})
}

// handleDelegateAssign relays an assignment synchronously. An
// unreachable upstream is not an error from the UI's point of view:
// the assignment is recorded locally as queued.
func (s *consoleServer) handleDelegateAssign(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	correlationID := timeline.EnsureCorrelationID(r.FormValue("correlation_id"))
	command := strings.TrimSpace(r.FormValue("command"))
	if command == "" {
		setUIHeaders(w, false, correlationID)
		s.publish(EventCommandFailed, correlationID, "blank command")
		http.Error(w, "command is required", http.StatusBadRequest)
		return
	}

	delegate, ok := s.registry.Get(r.Context(), id)
	if !ok {
		setUIHeaders(w, false, correlationID)
		s.publish(EventCommandFailed, correlationID, "unknown delegate "+id)
		http.Error(w, "unknown delegate", http.StatusNotFound)
		return
	}

	capability := strings.TrimSpace(r.FormValue("capability"))
	if capability == "" && len(delegate.Capabilities) > 0 {
		capability = delegate.Capabilities[0]
	}

	result := s.client.AssignDelegate(r.Context(), delegate.ID, capability, command, correlationID)
	status := timeline.DelegationQueuedLocal
	if result.OK {
		status = timeline.DelegationAssigned
	}
	s.store.Append(timeline.Delegation(delegate.ID, delegate.Name, capability, command, status, correlationID))

	setUIHeaders(w, true, correlationID)
	s.publish(EventCommandReceived, correlationID, "delegation "+delegate.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"status":         status,
		"delegate_id":    delegate.ID,
		"capability":     capability,
		"correlation_id": correlationID,
	})
}

// handleResourceCollection serves list and create for one CRUD family.
func (s *consoleServer) handleResourceCollection(w http.ResponseWriter, r *http.Request) {
	family := r.PathValue("family")
	if !alphonse.KnownFamily(family) {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown family"})
		return
	}
	res := s.client.Resource(family)
	switch r.Method {
	case http.MethodGet:
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, _ = strconv.Atoi(raw)
		}
		filters := map[string]string{}
		for key, vals := range r.URL.Query() {
			if key == "limit" || len(vals) == 0 {
				continue
			}
			filters[key] = vals[0]
		}
		out := res.List(r.Context(), filters, limit)
		writeJSON(w, resourceStatus(out.OK, http.StatusOK), out)
	case http.MethodPost:
		fields, err := decodeBody(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid json body"})
			return
		}
		out := res.Create(r.Context(), fields)
		writeJSON(w, resourceStatus(out.OK, http.StatusCreated), out)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleResourceItem serves get, update and delete for one record.
func (s *consoleServer) handleResourceItem(w http.ResponseWriter, r *http.Request) {
	family := r.PathValue("family")
	id := r.PathValue("id")
	if !alphonse.KnownFamily(family) {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "unknown family"})
		return
	}
	res := s.client.Resource(family)
	switch r.Method {
	case http.MethodGet:
		out := res.Get(r.Context(), id)
		writeJSON(w, resourceStatus(out.OK, http.StatusOK), out)
	case http.MethodPatch, http.MethodPut:
		fields, err := decodeBody(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid json body"})
			return
		}
		out := res.Update(r.Context(), id, fields)
		writeJSON(w, resourceStatus(out.OK, http.StatusOK), out)
	case http.MethodDelete:
		out := res.Delete(r.Context(), id)
		writeJSON(w, resourceStatus(out.OK, http.StatusOK), out)
	default:
		w.Header().Set("Allow", "GET, PATCH, PUT, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// resourceStatus maps a degraded pass-through result to 502 so the UI
// can distinguish "upstream gave nothing usable" from a local error.
func resourceStatus(ok bool, success int) int {
	if ok {
		return success
	}
	return http.StatusBadGateway
}

func decodeBody(r *http.Request) (map[string]any, error) {
	defer r.Body.Close()
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
