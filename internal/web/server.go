// Package web serves the JSON API used by the dashboard.
package web

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/verte-zerg/bibleclock/internal/clock"
	"github.com/verte-zerg/bibleclock/internal/model"
	"github.com/verte-zerg/bibleclock/internal/settings"
)

// Version is reported by /health.
var Version = "dev"

const (
	maxBodyBytes  = 1 << 16
	maxActivities = 50
)

// Controller applies settings transitions.
type Controller interface {
	Settings() model.Settings
	SetMode(ctx context.Context, m model.DisplayMode) (model.Settings, error)
	SetParallel(ctx context.Context, enabled bool) (model.Settings, error)
	Apply(ctx context.Context, p settings.Patch, updateDisplay bool) (model.Settings, error)
	SetWakeWord(ctx context.Context, enabled bool) (model.Settings, error)
	SetDevotionalInterval(ctx context.Context, minutes int) (model.Settings, error)
	ForceRefresh(reason string)
}

// StatusSource builds status snapshots.
type StatusSource interface {
	Snapshot(ctx context.Context) model.StatusView
}

// ActivitySource lists and records recent activity.
type ActivitySource interface {
	Activities(limit int) []model.Activity
	Track(action, details string) model.Activity
}

// Display is the render loop as seen by the API.
type Display interface {
	ClearGhosting(ctx context.Context) error
	CurrentVerse() (model.Verse, time.Time, error)
}

// Voice is the voice collaborator.
type Voice interface {
	Status(ctx context.Context) (model.VoiceState, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Cache is the verse lookup cache.
type Cache interface {
	ClearVerseCache(ctx context.Context) (int64, error)
}

// Config wires a Server. Everything except Controller and Status is
// optional; the matching endpoints answer 503 when their collaborator is
// missing.
type Config struct {
	Controller Controller
	Status     StatusSource
	Activity   ActivitySource
	Display    Display
	Voice      Voice
	Cache      Cache
	// Restart is called after /api/restart has answered.
	Restart func()
	Now     func() time.Time
}

// Server is the dashboard API server.
type Server struct {
	cfg      Config
	listener net.Listener
	server   *http.Server
}

// NewServer creates a server bound to addr.
func NewServer(addr string, cfg Config) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("web: binding listener: %w", err)
	}
	s := newServer(cfg)
	s.listener = ln
	return s, nil
}

func newServer(cfg Config) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Server{cfg: cfg}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("POST /api/settings", s.handleUpdateSettings)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/statistics", s.handleStatistics)
	mux.HandleFunc("GET /api/verse", s.handleVerse)
	mux.HandleFunc("GET /api/activities", s.handleActivities)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/clear-ghosting", s.handleClearGhosting)
	mux.HandleFunc("GET /api/voice/status", s.handleVoiceStatus)
	mux.HandleFunc("POST /api/voice/wake-word", s.handleWakeWord)
	mux.HandleFunc("POST /api/voice/listen", s.handleVoiceListen)
	mux.HandleFunc("POST /api/voice/stop", s.handleVoiceStop)
	mux.HandleFunc("POST /api/devotional/interval", s.handleDevotionalInterval)
	mux.HandleFunc("POST /api/restart", s.handleRestart)
	mux.HandleFunc("POST /api/clear-cache", s.handleClearCache)
	return mux
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve answers requests until Shutdown. A shutdown is not reported as an error.
func (s *Server) Serve() error {
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.cfg.Now(),
		"version":   Version,
	})
}

type translationOption struct {
	Code model.Translation `json:"code"`
	Name string            `json:"name"`
}

type settingsView struct {
	model.Settings
	AvailableTranslations []translationOption `json:"available_translations"`
	AvailableIntervals    []int               `json:"available_intervals"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeData(w, s.settingsView(s.cfg.Controller.Settings()))
}

func (s *Server) settingsView(st model.Settings) settingsView {
	view := settingsView{Settings: st, AvailableIntervals: model.DevotionalIntervals}
	for _, t := range model.Translations {
		view.AvailableTranslations = append(view.AvailableTranslations, translationOption{Code: t, Name: t.DisplayName()})
	}
	return view
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	patch, err := settings.DecodePatch(body)
	if err != nil {
		writeError(w, err)
		return
	}
	updateDisplay, err := optionalBool(body, "update_display")
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := s.applySettings(r.Context(), patch, updateDisplay)
	if err != nil {
		writeError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, envelope{Success: true, Data: s.settingsView(st), Message: "Settings updated successfully"})
}

// applySettings routes a lone mode or overlay change through the mode state
// machine, which always redraws. Mixed updates are applied as given.
func (s *Server) applySettings(ctx context.Context, p settings.Patch, updateDisplay bool) (model.Settings, error) {
	fields := p.Fields()
	if len(fields) == 1 {
		switch {
		case p.DisplayMode != nil:
			return s.cfg.Controller.SetMode(ctx, *p.DisplayMode)
		case p.ParallelMode != nil:
			return s.cfg.Controller.SetParallel(ctx, *p.ParallelMode)
		}
	}
	return s.cfg.Controller.Apply(ctx, p, updateDisplay)
}

type statusView struct {
	Timestamp            time.Time         `json:"timestamp"`
	Health               string            `json:"health"`
	HealthIssues         []string          `json:"health_issues,omitempty"`
	DisplayMode          model.DisplayMode `json:"display_mode"`
	ParallelMode         bool              `json:"parallel_mode"`
	Translation          model.Translation `json:"translation"`
	SecondaryTranslation model.Translation `json:"secondary_translation"`
	VersesToday          int               `json:"verses_today"`
	UptimeHours          float64           `json:"uptime_hours"`
	System               model.Telemetry   `json:"system"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	view := s.cfg.Status.Snapshot(r.Context())
	writeData(w, statusView{
		Timestamp:            view.Timestamp,
		Health:               view.Health,
		HealthIssues:         view.HealthIssues,
		DisplayMode:          view.DisplayMode,
		ParallelMode:         view.ParallelMode,
		Translation:          view.Translation,
		SecondaryTranslation: view.SecondaryTranslation,
		VersesToday:          view.VersesToday,
		UptimeHours:          view.UptimeHours,
		System:               view.Telemetry,
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	writeData(w, s.cfg.Status.Snapshot(r.Context()))
}

type verseView struct {
	model.Verse
	ShownAt time.Time `json:"shown_at"`
}

func (s *Server) handleVerse(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.Display == nil {
		writeError(w, fmt.Errorf("display: %w", model.ErrUnavailable))
		return
	}
	v, shownAt, err := s.cfg.Display.CurrentVerse()
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, verseView{Verse: v, ShownAt: shownAt})
}

func (s *Server) handleActivities(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.Activity == nil {
		writeData(w, []model.Activity{})
		return
	}
	writeData(w, s.cfg.Activity.Activities(maxActivities))
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	s.cfg.Controller.ForceRefresh("manual")
	s.track("Display refreshed", "Manual refresh requested")
	writeMessage(w, "Display refresh requested")
}

func (s *Server) handleClearGhosting(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Display == nil {
		writeError(w, fmt.Errorf("display: %w", model.ErrUnavailable))
		return
	}
	if err := s.cfg.Display.ClearGhosting(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	s.track("Ghosting cleared", "")
	writeMessage(w, "Display ghosting cleared")
}

// handleVoiceStatus reports an unreachable voice collaborator as unavailable
// instead of failing the request.
func (s *Server) handleVoiceStatus(w http.ResponseWriter, r *http.Request) {
	offline := model.VoiceState{WakeWordEnabled: s.cfg.Controller.Settings().WakeWordEnabled}
	if s.cfg.Voice == nil {
		writeData(w, offline)
		return
	}
	state, err := s.cfg.Voice.Status(r.Context())
	if err != nil {
		log.Printf("web: voice status: %v", err)
		writeData(w, offline)
		return
	}
	writeData(w, state)
}

func (s *Server) handleWakeWord(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	enabled, err := requiredBool(body, "enabled")
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := s.cfg.Controller.SetWakeWord(r.Context(), enabled)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, s.settingsView(st))
}

func (s *Server) handleVoiceListen(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Voice == nil {
		writeError(w, fmt.Errorf("voice: %w", model.ErrUnavailable))
		return
	}
	if err := s.cfg.Voice.Start(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	s.track("Voice listening started", "")
	writeMessage(w, "Voice listening started")
}

func (s *Server) handleVoiceStop(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Voice == nil {
		writeError(w, fmt.Errorf("voice: %w", model.ErrUnavailable))
		return
	}
	if err := s.cfg.Voice.Stop(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	s.track("Voice listening stopped", "")
	writeMessage(w, "Voice listening stopped")
}

func (s *Server) handleDevotionalInterval(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	minutes, err := requiredInt(body, "interval")
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := s.cfg.Controller.SetDevotionalInterval(r.Context(), minutes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, s.settingsView(st))
}

func (s *Server) handleRestart(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.Restart == nil {
		writeError(w, fmt.Errorf("restart: %w", model.ErrUnavailable))
		return
	}
	s.track("Restart requested", "")
	writeMessage(w, "Restarting")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	go s.cfg.Restart()
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Cache == nil {
		writeError(w, fmt.Errorf("cache: %w", model.ErrUnavailable))
		return
	}
	n, err := s.cfg.Cache.ClearVerseCache(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	s.track("Cache cleared", fmt.Sprintf("Removed %d cached verses", n))
	writeEnvelope(w, http.StatusOK, envelope{
		Success: true,
		Data:    map[string]int64{"cleared": n},
		Message: "Verse cache cleared",
	})
}

func (s *Server) track(action, details string) {
	if s.cfg.Activity == nil {
		return
	}
	s.cfg.Activity.Track(action, details)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verr *settings.ValidationError
	var perr *settings.PersistenceError
	switch {
	case errors.As(err, &verr), errors.Is(err, errMalformed):
		return http.StatusBadRequest
	case errors.As(err, &perr):
		return http.StatusInternalServerError
	case errors.Is(err, model.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, clock.ErrNothingShown):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("web: %v", err)
	}
	env := envelope{Error: err.Error()}
	var verr *settings.ValidationError
	if errors.As(err, &verr) {
		env.Code = string(verr.Code)
	}
	writeEnvelope(w, status, env)
}
