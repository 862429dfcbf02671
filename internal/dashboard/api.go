// Package dashboard serves the dashboard view model as a JSON API and streams
// changes to browsers over a WebSocket.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/jaakkos/titandash/internal/bridge"
	"github.com/jaakkos/titandash/internal/domain"
	"github.com/jaakkos/titandash/internal/panel"
	"github.com/jaakkos/titandash/internal/session"
)

const defaultAlertLimit = 50

// Controller is the part of the session the HTTP surface drives.
type Controller interface {
	Snapshot() (session.Snapshot, error)
	Select(ctx context.Context, pk domain.PK) error
	Signal(ctx context.Context, action domain.Action) error
	Kill(ctx context.Context) error
	QueueFunction(ctx context.Context, function string, duration int, durationType string) error
	FlushQueue(ctx context.Context) error
	AddInstance(ctx context.Context) (domain.Instance, error)
	RemoveInstance(ctx context.Context, pk domain.PK) error
	RenameInstance(ctx context.Context, pk domain.PK, name string) error
	ChooseSettings(c panel.Choice) error
	DismissToast(id int64) bool
	Queueables(term string) ([]panel.QueueableOption, error)
}

var _ Controller = (*session.Session)(nil)

// AlertHistory reads saved toasts, newest first.
type AlertHistory interface {
	RecentAlerts(ctx context.Context, limit int) ([]domain.Alert, error)
}

// StateResponse is the JSON response from /api/state.
type StateResponse struct {
	Timestamp string `json:"timestamp"`
	session.Snapshot
}

// Handler holds dependencies for dashboard HTTP handlers.
type Handler struct {
	ctl     Controller
	alerts  AlertHistory // optional; nil when no history is kept
	hub     *Hub         // optional; nil disables /ws
	push    func() bridge.PushStatus
	logger  *log.Logger
	started time.Time
}

// NewHandler creates a dashboard handler.
func NewHandler(ctl Controller, logger *log.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{ctl: ctl, logger: logger, started: time.Now()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandlerOption configures optional dependencies for the dashboard handler.
type HandlerOption func(*Handler)

// WithAlertHistory serves /api/alerts from a.
func WithAlertHistory(a AlertHistory) HandlerOption {
	return func(h *Handler) { h.alerts = a }
}

// WithHub serves the change stream at /ws.
func WithHub(hub *Hub) HandlerOption {
	return func(h *Handler) { h.hub = hub }
}

// WithPushStatus reports the push connection in /health.
func WithPushStatus(fn func() bridge.PushStatus) HandlerOption {
	return func(h *Handler) { h.push = fn }
}

// RegisterRoutes adds dashboard routes to the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/state", h.handleAPIState)
	mux.HandleFunc("/api/select", h.handleAPISelect)
	mux.HandleFunc("/api/actions/{action}", h.handleAPIAction)
	mux.HandleFunc("/api/queue", h.handleAPIQueue)
	mux.HandleFunc("/api/queue/flush", h.handleAPIFlush)
	mux.HandleFunc("/api/queueables", h.handleAPIQueueables)
	mux.HandleFunc("/api/instances", h.handleAPIInstances)
	mux.HandleFunc("/api/instances/rename", h.handleAPIRename)
	mux.HandleFunc("/api/settings", h.handleAPISettings)
	mux.HandleFunc("/api/toasts/dismiss", h.handleAPIDismiss)
	mux.HandleFunc("/api/alerts", h.handleAPIAlerts)
	mux.HandleFunc("/health", h.handleHealth)
	if h.hub != nil {
		mux.Handle("/ws", h.hub)
	}
}

// preflight writes the common headers and answers CORS preflight requests. It
// reports false when the request has been fully handled.
func preflight(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	allow := "OPTIONS"
	for _, m := range methods {
		allow = m + ", " + allow
	}
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", allow)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, errors.New(methods[0]+" required"))
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusFor maps a command error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, panel.ErrUnknownInstance):
		return http.StatusNotFound
	case errors.Is(err, session.ErrActionUnavailable),
		errors.Is(err, session.ErrInstanceStopped),
		errors.Is(err, session.ErrQueueEmpty),
		errors.Is(err, panel.ErrLastInstance),
		errors.Is(err, panel.ErrSelectedInstance),
		errors.Is(err, panel.ErrSettingsLocked):
		return http.StatusConflict
	case errors.Is(err, panel.ErrUnknownOption),
		errors.Is(err, session.ErrInvalidDuration),
		errors.Is(err, session.ErrEmptyName):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, bridge.ErrToolFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Printf("dashboard: %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, err)
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func (h *Handler) handleAPIState(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodGet) {
		return
	}
	w.Header().Set("Cache-Control", "no-cache")

	snap, err := h.ctl.Snapshot()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{
		Timestamp: time.Now().Format(time.RFC3339),
		Snapshot:  snap,
	})
}

func (h *Handler) handleAPISelect(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodPost) {
		return
	}
	body := struct {
		PK domain.PK `json:"pk"`
	}{PK: domain.PK(r.URL.Query().Get("pk"))}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.PK == "" {
		writeError(w, http.StatusBadRequest, errors.New("pk parameter is required"))
		return
	}
	if err := h.ctl.Select(r.Context(), body.PK); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "active_instance": body.PK})
}

func (h *Handler) handleAPIAction(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodPost) {
		return
	}
	name := r.PathValue("action")
	if name == "kill" {
		if err := h.ctl.Kill(r.Context()); err != nil {
			h.fail(w, r, err)
			return
		}
		writeOK(w)
		return
	}
	action, err := domain.ParseAction(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err := h.ctl.Signal(r.Context(), action); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleAPIQueue(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodPost) {
		return
	}
	var body struct {
		Function     string `json:"function"`
		Duration     int    `json:"duration"`
		DurationType string `json:"duration_type"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Function == "" {
		writeError(w, http.StatusBadRequest, errors.New("function is required"))
		return
	}
	if err := h.ctl.QueueFunction(r.Context(), body.Function, body.Duration, body.DurationType); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleAPIFlush(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodPost) {
		return
	}
	if err := h.ctl.FlushQueue(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleAPIQueueables(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodGet) {
		return
	}
	opts, err := h.ctl.Queueables(r.URL.Query().Get("term"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if opts == nil {
		opts = []panel.QueueableOption{}
	}
	writeJSON(w, http.StatusOK, opts)
}

func (h *Handler) handleAPIInstances(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodPost, http.MethodDelete) {
		return
	}
	if r.Method == http.MethodPost {
		inst, err := h.ctl.AddInstance(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, inst)
		return
	}

	pk := domain.PK(r.URL.Query().Get("pk"))
	if pk == "" {
		writeError(w, http.StatusBadRequest, errors.New("pk parameter is required"))
		return
	}
	if err := h.ctl.RemoveInstance(r.Context(), pk); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleAPIRename(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodPost) {
		return
	}
	var body struct {
		PK   domain.PK `json:"pk"`
		Name string    `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.PK == "" {
		writeError(w, http.StatusBadRequest, errors.New("pk is required"))
		return
	}
	if err := h.ctl.RenameInstance(r.Context(), body.PK, body.Name); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleAPISettings(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodPost) {
		return
	}
	var choice panel.Choice
	if err := decodeBody(r, &choice); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.ctl.ChooseSettings(choice); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (h *Handler) handleAPIDismiss(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodPost) {
		return
	}
	var body struct {
		ID int64 `json:"id"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !h.ctl.DismissToast(body.ID) {
		writeError(w, http.StatusNotFound, errors.New("toast "+strconv.FormatInt(body.ID, 10)+" is not active"))
		return
	}
	writeOK(w)
}

func (h *Handler) handleAPIAlerts(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodGet) {
		return
	}
	if h.alerts == nil {
		writeError(w, http.StatusNotFound, errors.New("alert history is not enabled"))
		return
	}
	limit := defaultAlertLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	alerts, err := h.alerts.RecentAlerts(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodGet) {
		return
	}
	resp := map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
	}
	if h.hub != nil {
		resp["ws_clients"] = h.hub.ClientCount()
	}
	if h.push != nil {
		resp["push"] = h.push()
	}
	writeJSON(w, http.StatusOK, resp)
}
