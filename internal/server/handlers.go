package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/reel/internal/feed"
	"github.com/desertthunder/reel/internal/formatter"
	"github.com/desertthunder/reel/internal/metrics"
	"github.com/desertthunder/reel/internal/models"
	"github.com/desertthunder/reel/internal/shared"
)

const healthTimeout = 2 * time.Second

// Controller is the part of the feed controller the API drives. [*feed.Controller] satisfies it.
type Controller interface {
	Snapshot(ctx context.Context) (feed.Snapshot, error)
	Scrolled(offset float64)
	ScrollStateChanged(s models.ScrollState)
	SettleAt(position int)
	Interact(ctx context.Context, kind models.InteractionKind, position int) error
	Retry(position int)
	ResetDegraded()
	SetVisible(visible bool)
	Background()
	Flush(ctx context.Context) error
}

// ScrollRequest reports a scroll state change, optionally preceded by an offset.
type ScrollRequest struct {
	State  string   `json:"state"`
	Offset *float64 `json:"offset,omitempty"`
}

// PositionRequest names a feed position.
type PositionRequest struct {
	Position int `json:"position"`
}

// InteractRequest forwards an interaction on a position.
type InteractRequest struct {
	Kind     models.InteractionKind `json:"kind"`
	Position int                    `json:"position"`
}

// VisibilityRequest reports the host's visibility: "visible", "hidden" or
// "background". Backgrounding also releases every decoder.
type VisibilityRequest struct {
	State string `json:"state"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// FeedHandler serves the control API for one controller.
type FeedHandler struct {
	ctrl    Controller
	metrics http.Handler
	mux     *http.ServeMux
	logger  *log.Logger
}

// NewFeedHandler creates a FeedHandler for ctrl.
func NewFeedHandler(ctrl Controller, logger *log.Logger) *FeedHandler {
	h := &FeedHandler{
		ctrl:    ctrl,
		metrics: metrics.Handler(),
		mux:     http.NewServeMux(),
		logger:  shared.WithLogger(logger, "component", "api"),
	}
	h.mux.HandleFunc("GET /healthz", h.health)
	h.mux.Handle("GET /metrics", h.metrics)
	h.mux.HandleFunc("GET /state", h.state)
	h.mux.HandleFunc("POST /scroll", h.scroll)
	h.mux.HandleFunc("POST /settle", h.settle)
	h.mux.HandleFunc("POST /interact", h.interact)
	h.mux.HandleFunc("POST /retry", h.retry)
	h.mux.HandleFunc("POST /reset", h.reset)
	h.mux.HandleFunc("POST /visibility", h.visibility)
	return h
}

// Routes implements [Handler].
func (h *FeedHandler) Routes() []string {
	return []string{
		"GET /healthz",
		"GET /metrics",
		"GET /state",
		"POST /scroll",
		"POST /settle",
		"POST /interact",
		"POST /retry",
		"POST /reset",
		"POST /visibility",
	}
}

func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// NewRouter builds the control API router with logging and panic recovery.
func NewRouter(ctrl Controller, logger *log.Logger) *BasicRouter {
	httpLogger := shared.WithLogger(logger, "component", "http")
	router := NewBasicRouter()
	router.Use(Recover(httpLogger), Logging(httpLogger))
	router.Handler(NewFeedHandler(ctrl, logger))
	return router
}

func (h *FeedHandler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.ctrl.Flush(ctx); err != nil {
		h.logger.Warn("health check failed", "err", err)
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("control loop unresponsive: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *FeedHandler) state(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ctrl.Snapshot(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" || format == formatter.FormatJSON {
		writeJSON(w, http.StatusOK, snap)
		return
	}

	data, err := formatter.Render(snap, format)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	contentType := "text/plain; charset=utf-8"
	if format == formatter.FormatMarkdown || format == "md" {
		contentType = "text/markdown; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *FeedHandler) scroll(w http.ResponseWriter, r *http.Request) {
	var req ScrollRequest
	if !decode(w, r, &req) {
		return
	}
	state, ok := models.ParseScrollState(req.State)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: unknown scroll state %q", shared.ErrInvalidArgument, req.State))
		return
	}

	if req.Offset != nil {
		h.ctrl.Scrolled(*req.Offset)
	}
	h.ctrl.ScrollStateChanged(state)
	h.respondWithState(w, r)
}

func (h *FeedHandler) settle(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Position < 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: position %d", shared.ErrInvalidPosition, req.Position))
		return
	}

	h.ctrl.SettleAt(req.Position)
	h.respondWithState(w, r)
}

func (h *FeedHandler) interact(w http.ResponseWriter, r *http.Request) {
	var req InteractRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.ctrl.Interact(r.Context(), req.Kind, req.Position); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FeedHandler) retry(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if !decode(w, r, &req) {
		return
	}
	h.ctrl.Retry(req.Position)
	h.respondWithState(w, r)
}

func (h *FeedHandler) reset(w http.ResponseWriter, r *http.Request) {
	h.ctrl.ResetDegraded()
	h.respondWithState(w, r)
}

func (h *FeedHandler) visibility(w http.ResponseWriter, r *http.Request) {
	var req VisibilityRequest
	if !decode(w, r, &req) {
		return
	}
	switch req.State {
	case "visible":
		h.ctrl.SetVisible(true)
	case "hidden":
		h.ctrl.SetVisible(false)
	case "background":
		h.ctrl.Background()
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: unknown visibility %q", shared.ErrInvalidArgument, req.State))
		return
	}
	h.respondWithState(w, r)
}

// respondWithState waits for queued work and replies with the resulting snapshot.
func (h *FeedHandler) respondWithState(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Flush(r.Context()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	snap, err := h.ctrl.Snapshot(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidArgument),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidPosition):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrLoopClosed),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Detail: err.Error()})
}
