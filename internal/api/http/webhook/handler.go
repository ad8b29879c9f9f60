package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/oshokin/alarm-coordinator/internal/config"
	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
	"github.com/oshokin/alarm-coordinator/internal/logger"
	"github.com/oshokin/alarm-coordinator/internal/service/lifecycle"
)

// TokenHeader carries the shared webhook secret.
const TokenHeader = "X-Webhook-Token"

var (
	// errNotArray is returned for a body that is not a JSON array.
	errNotArray = errors.New("body must be a JSON array of events")
	// errTrailingData is returned when the array is followed by more input.
	errTrailingData = errors.New("unexpected data after the event array")
)

// Lifecycle is the part of the lifecycle service the webhook feeds.
type Lifecycle interface {
	OnRemoteEvent(ctx context.Context, event domain.RemoteEvent) (bool, error)
	Session(ctx context.Context) *domain.Session
}

// Event is one element of a pushed batch.
type Event struct {
	Meta struct {
		AlarmID string `json:"alarm_id"`
	} `json:"meta"`
	EventType string `json:"event_type"`
}

// Result is the body of a successful webhook response.
type Result struct {
	Received int `json:"received"`
	Applied  int `json:"applied"`
}

// Health is the body of the health endpoint.
type Health struct {
	Status  domain.Status `json:"status"`
	AlarmID string        `json:"alarm_id,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Handler ingests events pushed by the remote security service.
type Handler struct {
	lifecycle    Lifecycle
	id           string
	token        string
	maxBodyBytes int64
}

// New creates a webhook handler configured by cfg.
func New(lc Lifecycle, cfg *config.Webhook) *Handler {
	h := &Handler{
		lifecycle:    lc,
		id:           config.DefaultWebhookID,
		maxBodyBytes: config.DefaultWebhookMaxBodyBytes,
	}

	if cfg != nil {
		if cfg.ID != "" {
			h.id = cfg.ID
		}

		if cfg.MaxBodyBytes > 0 {
			h.maxBodyBytes = cfg.MaxBodyBytes
		}

		h.token = cfg.Token
	}

	return h
}

// Path returns the URL path the webhook is served on.
func (h *Handler) Path() string {
	return "/api/webhook/" + h.id
}

// Routes returns the HTTP routes of the webhook listener.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/webhook/{webhook_id}", h.handleWebhook)
	mux.HandleFunc("GET /healthz", h.handleHealth)

	return mux
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithKV(r.Context(), "request_id", requestID(r), "remote_addr", r.RemoteAddr)

	if r.PathValue("webhook_id") != h.id {
		writeError(ctx, w, http.StatusNotFound, "unknown webhook")

		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		w.Header().Set("Allow", "POST, PUT")
		writeError(ctx, w, http.StatusMethodNotAllowed, "method not allowed")

		return
	}

	if h.token != "" && r.Header.Get(TokenHeader) != h.token {
		logger.Warn(ctx, "Rejecting webhook with a missing or wrong token")
		writeError(ctx, w, http.StatusUnauthorized, "invalid webhook token")

		return
	}

	events, err := h.decode(w, r)
	if err != nil {
		logger.WarnKV(ctx, "Rejecting webhook body", "error", err)

		status := http.StatusBadRequest

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}

		writeError(ctx, w, status, err.Error())

		return
	}

	ctx = lifecycle.WithActor(ctx, &domain.Actor{Hostname: remoteHost(r), Username: "webhook"})

	result := Result{Received: len(events)}

	for _, event := range events {
		applied, err := h.lifecycle.OnRemoteEvent(ctx, domain.RemoteEvent{
			AlarmID:   event.Meta.AlarmID,
			EventType: event.EventType,
		})
		if err != nil {
			logger.ErrorKV(ctx, "Failed to apply remote event", "alarm_id", event.Meta.AlarmID, "error", err)
			writeError(ctx, w, http.StatusServiceUnavailable, err.Error())

			return
		}

		if applied {
			result.Applied++
		}
	}

	logger.InfoKV(ctx, "Webhook processed", "received", result.Received, "applied", result.Applied)

	writeJSON(ctx, w, http.StatusOK, result)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	session := h.lifecycle.Session(r.Context())

	writeJSON(r.Context(), w, http.StatusOK, Health{
		Status:  session.Status,
		AlarmID: session.AlarmID,
	})
}

// decode reads the event batch. Anything but a JSON array of events is a
// validation error.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request) ([]Event, error) {
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	defer func() {
		_ = body.Close()
	}()

	decoder := json.NewDecoder(body)

	var events []Event

	if err := decoder.Decode(&events); err != nil {
		return nil, fmt.Errorf("%w: decode events: %w", domain.ErrValidation, err)
	}

	// A null body leaves the slice nil; an empty array does not.
	if events == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, errNotArray)
	}

	// The array must be the whole body.
	if err := decoder.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrValidation, errTrailingData)
		}

		return nil, fmt.Errorf("%w: %w: %w", domain.ErrValidation, errTrailingData, err)
	}

	return events, nil
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.DebugKV(ctx, "Failed to write response", "error", err)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	writeJSON(ctx, w, status, errorBody{Error: msg})
}

func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}

	return uuid.NewString()
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
