package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	service "github.com/okian/proctor/internal/app"
	"github.com/okian/proctor/internal/domain/model"
	"github.com/okian/proctor/internal/domain/types"
)

const maxBodyBytes = 64 << 10

// eventRequest mirrors the OpenAPI schema for POST /events. session_id and
// message must be present but may be empty.
type eventRequest struct {
	SessionID *string `json:"session_id"`
	Kind      string  `json:"kind"`
	Severity  string  `json:"severity"`
	Message   *string `json:"message"`
	TS        string  `json:"ts"`
}

func (e eventRequest) validate() (types.EventInput, error) {
	var in types.EventInput
	switch {
	case e.SessionID == nil:
		return in, errors.New("missing session_id")
	case e.Message == nil:
		return in, errors.New("missing message")
	}
	in.SessionID = *e.SessionID
	in.Message = *e.Message

	in.Kind = model.Kind(e.Kind)
	if !in.Kind.Valid() {
		return in, fmt.Errorf("invalid kind %q; must be video, audio or system", e.Kind)
	}
	in.Severity = model.SeverityInfo
	if e.Severity != "" {
		in.Severity = model.Severity(e.Severity)
		if !in.Severity.Valid() {
			return in, fmt.Errorf("invalid severity %q; must be info, warn or error", e.Severity)
		}
	}
	if e.TS != "" {
		ts, err := time.Parse(time.RFC3339Nano, e.TS)
		if err != nil {
			return in, errors.New("invalid ts; must be RFC3339")
		}
		in.TS = ts
	}
	return in, nil
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps         Dependencies
	defaultLimit int
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps, defaultLimit: service.DefaultListLimit}
}

// HandleEvents dispatches /events by method.
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.HandlePostEvent(w, r)
	case http.MethodGet:
		h.HandleListEvents(w, r)
	default:
		methodNotAllowed(w, "api.events", http.MethodGet, http.MethodPost)
	}
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var req eventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	in, err := req.validate()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", WrapKind(op, ErrValidation, err))
		return
	}

	rec, err := h.deps.Record(r.Context(), in)
	switch {
	case errors.Is(err, service.ErrInvalidEvent):
		writeError(w, http.StatusUnprocessableEntity, "validation_error", WrapKind(op, ErrValidation, err))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleListEvents handles GET /events?limit=N requests.
func (h *EventsHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_events"
	limit := h.defaultLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "validation_error", WrapKind(op, ErrValidation, errors.New("limit must be an integer")))
			return
		}
		limit = n
	}

	events, err := h.deps.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
		return
	}
	if events == nil {
		events = []types.StoredEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
