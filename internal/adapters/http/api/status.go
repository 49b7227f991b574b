package api

import (
	"context"
	"net/http"

	"github.com/okian/proctor/internal/domain/types"
)

// StatusProvider aggregates stored events.
type StatusProvider interface {
	Status(ctx context.Context) types.Status
}

// StatusHandler handles GET /status.
type StatusHandler struct {
	provider StatusProvider
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(p StatusProvider) *StatusHandler {
	return &StatusHandler{provider: p}
}

// HandleStatus handles GET /status requests.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "api.status", http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, h.provider.Status(r.Context()))
}
