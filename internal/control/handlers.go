package control

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/telhawk-systems/logflow/internal/model"
)

// Handlers implements the HTTP control API surface: source CRUD, reload,
// and metrics exposition, mirroring the ingest HEC handler's JSON response
// discipline.
type Handlers struct {
	plane *Plane
}

// NewHandlers wraps a Plane for HTTP dispatch.
func NewHandlers(plane *Plane) *Handlers {
	return &Handlers{plane: plane}
}

type apiError struct {
	Error string `json:"error"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, apiError{Error: err.Error()})
}

// Healthz always reports healthy once the process is serving requests.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Readyz reports readiness alongside the current source count.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ready",
		"sources": len(h.plane.Sources()),
	})
}

// ListSources handles GET /sources.
func (h *Handlers) ListSources(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.plane.Sources())
}

// CreateSource handles POST /sources: body is a model.Source.
func (h *Handlers) CreateSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	var src model.Source
	if err := json.NewDecoder(r.Body).Decode(&src); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	if err := h.plane.AddSource(&src); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, src)
}

// UpdateSource handles PUT /sources: body is a full replacement model.Source.
func (h *Handlers) UpdateSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		h.writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	var src model.Source
	if err := json.NewDecoder(r.Body).Decode(&src); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.plane.UpdateSource(&src); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeJSON(w, http.StatusOK, src)
}

// DeleteSource handles DELETE /sources?id=<source_id>.
func (h *Handlers) DeleteSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		h.writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, errMissingSourceID)
		return
	}
	if err := h.plane.DeleteSource(id); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reload handles POST /reload: forces an immediate reconciliation pass.
func (h *Handlers) Reload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	if err := h.plane.Reload(); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// SourceMetrics handles GET /sources/metrics: the metrics() control API
// operation (§4.6).
func (h *Handlers) SourceMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	h.writeJSON(w, http.StatusOK, h.plane.Metrics(ctx))
}
