package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/fuelrecon/internal/domain"
	"github.com/opensource-finance/fuelrecon/internal/extract"
	"github.com/opensource-finance/fuelrecon/internal/imports"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	service   *imports.Service
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	maxUpload int64
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(service *imports.Service, repo domain.Repository, cache domain.Cache, bus domain.EventBus, maxUploadMB int, version string) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &Handler{
		service:   service,
		repo:      repo,
		cache:     cache,
		bus:       bus,
		maxUpload: int64(maxUploadMB) << 20,
		version:   version,
	}
}

// Health reports component status. It always answers 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"
	components := map[string]string{}

	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			components[name] = "down"
			status = "degraded"
			slog.Warn("health check failed", "component", name, "error", err)
			return
		}
		components[name] = "up"
	}
	if h.repo != nil {
		check("repository", func() error { return h.repo.Ping(ctx) })
	}
	if h.cache != nil {
		check("cache", func() error { return h.cache.Ping(ctx) })
	}
	if h.bus != nil {
		check("eventBus", func() error { return h.bus.Ping(ctx) })
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"version":    h.version,
		"components": components,
	})
}

// Ready answers 503 until the repository is reachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil || h.repo.Ping(r.Context()) != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// TemplateRequest is the request body for POST /templates.
// Config is validated against the template JSON schema.
type TemplateRequest struct {
	ID                   string                     `json:"id,omitempty"`
	Name                 string                     `json:"name"`
	SupplierVAT          string                     `json:"supplierVat,omitempty"`
	Config               json.RawMessage            `json:"config"`
	Tolerances           *domain.MatchingTolerances `json:"tolerances,omitempty"`
	RequireManualConfirm bool                       `json:"requireManualConfirm"`
	Enabled              *bool                      `json:"enabled,omitempty"`
}

// CreateTemplate handles POST /templates.
func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req TemplateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxUpload)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Config) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "config is required",
		})
		return
	}

	cfg, err := extract.ParseTemplateConfig(req.Config)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tpl := &domain.Template{
		ID:                   req.ID,
		Name:                 req.Name,
		SupplierVAT:          req.SupplierVAT,
		Config:               cfg,
		RequireManualConfirm: req.RequireManualConfirm,
		Enabled:              req.Enabled == nil || *req.Enabled,
	}
	if req.Tolerances != nil {
		tpl.Tolerances = *req.Tolerances
	}

	if err := h.service.SaveTemplate(ctx, tenantID, tpl); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

// ListTemplates handles GET /templates.
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.ListTemplates(r.Context(), GetTenantID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if templates == nil {
		templates = []*domain.Template{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"templates": templates,
		"count":     len(templates),
	})
}

// GetTemplate handles GET /templates/{id}.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, err := h.service.GetTemplate(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

// DetectTemplate handles POST /templates/detect. The body is the raw XML
// document; nothing is stored.
func (h *Handler) DetectTemplate(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.readDocument(w, r)
	if !ok {
		return
	}

	detection, tpl, err := imports.DetectTemplate(doc)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "document layout not recognised",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"detection": detection,
		"template":  tpl,
	})
}

// Extract handles POST /extract?templateId=. It previews extraction of the
// raw XML body without persisting anything.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	templateID := r.URL.Query().Get("templateId")
	if templateID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "templateId query parameter is required",
		})
		return
	}

	doc, ok := h.readDocument(w, r)
	if !ok {
		return
	}

	result, err := h.service.Preview(ctx, GetTenantID(ctx), templateID, doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// readDocument reads the raw request body up to the upload limit.
func (h *Handler) readDocument(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	doc, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": "document exceeds the upload limit",
			})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "failed to read request body",
		})
		return nil, false
	}
	if len(doc) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "request body must contain the XML document",
		})
		return nil, false
	}
	return doc, true
}

// writeError maps service errors onto HTTP status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, imports.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, imports.ErrDocumentMismatch):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"path", r.URL.Path,
			"tenant_id", GetTenantID(r.Context()),
			"trace_id", GetTraceID(r.Context()),
			"error", err,
		)
		writeJSON(w, status, map[string]string{
			"error":   "internal server error",
			"traceId": GetTraceID(r.Context()),
		})
		return
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
