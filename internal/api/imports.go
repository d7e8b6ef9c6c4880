package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/fuelrecon/internal/domain"
	"github.com/opensource-finance/fuelrecon/internal/imports"
)

// CreateImport handles POST /imports?templateId=&fileName=[&async=true].
// The body is the raw XML document. Synchronous requests are processed
// before responding; async requests are queued on the event bus.
func (h *Handler) CreateImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	q := r.URL.Query()
	async := q.Get("async") == "true"

	if async && h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "async processing requires an event bus",
		})
		return
	}

	doc, ok := h.readDocument(w, r)
	if !ok {
		return
	}

	imp, err := h.service.Create(ctx, tenantID, imports.CreateRequest{
		TemplateID: q.Get("templateId"),
		FileName:   q.Get("fileName"),
		Document:   doc,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if async {
		if err := h.service.Submit(ctx, tenantID, imp.ID, doc); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, imp)
		return
	}

	imp, err = h.service.Process(ctx, tenantID, imp.ID, doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, imp)
}

// ListImports handles GET /imports.
func (h *Handler) ListImports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := domain.ImportFilter{
		Status:     domain.ImportStatus(q.Get("status")),
		TemplateID: q.Get("templateId"),
	}
	for param, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		t, err := parseTime(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": param + " must be a date (2006-01-02) or RFC 3339 time",
			})
			return
		}
		*dst = &t
	}

	page := domain.Page{}
	for param, dst := range map[string]*int{"limit": &page.Limit, "offset": &page.Offset} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": param + " must be an integer",
			})
			return
		}
		*dst = n
	}
	page = page.Normalize()

	list, total, err := h.service.ListImports(ctx, GetTenantID(ctx), filter, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*domain.Import{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"imports": list,
		"total":   total,
		"limit":   page.Limit,
		"offset":  page.Offset,
	})
}

// GetImport handles GET /imports/{id}.
func (h *Handler) GetImport(w http.ResponseWriter, r *http.Request) {
	imp, err := h.service.GetImport(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imp)
}

// ProcessImport handles POST /imports/{id}/process. The body must be the
// same document the import was created with.
func (h *Handler) ProcessImport(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.readDocument(w, r)
	if !ok {
		return
	}

	imp, err := h.service.Process(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "id"), doc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imp)
}

// ListLines handles GET /imports/{id}/lines.
func (h *Handler) ListLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.service.ListLines(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if lines == nil {
		lines = []*domain.ImportLine{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lines": lines,
		"count": len(lines),
	})
}

// ReviewLine handles POST /imports/{id}/lines/{lineId}/{action} where
// action is confirm, reject or skip.
func (h *Handler) ReviewLine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	importID := chi.URLParam(r, "id")
	lineID := chi.URLParam(r, "lineId")

	var (
		line *domain.ImportLine
		err  error
	)
	switch chi.URLParam(r, "action") {
	case "confirm":
		line, err = h.service.ConfirmLine(ctx, tenantID, importID, lineID)
	case "reject":
		line, err = h.service.RejectLine(ctx, tenantID, importID, lineID)
	case "skip":
		line, err = h.service.SkipLine(ctx, tenantID, importID, lineID)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "unknown review action",
		})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

// ConfirmAutoMatched handles POST /imports/{id}/confirm-auto.
func (h *Handler) ConfirmAutoMatched(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.ConfirmAllAutoMatched(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"confirmed": n,
	})
}

// FinalizeImport handles POST /imports/{id}/finalize.
func (h *Handler) FinalizeImport(w http.ResponseWriter, r *http.Request) {
	imp, err := h.service.Finalize(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imp)
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
