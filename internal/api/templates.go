package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/importer"
	"github.com/flowmarket/marketplace/internal/store"
)

type createTemplateRequest struct {
	Title       string          `json:"title" validate:"required,min=3,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Category    string          `json:"category" validate:"required"`
	Tags        []string        `json:"tags" validate:"max=10"`
	SourceURL   string          `json:"source_url" validate:"omitempty,url"`
	Workflow    json.RawMessage `json:"workflow"`
	AuthorName  string          `json:"author_name"`
	License     string          `json:"license"`
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	t := &store.Template{
		Title:       req.Title,
		Slug:        importer.GenerateSlug(req.Title),
		Description: req.Description,
		Category:    req.Category,
		Tags:        store.StringList(req.Tags),
		SourceURL:   req.SourceURL,
		Workflow:    req.Workflow,
		AuthorName:  req.AuthorName,
		License:     req.License,
	}
	if err := h.store.CreateTemplate(r.Context(), t); err != nil {
		h.storeError(w, err, "template not found")
		return
	}

	// Index failures are logged, not surfaced: MySQL is authoritative and a
	// reindex job repairs the search side.
	if err := h.search.IndexDocument(r.Context(), h.search.TemplatesIndex(), t.SearchDocument()); err != nil {
		h.logger.Warn("indexing new template", zap.Uint("template_id", t.ID), zap.Error(err))
	}

	h.writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref := chi.URLParam(r, "id")

	var (
		t   *store.Template
		err error
	)
	if id, perr := strconv.ParseUint(ref, 10, 32); perr == nil {
		t, err = h.store.GetTemplateByID(ctx, uint(id))
	} else {
		t, err = h.store.GetTemplateBySlug(ctx, ref)
	}
	if err != nil {
		h.storeError(w, err, "template not found")
		return
	}

	if err := h.store.IncrementTemplateViews(ctx, t.ID); err != nil {
		h.logger.Warn("incrementing template views", zap.Uint("template_id", t.ID), zap.Error(err))
	}

	h.writeJSON(w, http.StatusOK, t)
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.TemplateFilter{
		Category: q.Get("category"),
		Tag:      q.Get("tag"),
		Limit:    h.limitFromQuery(q.Get("limit")),
		Offset:   intFromQuery(q.Get("offset")),
	}

	templates, total, err := h.store.ListTemplates(r.Context(), filter)
	if err != nil {
		h.storeError(w, err, "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"templates": templates,
		"total":     total,
		"limit":     filter.Limit,
		"offset":    filter.Offset,
	})
}

// DownloadTemplate hands back the workflow JSON and bumps the download
// counter. The counter update is part of the response contract: a second
// download of the same template must observe a larger count.
func (h *Handler) DownloadTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseUintParam(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "template id must be numeric")
		return
	}

	t, err := h.store.GetTemplateByID(ctx, id)
	if err != nil {
		h.storeError(w, err, "template not found")
		return
	}
	if len(t.Workflow) == 0 {
		h.writeError(w, http.StatusNotFound, "no_workflow", "template has no workflow payload")
		return
	}

	if err := h.store.IncrementTemplateDownloads(ctx, id); err != nil {
		h.logger.Warn("incrementing template downloads", zap.Uint("template_id", id), zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+t.Slug+`.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(t.Workflow)
}

func (h *Handler) PopularTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.ListPopularTemplates(r.Context(), h.limitFromQuery(r.URL.Query().Get("limit")))
	if err != nil {
		h.storeError(w, err, "")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		h.storeError(w, err, "")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (h *Handler) limitFromQuery(raw string) int {
	limit := h.cfg.Search.DefaultLimit
	if raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > h.cfg.Search.MaxLimit {
		limit = h.cfg.Search.MaxLimit
	}
	return limit
}

func intFromQuery(raw string) int {
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func parseUintParam(r *http.Request, name string) (uint, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 32)
	return uint(v), err
}
