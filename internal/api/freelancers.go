package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/store"
)

type createFreelancerRequest struct {
	UserID     string   `json:"user_id" validate:"required"`
	Name       string   `json:"name" validate:"required,min=2,max=120"`
	Email      string   `json:"email" validate:"required,email"`
	Bio        string   `json:"bio" validate:"max=2000"`
	Skills     []string `json:"skills" validate:"required,min=1,max=20"`
	HourlyRate float64  `json:"hourly_rate" validate:"gt=0"`
	Currency   string   `json:"currency" validate:"omitempty,len=3"`
}

func (h *Handler) CreateFreelancer(w http.ResponseWriter, r *http.Request) {
	var req createFreelancerRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "BRL"
	}

	f := &store.Freelancer{
		UserID:     req.UserID,
		Name:       req.Name,
		Email:      req.Email,
		Bio:        req.Bio,
		Skills:     store.StringList(req.Skills),
		HourlyRate: req.HourlyRate,
		Currency:   currency,
		Available:  true,
	}
	if err := h.store.CreateFreelancer(r.Context(), f); err != nil {
		h.storeError(w, err, "freelancer not found")
		return
	}

	if err := h.search.IndexDocument(r.Context(), h.search.FreelancersIndex(), f.SearchDocument()); err != nil {
		h.logger.Warn("indexing new freelancer", zap.Uint("freelancer_id", f.ID), zap.Error(err))
	}

	h.writeJSON(w, http.StatusCreated, f)
}

func (h *Handler) GetFreelancer(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "freelancer id must be numeric")
		return
	}

	f, err := h.store.GetFreelancerByID(r.Context(), id)
	if err != nil {
		h.storeError(w, err, "freelancer not found")
		return
	}
	h.writeJSON(w, http.StatusOK, f)
}

func (h *Handler) ListFreelancers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.FreelancerFilter{
		Skill:         q.Get("skill"),
		AvailableOnly: q.Get("available") == "true",
		Limit:         h.limitFromQuery(q.Get("limit")),
		Offset:        intFromQuery(q.Get("offset")),
	}

	freelancers, total, err := h.store.ListFreelancers(r.Context(), filter)
	if err != nil {
		h.storeError(w, err, "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"freelancers": freelancers,
		"total":       total,
		"limit":       filter.Limit,
		"offset":      filter.Offset,
	})
}

// VerifyFreelancer flips the verified flag exactly once. A repeat call
// returns 409 rather than silently succeeding.
func (h *Handler) VerifyFreelancer(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "freelancer id must be numeric")
		return
	}

	if err := h.store.VerifyFreelancer(r.Context(), id); err != nil {
		h.storeError(w, err, "freelancer not found")
		return
	}

	f, err := h.store.GetFreelancerByID(r.Context(), id)
	if err != nil {
		h.storeError(w, err, "freelancer not found")
		return
	}

	if err := h.search.UpdateDocument(r.Context(), h.search.FreelancersIndex(), f.SearchDocument()); err != nil {
		h.logger.Warn("updating freelancer document", zap.Uint("freelancer_id", id), zap.Error(err))
	}

	h.writeJSON(w, http.StatusOK, f)
}
