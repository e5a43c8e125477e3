package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flowmarket/marketplace/internal/store"
)

type createImplementationRequest struct {
	TemplateID   uint            `json:"template_id" validate:"required"`
	ClientID     string          `json:"client_id" validate:"required"`
	Budget       float64         `json:"budget" validate:"gt=0"`
	Currency     string          `json:"currency" validate:"omitempty,len=3"`
	Requirements json.RawMessage `json:"requirements"`
	Deadline     *time.Time      `json:"deadline"`
}

func (h *Handler) CreateImplementation(w http.ResponseWriter, r *http.Request) {
	var req createImplementationRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	// The referenced template must exist before money is involved.
	if _, err := h.store.GetTemplateByID(r.Context(), req.TemplateID); err != nil {
		h.storeError(w, err, "template not found")
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = "BRL"
	}

	impl := &store.Implementation{
		TemplateID:   req.TemplateID,
		ClientID:     req.ClientID,
		Budget:       req.Budget,
		Currency:     currency,
		Requirements: req.Requirements,
		Deadline:     req.Deadline,
		Status:       store.StatusPending,
	}
	if err := h.store.CreateImplementation(r.Context(), impl); err != nil {
		h.storeError(w, err, "")
		return
	}

	h.writeJSON(w, http.StatusCreated, impl)
}

func (h *Handler) GetImplementation(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "implementation id must be numeric")
		return
	}

	impl, err := h.store.GetImplementationByID(r.Context(), id)
	if err != nil {
		h.storeError(w, err, "implementation not found")
		return
	}
	h.writeJSON(w, http.StatusOK, impl)
}

func (h *Handler) ListImplementations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := q.Get("client_id")
	if clientID == "" {
		h.writeError(w, http.StatusBadRequest, "missing_client_id", "query parameter 'client_id' is required")
		return
	}

	impls, err := h.store.ListImplementationsByClient(r.Context(), clientID, h.limitFromQuery(q.Get("limit")), intFromQuery(q.Get("offset")))
	if err != nil {
		h.storeError(w, err, "")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"implementations": impls})
}

type acceptImplementationRequest struct {
	FreelancerID uint `json:"freelancer_id" validate:"required"`
}

// AcceptImplementation assigns a freelancer to a pending request. Only a
// pending request can be accepted; anything else answers 409.
func (h *Handler) AcceptImplementation(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "implementation id must be numeric")
		return
	}

	var req acceptImplementationRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if _, err := h.store.GetFreelancerByID(r.Context(), req.FreelancerID); err != nil {
		h.storeError(w, err, "freelancer not found")
		return
	}

	if err := h.store.AcceptImplementation(r.Context(), id, req.FreelancerID); err != nil {
		h.storeError(w, err, "implementation not found")
		return
	}

	impl, err := h.store.GetImplementationByID(r.Context(), id)
	if err != nil {
		h.storeError(w, err, "implementation not found")
		return
	}
	h.writeJSON(w, http.StatusOK, impl)
}

type updateImplementationStatusRequest struct {
	From string `json:"from" validate:"required,oneof=pending accepted in_progress completed cancelled"`
	To   string `json:"to" validate:"required,oneof=pending accepted in_progress completed cancelled"`
}

// UpdateImplementationStatus moves an implementation along its lifecycle.
// The transition is applied as a single conditional update: if the row is
// no longer in the expected source state the call answers 409 instead of
// overwriting a concurrent change.
func (h *Handler) UpdateImplementationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseUintParam(r, "id")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "implementation id must be numeric")
		return
	}

	var req updateImplementationStatusRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.store.UpdateImplementationStatus(r.Context(), id, req.From, req.To); err != nil {
		h.storeError(w, err, "implementation not found")
		return
	}

	impl, err := h.store.GetImplementationByID(r.Context(), id)
	if err != nil {
		h.storeError(w, err, "implementation not found")
		return
	}
	h.writeJSON(w, http.StatusOK, impl)
}
