package api

import (
	"net/http"
	"strings"

	"github.com/flowmarket/marketplace/internal/models"
)

const maxBulkOperations = 20

type assistantQueryRequest struct {
	Query string `json:"query" validate:"required,max=500"`
}

// AssistantQuery classifies a free-text query and routes it to the
// matching marketplace action.
func (h *Handler) AssistantQuery(w http.ResponseWriter, r *http.Request) {
	var req assistantQueryRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.writeError(w, http.StatusBadRequest, "missing_query", "query must not be empty")
		return
	}

	resp := h.assistant.ProcessQuery(r.Context(), req.Query)
	h.writeJSON(w, http.StatusOK, resp)
}

type assistantActionRequest struct {
	Action     string         `json:"action" validate:"required"`
	Parameters map[string]any `json:"parameters"`
}

// AssistantAction executes one named action. Unknown actions still return
// 200 with a uniform error envelope; the envelope, not the HTTP status,
// is the contract.
func (h *Handler) AssistantAction(w http.ResponseWriter, r *http.Request) {
	var req assistantActionRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result := h.assistant.Dispatcher().Execute(r.Context(), req.Action, req.Parameters)
	h.writeJSON(w, http.StatusOK, result)
}

type assistantBulkRequest struct {
	Operations []models.Operation `json:"operations" validate:"required,min=1"`
}

// AssistantBulk executes a batch of operations sequentially and returns
// one result per operation, tagged with the operation's id when provided
// and its position otherwise.
func (h *Handler) AssistantBulk(w http.ResponseWriter, r *http.Request) {
	var req assistantBulkRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Operations) > maxBulkOperations {
		h.writeError(w, http.StatusBadRequest, "too_many_operations", "a bulk request is limited to 20 operations")
		return
	}

	results := h.assistant.Dispatcher().ExecuteBulk(r.Context(), req.Operations)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"total":   len(results),
	})
}
