package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/observability"
	"github.com/flowmarket/marketplace/internal/payments"
)

type checkoutRequest struct {
	ImplementationID uint   `json:"implementation_id" validate:"required"`
	Provider         string `json:"provider" validate:"required,oneof=mercadopago stripe"`
}

func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	session, err := h.payments.CreateCheckout(r.Context(), req.ImplementationID, req.Provider)
	if err != nil {
		h.logger.Error("creating checkout",
			zap.Uint("implementation_id", req.ImplementationID),
			zap.String("provider", req.Provider),
			zap.Error(err),
		)
		h.writeError(w, http.StatusUnprocessableEntity, "checkout_failed", err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, session)
}

type refundRequest struct {
	ImplementationID uint `json:"implementation_id" validate:"required"`
}

// Refund reverses a settled payment. Only a paid implementation can be
// refunded; anything else answers 409.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := h.payments.RefundPayment(r.Context(), req.ImplementationID); err != nil {
		h.logger.Error("refunding payment",
			zap.Uint("implementation_id", req.ImplementationID),
			zap.Error(err),
		)
		h.storeError(w, err, "implementation not found")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"implementation_id": req.ImplementationID,
		"payment_status":    "refunded",
	})
}

// Revenue reports paid-implementation totals for an optional time range.
// Bounds are RFC3339; an absent bound leaves that side open.
func (h *Handler) Revenue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var from, to *time.Time
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_from", "'from' must be RFC3339")
			return
		}
		from = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_to", "'to' must be RFC3339")
			return
		}
		to = &t
	}

	summary, err := h.store.Revenue(r.Context(), from, to)
	if err != nil {
		h.storeError(w, err, "")
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// MercadoPagoWebhook receives IPN-style notifications. MercadoPago only
// sends a payment id; the authoritative status comes from querying the
// payment back, so a forged notification cannot settle anything.
func (h *Handler) MercadoPagoWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	topic := q.Get("type")
	if topic == "" {
		topic = q.Get("topic")
	}
	if topic != "payment" {
		observability.WebhookEventsTotal.WithLabelValues("mercadopago", "ignored").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	paymentID := q.Get("data.id")
	if paymentID == "" {
		paymentID = q.Get("id")
	}
	if paymentID == "" {
		observability.WebhookEventsTotal.WithLabelValues("mercadopago", "invalid").Inc()
		h.writeError(w, http.StatusBadRequest, "missing_payment_id", "notification carries no payment id")
		return
	}

	if err := h.payments.HandleMercadoPagoNotification(r.Context(), paymentID); err != nil {
		observability.WebhookEventsTotal.WithLabelValues("mercadopago", "error").Inc()
		h.logger.Error("handling mercadopago notification", zap.String("payment_id", paymentID), zap.Error(err))
		// 500 makes MercadoPago redeliver; settlement is idempotent.
		h.writeError(w, http.StatusInternalServerError, "webhook_error", "notification processing failed")
		return
	}

	observability.WebhookEventsTotal.WithLabelValues("mercadopago", "success").Inc()
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "unreadable payload")
		return
	}

	event, err := h.payments.Stripe().VerifyWebhook(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		observability.WebhookEventsTotal.WithLabelValues("stripe", "invalid").Inc()
		h.writeError(w, http.StatusBadRequest, "invalid_signature", "signature verification failed")
		return
	}

	if err := h.payments.HandleStripeEvent(r.Context(), event); err != nil {
		observability.WebhookEventsTotal.WithLabelValues("stripe", "error").Inc()
		h.logger.Error("handling stripe event", zap.String("event_type", string(event.Type)), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "webhook_error", "event processing failed")
		return
	}

	observability.WebhookEventsTotal.WithLabelValues("stripe", "success").Inc()
	w.WriteHeader(http.StatusOK)
}

// GitHubWebhook triggers a template import when the source repository
// receives a push. The signature check runs over the raw body before any
// parsing.
func (h *Handler) GitHubWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "unreadable payload")
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if !payments.VerifySignature(h.cfg.Webhooks.GitHubSecret, body, signature, h.logger) {
		observability.WebhookEventsTotal.WithLabelValues("github", "invalid").Inc()
		h.writeError(w, http.StatusUnauthorized, "invalid_signature", "signature verification failed")
		return
	}

	if event := r.Header.Get("X-GitHub-Event"); event != "push" {
		observability.WebhookEventsTotal.WithLabelValues("github", "ignored").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	job, err := h.producer.EnqueueImport(r.Context(), h.cfg.Import.RepoOwner, h.cfg.Import.RepoName)
	if err != nil {
		observability.WebhookEventsTotal.WithLabelValues("github", "error").Inc()
		h.logger.Error("enqueueing import from push", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "enqueue_failed", "could not schedule import")
		return
	}

	observability.WebhookEventsTotal.WithLabelValues("github", "success").Inc()
	h.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// N8NWebhook receives workflow-execution callbacks from n8n instances
// that run marketplace templates. A verified download event bumps the
// template's counter.
func (h *Handler) N8NWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_body", "unreadable payload")
		return
	}

	signature := r.Header.Get("X-Signature")
	if !payments.VerifySignature(h.cfg.Webhooks.N8NSecret, body, signature, h.logger) {
		observability.WebhookEventsTotal.WithLabelValues("n8n", "invalid").Inc()
		h.writeError(w, http.StatusUnauthorized, "invalid_signature", "signature verification failed")
		return
	}

	var payload struct {
		Event      string `json:"event"`
		TemplateID uint   `json:"template_id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		observability.WebhookEventsTotal.WithLabelValues("n8n", "invalid").Inc()
		h.writeError(w, http.StatusBadRequest, "invalid_payload", "payload must be JSON")
		return
	}

	if payload.Event == "workflow_downloaded" && payload.TemplateID != 0 {
		if err := h.store.IncrementTemplateDownloads(r.Context(), payload.TemplateID); err != nil {
			h.logger.Warn("recording webhook download",
				zap.Uint("template_id", payload.TemplateID),
				zap.Error(err),
			)
		}
	}

	observability.WebhookEventsTotal.WithLabelValues("n8n", "success").Inc()
	w.WriteHeader(http.StatusOK)
}
