package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/assistant"
	"github.com/flowmarket/marketplace/internal/clickhouse"
	"github.com/flowmarket/marketplace/internal/config"
	"github.com/flowmarket/marketplace/internal/models"
	"github.com/flowmarket/marketplace/internal/observability"
	"github.com/flowmarket/marketplace/internal/payments"
	"github.com/flowmarket/marketplace/internal/search"
	"github.com/flowmarket/marketplace/internal/store"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// Store covers the persistence operations the HTTP layer reaches for.
type Store interface {
	CreateTemplate(ctx context.Context, t *store.Template) error
	GetTemplateByID(ctx context.Context, id uint) (*store.Template, error)
	GetTemplateBySlug(ctx context.Context, slug string) (*store.Template, error)
	ListTemplates(ctx context.Context, f store.TemplateFilter) ([]store.Template, int64, error)
	ListPopularTemplates(ctx context.Context, limit int) ([]store.Template, error)
	UpdateTemplate(ctx context.Context, t *store.Template) error
	IncrementTemplateDownloads(ctx context.Context, id uint) error
	IncrementTemplateViews(ctx context.Context, id uint) error
	ListCategories(ctx context.Context) ([]store.Category, error)

	CreateFreelancer(ctx context.Context, f *store.Freelancer) error
	GetFreelancerByID(ctx context.Context, id uint) (*store.Freelancer, error)
	ListFreelancers(ctx context.Context, f store.FreelancerFilter) ([]store.Freelancer, int64, error)
	VerifyFreelancer(ctx context.Context, id uint) error

	CreateImplementation(ctx context.Context, impl *store.Implementation) error
	GetImplementationByID(ctx context.Context, id uint) (*store.Implementation, error)
	ListImplementationsByClient(ctx context.Context, clientID string, limit, offset int) ([]store.Implementation, error)
	AcceptImplementation(ctx context.Context, id, freelancerID uint) error
	UpdateImplementationStatus(ctx context.Context, id uint, from, to string) error

	Revenue(ctx context.Context, from, to *time.Time) (*store.RevenueSummary, error)
	Stats(ctx context.Context) (*store.MarketplaceStats, error)
}

// SearchGateway is the slice of the search client the handlers use.
type SearchGateway interface {
	Search(ctx context.Context, index string, p search.Params) *models.SearchResult
	Suggestions(ctx context.Context, index, prefix string, limit int64) []models.Document
	Stats(ctx context.Context, index string) (*models.IndexStats, error)
	IndexDocument(ctx context.Context, index string, doc any) error
	UpdateDocument(ctx context.Context, index string, doc any) error
	DeleteDocument(ctx context.Context, index, id string) error
	TemplatesIndex() string
	FreelancersIndex() string
}

// PaymentService covers checkout creation and provider callback handling.
type PaymentService interface {
	CreateCheckout(ctx context.Context, implementationID uint, providerName string) (*payments.CheckoutSession, error)
	RefundPayment(ctx context.Context, implementationID uint) error
	HandleMercadoPagoNotification(ctx context.Context, paymentID string) error
	HandleStripeEvent(ctx context.Context, event stripe.Event) error
	Stripe() *payments.Stripe
}

// JobProducer enqueues background jobs.
type JobProducer interface {
	EnqueueImport(ctx context.Context, owner, repo string) (*models.Job, error)
	EnqueueReindex(ctx context.Context) (*models.Job, error)
}

// JobTracker reads job status written by the worker.
type JobTracker interface {
	GetJobStatus(ctx context.Context, jobID string) (*models.JobStatus, error)
}

// AnalyticsSource answers aggregate queries over search analytics.
// Nil when ClickHouse is not configured.
type AnalyticsSource interface {
	QueryIntentBreakdown(ctx context.Context, window time.Duration) ([]clickhouse.IntentBreakdown, error)
}

type Handler struct {
	store     Store
	search    SearchGateway
	assistant *assistant.Assistant
	payments  PaymentService
	producer  JobProducer
	tracker   JobTracker
	analytics AnalyticsSource
	slow      *observability.SlowQueryDetector
	cfg       *config.Config
	validate  *validator.Validate
	logger    *zap.Logger
}

func NewHandler(
	st Store,
	sg SearchGateway,
	as *assistant.Assistant,
	ps PaymentService,
	producer JobProducer,
	tracker JobTracker,
	analytics AnalyticsSource,
	slow *observability.SlowQueryDetector,
	cfg *config.Config,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		store:     st,
		search:    sg,
		assistant: as,
		payments:  ps,
		producer:  producer,
		tracker:   tracker,
		analytics: analytics,
		slow:      slow,
		cfg:       cfg,
		validate:  validator.New(),
		logger:    logger,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("writing json response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// decodeJSON reads a bounded request body into dst and runs struct
// validation when dst carries validate tags.
func (h *Handler) decodeJSON(r *http.Request, dst any) error {
	limited := io.LimitReader(r.Body, maxRequestBodySize)
	if err := json.NewDecoder(limited).Decode(dst); err != nil {
		return err
	}
	if err := h.validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			// dst is not a struct; nothing to validate.
			return nil
		}
		return err
	}
	return nil
}

// storeError maps persistence sentinels onto HTTP status codes.
func (h *Handler) storeError(w http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", notFoundMsg)
	case errors.Is(err, store.ErrDuplicate):
		h.writeError(w, http.StatusConflict, "duplicate", "resource already exists")
	case errors.Is(err, store.ErrConflict):
		h.writeError(w, http.StatusConflict, "conflict", "resource is not in the required state")
	default:
		h.writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
