package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/models"
	"github.com/flowmarket/marketplace/internal/observability"
	"github.com/flowmarket/marketplace/internal/search"
	"github.com/flowmarket/marketplace/internal/store"
)

// Storage is the slice of the store the dispatcher needs.
type Storage interface {
	GetTemplateByID(ctx context.Context, id uint) (*store.Template, error)
	GetTemplateBySlug(ctx context.Context, slug string) (*store.Template, error)
	IncrementTemplateViews(ctx context.Context, id uint) error
	CreateImplementation(ctx context.Context, impl *store.Implementation) error
	ListCategories(ctx context.Context) ([]store.Category, error)
	Stats(ctx context.Context) (*store.MarketplaceStats, error)
}

// Searcher is the slice of the search gateway the dispatcher needs.
type Searcher interface {
	Search(ctx context.Context, index string, p search.Params) *models.SearchResult
	TemplatesIndex() string
	FreelancersIndex() string
}

// Dispatcher executes assistant actions. Every action resolves to a
// uniform result envelope; failures never panic or abort a bulk batch.
type Dispatcher struct {
	store        Storage
	search       Searcher
	logger       *zap.Logger
	defaultLimit int64
}

func NewDispatcher(st Storage, sc Searcher, defaultLimit int64, logger *zap.Logger) *Dispatcher {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	return &Dispatcher{
		store:        st,
		search:       sc,
		logger:       logger,
		defaultLimit: defaultLimit,
	}
}

// Execute runs one named action. Unknown names yield an error envelope,
// not an error return, so bulk callers treat every outcome uniformly.
func (d *Dispatcher) Execute(ctx context.Context, actionName string, params map[string]any) *models.ActionResult {
	action, err := models.ParseAction(actionName)
	if err != nil {
		observability.ActionExecutionsTotal.WithLabelValues("unknown", models.ActionStatusError).Inc()
		return errorResult(actionName, err)
	}

	var data any
	switch action {
	case models.ActionSearchTemplates:
		data, err = d.searchTemplates(ctx, params)
	case models.ActionGetTemplate:
		data, err = d.getTemplate(ctx, params)
	case models.ActionFindFreelancer:
		data, err = d.findFreelancer(ctx, params)
	case models.ActionCreateImplementation:
		data, err = d.createImplementation(ctx, params)
	case models.ActionGetCategories:
		data, err = d.getCategories(ctx)
	}

	if err != nil {
		observability.ActionExecutionsTotal.WithLabelValues(action.String(), models.ActionStatusError).Inc()
		d.logger.Warn("action failed",
			zap.String("action", action.String()),
			zap.Error(err),
		)
		return errorResult(action.String(), err)
	}

	observability.ActionExecutionsTotal.WithLabelValues(action.String(), models.ActionStatusSuccess).Inc()
	return &models.ActionResult{
		Action:    action.String(),
		Status:    models.ActionStatusSuccess,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// ExecuteBulk maps operations through Execute independently. Each result
// carries its operation ID, defaulting to the positional index, so
// callers can reconcile responses in any order. One failing operation
// never prevents the others from completing.
func (d *Dispatcher) ExecuteBulk(ctx context.Context, ops []models.Operation) []*models.ActionResult {
	results := make([]*models.ActionResult, len(ops))
	for i, op := range ops {
		result := d.Execute(ctx, op.Action, op.Parameters)
		if op.ID != nil {
			result.OperationID = op.ID
		} else {
			result.OperationID = i
		}
		results[i] = result
	}
	return results
}

func errorResult(action string, err error) *models.ActionResult {
	return &models.ActionResult{
		Action:    action,
		Status:    models.ActionStatusError,
		Error:     err.Error(),
		Timestamp: time.Now().UTC(),
	}
}

func (d *Dispatcher) searchTemplates(ctx context.Context, params map[string]any) (any, error) {
	filter := search.NewFilter()
	if category := stringParam(params, "category"); category != "" {
		filter.Eq("category", category)
	}
	if tags := stringSliceParam(params, "tags"); len(tags) > 0 {
		values := make([]any, len(tags))
		for i, t := range tags {
			values[i] = t
		}
		filter.In("tags", values...)
	}
	if minRating, ok := floatParam(params, "min_rating"); ok {
		filter.Range("rating", &minRating, nil)
	}

	expr, err := filter.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}

	result := d.search.Search(ctx, d.search.TemplatesIndex(), search.Params{
		Query:  stringParam(params, "query"),
		Filter: expr,
		Limit:  limitParam(params, d.defaultLimit),
	})
	return result, nil
}

func (d *Dispatcher) getTemplate(ctx context.Context, params map[string]any) (any, error) {
	var tmpl *store.Template
	var err error

	if id, ok := uintParam(params, "id"); ok {
		tmpl, err = d.store.GetTemplateByID(ctx, id)
	} else if slug := stringParam(params, "slug"); slug != "" {
		tmpl, err = d.store.GetTemplateBySlug(ctx, slug)
	} else {
		return nil, fmt.Errorf("get_template requires id or slug")
	}
	if err != nil {
		return nil, err
	}

	if err := d.store.IncrementTemplateViews(ctx, tmpl.ID); err != nil {
		d.logger.Warn("view counter update failed", zap.Uint("template_id", tmpl.ID), zap.Error(err))
	}
	return tmpl, nil
}

func (d *Dispatcher) findFreelancer(ctx context.Context, params map[string]any) (any, error) {
	filter := search.NewFilter()
	if skills := stringSliceParam(params, "skills"); len(skills) > 0 {
		values := make([]any, len(skills))
		for i, s := range skills {
			values[i] = s
		}
		filter.In("skills", values...)
	}
	if avail, ok := params["available"].(bool); ok && avail {
		filter.Eq("availability", true)
	}
	if maxRate, ok := floatParam(params, "max_hourly_rate"); ok {
		filter.Range("hourly_rate", nil, &maxRate)
	}

	expr, err := filter.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}

	result := d.search.Search(ctx, d.search.FreelancersIndex(), search.Params{
		Query:  stringParam(params, "query"),
		Filter: expr,
		Limit:  limitParam(params, d.defaultLimit),
		Sort:   []string{"rating:desc"},
	})
	return result, nil
}

func (d *Dispatcher) createImplementation(ctx context.Context, params map[string]any) (any, error) {
	templateID, ok := uintParam(params, "template_id")
	if !ok {
		return nil, fmt.Errorf("create_implementation requires template_id")
	}
	clientID := stringParam(params, "client_id")
	if clientID == "" {
		return nil, fmt.Errorf("create_implementation requires client_id")
	}
	budget, ok := floatParam(params, "budget")
	if !ok || budget <= 0 {
		return nil, fmt.Errorf("create_implementation requires a positive budget")
	}

	impl := &store.Implementation{
		TemplateID:    templateID,
		ClientID:      clientID,
		Budget:        budget,
		Currency:      "BRL",
		Status:        store.StatusPending,
		PaymentStatus: store.PaymentPending,
	}
	if currency := stringParam(params, "currency"); currency != "" {
		impl.Currency = currency
	}
	if reqs, ok := params["requirements"]; ok {
		raw, err := json.Marshal(reqs)
		if err != nil {
			return nil, fmt.Errorf("invalid requirements payload: %w", err)
		}
		impl.Requirements = raw
	}
	if deadline := stringParam(params, "deadline"); deadline != "" {
		t, err := time.Parse(time.RFC3339, deadline)
		if err != nil {
			return nil, fmt.Errorf("invalid deadline, want RFC3339: %w", err)
		}
		impl.Deadline = &t
	}

	if err := d.store.CreateImplementation(ctx, impl); err != nil {
		return nil, err
	}
	return impl, nil
}

func (d *Dispatcher) getCategories(ctx context.Context) (any, error) {
	return d.store.ListCategories(ctx)
}

// Parameter extraction tolerates the loose typing of decoded JSON:
// numbers arrive as float64, arrays as []any.

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func floatParam(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func uintParam(params map[string]any, key string) (uint, bool) {
	f, ok := floatParam(params, key)
	if !ok || f < 0 {
		return 0, false
	}
	return uint(f), true
}

func limitParam(params map[string]any, fallback int64) int64 {
	if f, ok := floatParam(params, "limit"); ok && f > 0 {
		return int64(f)
	}
	return fallback
}

func stringSliceParam(params map[string]any, key string) []string {
	raw, ok := params[key].([]any)
	if !ok {
		if direct, ok := params[key].([]string); ok {
			return direct
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
