package assistant

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/models"
	"github.com/flowmarket/marketplace/internal/observability"
)

// Assistant ties the classifier and dispatcher together behind the
// free-text query endpoint.
type Assistant struct {
	classifier *IntentClassifier
	dispatcher *Dispatcher
	store      Storage
	logger     *zap.Logger
}

func New(dispatcher *Dispatcher, st Storage, logger *zap.Logger) *Assistant {
	return &Assistant{
		classifier: NewIntentClassifier(),
		dispatcher: dispatcher,
		store:      st,
		logger:     logger,
	}
}

// Dispatcher exposes the action executor for structured requests.
func (a *Assistant) Dispatcher() *Dispatcher { return a.dispatcher }

// QueryResponse is the envelope for a processed free-text query.
type QueryResponse struct {
	Intent  string `json:"intent"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// summarize builds a one-line description of a search-backed action so
// the free-text endpoint answers in prose as well as data.
func summarize(result *models.ActionResult, noun, nameField string) string {
	sr, ok := result.Data.(*models.SearchResult)
	if !ok || sr == nil {
		return ""
	}
	if sr.Degraded {
		return fmt.Sprintf("Search is temporarily unavailable, so no %s could be listed.", noun)
	}
	if sr.EstimatedTotal == 0 {
		return fmt.Sprintf("No %s found for %q.", noun, sr.Query)
	}
	msg := fmt.Sprintf("Found %d %s for %q.", sr.EstimatedTotal, noun, sr.Query)
	if len(sr.Hits) > 0 {
		if name, _ := sr.Hits[0][nameField].(string); name != "" {
			msg += fmt.Sprintf(" Top result: %s.", name)
		}
	}
	return msg
}

// ProcessQuery classifies a free-text query and routes it to the
// matching action. Intents that need more structure than free text
// (implementation requests) answer with guidance instead of guessing.
func (a *Assistant) ProcessQuery(ctx context.Context, query string) *QueryResponse {
	intent := a.classifier.Classify(query)
	observability.AssistantQueriesTotal.WithLabelValues(intent.String()).Inc()

	a.logger.Debug("query classified",
		zap.String("intent", intent.String()),
		zap.String("trace_id", observability.TraceIDFromContext(ctx)),
	)

	switch intent {
	case models.IntentSearchTemplates:
		result := a.dispatcher.Execute(ctx, models.ActionSearchTemplates.String(), map[string]any{
			"query": query,
		})
		return &QueryResponse{
			Intent:  intent.String(),
			Message: summarize(result, "templates", "title"),
			Data:    result,
		}

	case models.IntentFindFreelancer:
		result := a.dispatcher.Execute(ctx, models.ActionFindFreelancer.String(), map[string]any{
			"query": query,
		})
		return &QueryResponse{
			Intent:  intent.String(),
			Message: summarize(result, "freelancers", "name"),
			Data:    result,
		}

	case models.IntentImplementationRequest:
		return &QueryResponse{
			Intent:  intent.String(),
			Message: "To request an implementation, provide template_id, client_id and budget via the create_implementation action.",
			Data: map[string]any{
				"action":          models.ActionCreateImplementation.String(),
				"required_fields": []string{"template_id", "client_id", "budget"},
				"optional_fields": []string{"currency", "requirements", "deadline"},
			},
		}

	case models.IntentGetStats:
		stats, err := a.store.Stats(ctx)
		if err != nil {
			a.logger.Error("stats lookup failed", zap.Error(err))
			return &QueryResponse{
				Intent:  intent.String(),
				Message: "Marketplace statistics are temporarily unavailable.",
			}
		}
		return &QueryResponse{Intent: intent.String(), Data: stats}

	default:
		return &QueryResponse{
			Intent:  intent.String(),
			Message: "I can search templates, find freelancers, set up implementation requests and report marketplace statistics.",
			Data: map[string]any{
				"available_actions": []string{
					models.ActionSearchTemplates.String(),
					models.ActionGetTemplate.String(),
					models.ActionFindFreelancer.String(),
					models.ActionCreateImplementation.String(),
					models.ActionGetCategories.String(),
				},
			},
		}
	}
}
