package assistant

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/models"
	"github.com/flowmarket/marketplace/internal/store"
)

func newTestAssistant(st *fakeStorage, sc *fakeSearcher) *Assistant {
	return New(newTestDispatcher(st, sc), st, zap.NewNop())
}

func TestAssistant_ProcessQuery_TemplateSearch(t *testing.T) {
	sc := &fakeSearcher{}
	a := newTestAssistant(&fakeStorage{}, sc)

	resp := a.ProcessQuery(context.Background(), "find me an automation template")

	if resp.Intent != "search_templates" {
		t.Errorf("expected search_templates intent, got %q", resp.Intent)
	}
	if sc.lastIndex != "templates" {
		t.Errorf("expected query routed to templates index, got %q", sc.lastIndex)
	}
}

func TestAssistant_ProcessQuery_SearchSummary(t *testing.T) {
	sc := &fakeSearcher{result: &models.SearchResult{
		Hits: []models.Document{
			{"title": "Slack Notifier"},
			{"title": "Email Digest"},
		},
		EstimatedTotal: 2,
		Query:          "find me an automation template",
	}}
	a := newTestAssistant(&fakeStorage{}, sc)

	resp := a.ProcessQuery(context.Background(), "find me an automation template")

	if !strings.Contains(resp.Message, "Found 2 templates") {
		t.Errorf("expected hit count in message, got %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "Slack Notifier") {
		t.Errorf("expected top result name in message, got %q", resp.Message)
	}
}

func TestAssistant_ProcessQuery_SearchSummaryDegraded(t *testing.T) {
	sc := &fakeSearcher{result: models.EmptySearchResult("find a freelancer for my project")}
	a := newTestAssistant(&fakeStorage{}, sc)

	resp := a.ProcessQuery(context.Background(), "find a freelancer for my project")

	if resp.Intent != "find_freelancer" {
		t.Fatalf("expected find_freelancer intent, got %q", resp.Intent)
	}
	if !strings.Contains(resp.Message, "temporarily unavailable") {
		t.Errorf("expected degraded notice in message, got %q", resp.Message)
	}
}

func TestAssistant_ProcessQuery_Stats(t *testing.T) {
	st := &fakeStorage{stats: &store.MarketplaceStats{Templates: 42, Freelancers: 7}}
	a := newTestAssistant(st, &fakeSearcher{})

	resp := a.ProcessQuery(context.Background(), "how many templates exist")

	if resp.Intent != "get_stats" {
		t.Fatalf("expected get_stats intent, got %q", resp.Intent)
	}
	stats, ok := resp.Data.(*store.MarketplaceStats)
	if !ok || stats.Templates != 42 {
		t.Errorf("unexpected stats payload: %v", resp.Data)
	}
}

func TestAssistant_ProcessQuery_ImplementationGuidance(t *testing.T) {
	a := newTestAssistant(&fakeStorage{}, &fakeSearcher{})

	resp := a.ProcessQuery(context.Background(), "can someone build this project")

	if resp.Intent != "implementation_request" {
		t.Fatalf("expected implementation_request intent, got %q", resp.Intent)
	}
	if resp.Message == "" {
		t.Error("expected guidance message for implementation request")
	}
}

func TestAssistant_ProcessQuery_General(t *testing.T) {
	a := newTestAssistant(&fakeStorage{}, &fakeSearcher{})

	resp := a.ProcessQuery(context.Background(), "hello")

	if resp.Intent != "general" {
		t.Fatalf("expected general intent, got %q", resp.Intent)
	}
	if resp.Message == "" {
		t.Error("expected a help message for general queries")
	}
}
