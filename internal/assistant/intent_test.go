package assistant

import (
	"testing"

	"github.com/flowmarket/marketplace/internal/models"
)

func TestIntentClassifier_Classify(t *testing.T) {
	ic := NewIntentClassifier()

	tests := []struct {
		name  string
		query string
		want  models.Intent
	}{
		{"template search", "find me an automation template", models.IntentSearchTemplates},
		{"workflow keyword", "I need a workflow for invoices", models.IntentSearchTemplates},
		{"hire freelancer", "hire a developer", models.IntentFindFreelancer},
		{"expert keyword", "looking for an n8n expert", models.IntentFindFreelancer},
		{"implementation request", "can someone build this for me", models.IntentImplementationRequest},
		{"project keyword", "I have a project to implement", models.IntentImplementationRequest},
		{"stats count phrase", "how many templates exist", models.IntentGetStats},
		{"stats keyword", "show me the marketplace stats", models.IntentGetStats},
		{"total keyword", "total revenue this month", models.IntentGetStats},
		{"no keyword", "hello", models.IntentGeneral},
		{"empty query", "", models.IntentGeneral},
		{"whitespace only", "   ", models.IntentGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ic.Classify(tt.query)
			if got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestIntentClassifier_TokenBoundaries(t *testing.T) {
	ic := NewIntentClassifier()

	// "templates" must not match the "template" keyword as a raw
	// substring; the phrase check routes this to stats instead.
	got := ic.Classify("how many templates exist")
	if got != models.IntentGetStats {
		t.Errorf("expected stats intent, got %v", got)
	}

	// Punctuation-separated keywords still match.
	got = ic.Classify("template, please!")
	if got != models.IntentSearchTemplates {
		t.Errorf("expected template search intent, got %v", got)
	}
}

func TestIntentClassifier_PriorityOrder(t *testing.T) {
	ic := NewIntentClassifier()

	// Overlapping keyword sets resolve purely by check order: the
	// template set wins over the freelancer set.
	got := ic.Classify("find a freelancer")
	if got != models.IntentSearchTemplates {
		t.Errorf("expected template intent to win by priority, got %v", got)
	}

	// Freelancer set wins over implementation set.
	got = ic.Classify("hire someone to build it")
	if got != models.IntentFindFreelancer {
		t.Errorf("expected freelancer intent to win by priority, got %v", got)
	}
}

func TestIntentClassifier_CaseInsensitive(t *testing.T) {
	ic := NewIntentClassifier()

	got := ic.Classify("HIRE A DEVELOPER")
	if got != models.IntentFindFreelancer {
		t.Errorf("expected freelancer intent for uppercase query, got %v", got)
	}
}
