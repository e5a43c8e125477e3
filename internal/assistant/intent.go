package assistant

import (
	"strings"
	"unicode"

	"github.com/flowmarket/marketplace/internal/models"
)

// IntentClassifier routes free-text queries to one of five fixed
// intents by keyword membership. Deliberately not statistical: the
// behavior must be deterministic and auditable. Sets are tested in a
// fixed priority order and the first match wins, so overlapping
// keywords resolve by that order alone.
type IntentClassifier struct {
	templateKeywords       map[string]bool
	freelancerKeywords     map[string]bool
	implementationKeywords map[string]bool
	statsKeywords          map[string]bool
	statsPhrases           []string
}

func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{
		templateKeywords: map[string]bool{
			"template":   true,
			"workflow":   true,
			"automation": true,
			"find":       true,
			"search":     true,
		},
		freelancerKeywords: map[string]bool{
			"freelancer": true,
			"expert":     true,
			"developer":  true,
			"hire":       true,
			"consultant": true,
		},
		implementationKeywords: map[string]bool{
			"implement": true,
			"build":     true,
			"create":    true,
			"develop":   true,
			"project":   true,
		},
		statsKeywords: map[string]bool{
			"stats":      true,
			"statistics": true,
			"count":      true,
			"total":      true,
		},
		statsPhrases: []string{"how many"},
	}
}

// Classify maps a free-text query to an intent. Matching is on whole
// tokens, not raw substrings, so "templates" does not trigger the
// "template" keyword; the stats intent additionally matches question
// phrases ("how many") as substrings.
func (ic *IntentClassifier) Classify(query string) models.Intent {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return models.IntentGeneral
	}

	tokens := tokenize(normalized)

	if containsAny(tokens, ic.templateKeywords) {
		return models.IntentSearchTemplates
	}
	if containsAny(tokens, ic.freelancerKeywords) {
		return models.IntentFindFreelancer
	}
	if containsAny(tokens, ic.implementationKeywords) {
		return models.IntentImplementationRequest
	}
	if containsAny(tokens, ic.statsKeywords) {
		return models.IntentGetStats
	}
	for _, phrase := range ic.statsPhrases {
		if strings.Contains(normalized, phrase) {
			return models.IntentGetStats
		}
	}

	return models.IntentGeneral
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func containsAny(tokens []string, set map[string]bool) bool {
	for _, tok := range tokens {
		if set[tok] {
			return true
		}
	}
	return false
}
