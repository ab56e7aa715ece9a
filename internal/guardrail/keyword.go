package guardrail

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/skydesk/internal/domain"
	"github.com/ashureev/skydesk/internal/specialist"
)

// Guardrail ids used by the catalog.
const (
	RelevanceID = "relevance"
	JailbreakID = "jailbreak"
)

// Relevance and Jailbreak are the guardrails every specialist requires.
var (
	Relevance = specialist.Guardrail{ID: RelevanceID, Name: "Relevance Guardrail"}
	Jailbreak = specialist.Guardrail{ID: JailbreakID, Name: "Jailbreak Guardrail"}
)

// KeywordChecker trips a guardrail when the input contains one of its phrases.
// Guardrails without phrases always pass.
type KeywordChecker struct {
	phrases map[string][]string
}

// NewKeywordChecker creates a checker from guardrail id to blocked phrases.
func NewKeywordChecker(phrases map[string][]string) *KeywordChecker {
	normalized := make(map[string][]string, len(phrases))
	for id, list := range phrases {
		for _, p := range list {
			normalized[id] = append(normalized[id], strings.ToLower(p))
		}
	}
	return &KeywordChecker{phrases: normalized}
}

// DefaultKeywordChecker blocks common jailbreak phrasings and clearly
// off-topic requests.
func DefaultKeywordChecker() *KeywordChecker {
	return NewKeywordChecker(map[string][]string{
		JailbreakID: {
			"ignore your instructions",
			"ignore previous instructions",
			"ignore all previous",
			"disregard your instructions",
			"system prompt",
			"reveal your prompt",
			"developer mode",
			"you are now",
			"drop table",
			"; --",
		},
		RelevanceID: {
			"write me a poem",
			"write a poem",
			"do my homework",
			"stock tips",
			"crypto price",
			"bitcoin price",
		},
	})
}

// Check implements Checker.
func (k *KeywordChecker) Check(_ context.Context, guard specialist.Guardrail, input string, _ domain.AirlineContext) (Verdict, error) {
	lower := strings.ToLower(input)
	for _, p := range k.phrases[guard.ID] {
		if strings.Contains(lower, p) {
			return Verdict{
				Passed:    false,
				Reasoning: fmt.Sprintf("Message contains blocked phrase %q.", p),
			}, nil
		}
	}
	return Verdict{Passed: true}, nil
}
