package specialist

import (
	"context"
	"errors"
	"testing"

	"github.com/ashureev/skydesk/internal/domain"
	"github.com/google/go-cmp/cmp"
)

func noopTool(name string) Tool {
	return Tool{
		Name: name,
		Run: func(context.Context, *domain.AirlineContext, Args) (string, error) {
			return "ok", nil
		},
	}
}

func TestRegistryResolveFallsBackToTriage(t *testing.T) {
	r, err := NewRegistry("triage",
		Descriptor{ID: "triage", Handoffs: []Handoff{{Target: "faq"}}},
		Descriptor{ID: "faq", Handoffs: []Handoff{{Target: "triage"}}},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	if got := r.Resolve("faq").ID; got != "faq" {
		t.Fatalf("Resolve(faq) = %q", got)
	}
	if got := r.Resolve("retired_agent").ID; got != "triage" {
		t.Fatalf("Resolve(unknown) = %q, want triage", got)
	}
	if _, ok := r.Get("retired_agent"); ok {
		t.Fatal("Get(unknown) ok = true")
	}
}

func TestRegistryRejectsDanglingHandoff(t *testing.T) {
	_, err := NewRegistry("triage", Descriptor{ID: "triage", Handoffs: []Handoff{{Target: "ghost"}}})
	if !errors.Is(err, ErrUnknownSpecialist) {
		t.Fatalf("NewRegistry() error = %v, want ErrUnknownSpecialist", err)
	}
}

func TestRegistryRejectsMissingFallback(t *testing.T) {
	if _, err := NewRegistry("triage", Descriptor{ID: "faq"}); err == nil {
		t.Fatal("expected error for missing fallback")
	}
}

func TestRegistryRejectsDuplicateTool(t *testing.T) {
	_, err := NewRegistry("triage", Descriptor{ID: "triage", Tools: []Tool{noopTool("a"), noopTool("a")}})
	if err == nil {
		t.Fatal("expected error for duplicate tool")
	}
}

func TestRegistrySummaries(t *testing.T) {
	r, err := NewRegistry("triage",
		Descriptor{
			ID:          "triage",
			Label:       "Triage Agent",
			Description: "Routes requests.",
			Guardrails:  []Guardrail{{ID: "relevance", Name: "Relevance Guardrail"}},
			Handoffs:    []Handoff{{Target: "faq"}},
		},
		Descriptor{ID: "faq", Label: "FAQ Agent", Tools: []Tool{noopTool("faq_lookup_tool")}},
	)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	want := []Summary{
		{ID: "triage", Name: "Triage Agent", Description: "Routes requests.",
			HandoffTargets: []string{"faq"}, Tools: []string{}, Guardrails: []string{"Relevance Guardrail"}},
		{ID: "faq", Name: "FAQ Agent",
			HandoffTargets: []string{}, Tools: []string{"faq_lookup_tool"}, Guardrails: []string{}},
	}
	if diff := cmp.Diff(want, r.Summaries()); diff != "" {
		t.Fatalf("Summaries() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseArgs(t *testing.T) {
	args, err := ParseArgs(`{"seat":"12A","row":12}`)
	if err != nil {
		t.Fatalf("ParseArgs() error = %v", err)
	}
	if args.String("seat") != "12A" || args.String("row") != "12" || args.String("missing") != "" {
		t.Fatalf("unexpected args: %+v", args)
	}
	if _, err := ParseArgs("{"); err == nil {
		t.Fatal("expected decode error")
	}
}
