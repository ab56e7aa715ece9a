// Package guardrail runs input safety checks before a specialist executes.
package guardrail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/skydesk/internal/domain"
	"github.com/ashureev/skydesk/internal/specialist"
	"golang.org/x/sync/errgroup"
)

// PassedReasoning is reported for passing checks that gave no reasoning.
const PassedReasoning = "Passed (no tripwire triggered)"

// AssumedReasoning is reported for checks that did not run this turn.
const AssumedReasoning = "Not evaluated this turn (assumed passing)"

// UnavailableReasoning is reported when a report-only check could not run.
const UnavailableReasoning = "Not evaluated: checker unavailable"

// Verdict is a single check's decision.
type Verdict struct {
	Passed    bool   `json:"passed"`
	Reasoning string `json:"reasoning"`
}

// Checker evaluates one guardrail against the latest user message.
type Checker interface {
	Check(ctx context.Context, guard specialist.Guardrail, input string, shared domain.AirlineContext) (Verdict, error)
}

// Result is the reported outcome of one check.
type Result struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Input     string    `json:"input"`
	Reasoning string    `json:"reasoning"`
	Passed    bool      `json:"passed"`
	Timestamp time.Time `json:"timestamp"`
}

// Status tags an Outcome.
type Status int

// Outcome statuses.
const (
	Continue Status = iota
	Tripped
)

func (s Status) String() string {
	if s == Tripped {
		return "tripped"
	}
	return "continue"
}

// Outcome is the result of evaluating a set of checks. When Status is
// Tripped, Trip holds the first failing check in registration order.
type Outcome struct {
	Status  Status
	Trip    Result
	Results []Result
}

// ReportMode selects how checks of a specialist that became active during the
// turn are reported.
type ReportMode string

const (
	// ReportAssume reports checks that did not run as passing.
	ReportAssume ReportMode = "assume"
	// ReportEvaluate runs those checks against the same input, for reporting only.
	ReportEvaluate ReportMode = "evaluate"
)

// ParseReportMode validates a configured mode.
func ParseReportMode(s string) (ReportMode, error) {
	switch m := ReportMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ReportAssume, ReportEvaluate:
		return m, nil
	case "":
		return ReportAssume, nil
	default:
		return "", fmt.Errorf("unknown guardrail report mode %q", s)
	}
}

// Pipeline evaluates guardrails with a Checker.
type Pipeline struct {
	checker Checker
	mode    ReportMode
	logger  *slog.Logger
	now     func() time.Time
}

// NewPipeline creates a pipeline.
func NewPipeline(checker Checker, mode ReportMode, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if mode == "" {
		mode = ReportAssume
	}
	return &Pipeline{checker: checker, mode: mode, logger: logger, now: time.Now}
}

// Mode returns the configured report mode.
func (p *Pipeline) Mode() ReportMode {
	return p.mode
}

// Evaluate runs every check concurrently against input. Every outcome is
// reported. A checker error fails the whole evaluation.
func (p *Pipeline) Evaluate(ctx context.Context, checks []specialist.Guardrail, input string, shared domain.AirlineContext) (Outcome, error) {
	results := make([]Result, len(checks))

	g, gctx := errgroup.WithContext(ctx)
	for i, guard := range checks {
		g.Go(func() error {
			verdict, err := p.checker.Check(gctx, guard, input, shared)
			if err != nil {
				return fmt.Errorf("guardrail %s: %w", guard.ID, err)
			}
			results[i] = p.result(guard, input, verdict)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Outcome{}, err
	}

	out := Outcome{Status: Continue, Results: results}
	for _, r := range results {
		if !r.Passed {
			out.Status = Tripped
			out.Trip = r
			p.logger.Info("Guardrail tripped", "guardrail", r.ID, "reasoning", r.Reasoning)
			break
		}
	}
	return out, nil
}

// Report builds the check listing for the specialist active after the turn.
// Checks already evaluated this turn reuse their result; the rest are either
// assumed passing or evaluated for reporting, depending on the mode.
func (p *Pipeline) Report(ctx context.Context, checks []specialist.Guardrail, input string, shared domain.AirlineContext, evaluated []Result) []Result {
	byID := make(map[string]Result, len(evaluated))
	for _, r := range evaluated {
		byID[r.ID] = r
	}

	out := make([]Result, 0, len(checks))
	for _, guard := range checks {
		if r, ok := byID[guard.ID]; ok {
			out = append(out, r)
			continue
		}
		reasoning := AssumedReasoning
		if p.mode == ReportEvaluate {
			verdict, err := p.checker.Check(ctx, guard, input, shared)
			if err == nil {
				out = append(out, p.result(guard, input, verdict))
				continue
			}
			p.logger.Warn("Report-only guardrail check failed", "guardrail", guard.ID, "error", err)
			reasoning = UnavailableReasoning
		}
		out = append(out, Result{
			ID:        guard.ID,
			Name:      guard.Name,
			Input:     input,
			Reasoning: reasoning,
			Passed:    true,
			Timestamp: p.now(),
		})
	}
	return out
}

func (p *Pipeline) result(guard specialist.Guardrail, input string, v Verdict) Result {
	reasoning := strings.TrimSpace(v.Reasoning)
	if reasoning == "" && v.Passed {
		reasoning = PassedReasoning
	}
	return Result{
		ID:        guard.ID,
		Name:      guard.Name,
		Input:     input,
		Reasoning: reasoning,
		Passed:    v.Passed,
		Timestamp: p.now(),
	}
}
