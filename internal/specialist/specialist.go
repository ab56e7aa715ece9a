// Package specialist defines specialist descriptors and the read-only registry
// the turn orchestrator resolves them from.
package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ashureev/skydesk/internal/domain"
)

// Guardrail names a safety check a specialist requires on its input.
type Guardrail struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ParamType is the JSON type of a tool parameter.
type ParamType string

// Supported parameter types.
const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamBoolean ParamType = "boolean"
)

// Param describes one tool argument.
type Param struct {
	Type     ParamType
	Desc     string
	Required bool
}

// Args are the decoded arguments of a tool invocation.
type Args map[string]any

// ParseArgs decodes a JSON argument object. An empty string yields empty Args.
func ParseArgs(raw string) (Args, error) {
	args := Args{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}
	return args, nil
}

// String returns a string argument, accepting numbers as well.
func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// ToolFunc runs a tool. It may mutate shared as a side effect and returns the
// result text shown to the specialist.
type ToolFunc func(ctx context.Context, shared *domain.AirlineContext, args Args) (string, error)

// Tool is a callable capability bound to a specialist.
type Tool struct {
	Name        string
	Description string
	Params      map[string]Param
	// Directive marks tools whose result is a UI sentinel that is also
	// surfaced to the client as a message.
	Directive bool
	Run       ToolFunc
}

// HookFunc runs on entry to a handoff target. It returns an optional greeting.
type HookFunc func(shared *domain.AirlineContext) (string, error)

// Hook is a named transition hook.
type Hook struct {
	Name string
	Run  HookFunc
}

// Handoff is an allowed transfer target with an optional hook.
type Handoff struct {
	Target string
	Hook   *Hook
}

// InstructionsFunc renders a specialist's instructions for the current context.
type InstructionsFunc func(shared domain.AirlineContext) string

// Descriptor is the static description of one specialist.
type Descriptor struct {
	ID           string
	Label        string
	Description  string
	Guardrails   []Guardrail
	Handoffs     []Handoff
	Tools        []Tool
	Instructions InstructionsFunc
}

// Handoff returns the handoff entry for target if it is allowed.
func (d *Descriptor) Handoff(target string) (Handoff, bool) {
	for _, h := range d.Handoffs {
		if h.Target == target {
			return h, true
		}
	}
	return Handoff{}, false
}

// Tool returns the named tool if the specialist owns it.
func (d *Descriptor) Tool(name string) (Tool, bool) {
	for _, t := range d.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// Summary is the client-facing listing of a specialist.
type Summary struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	HandoffTargets []string `json:"handoff_targets"`
	Tools          []string `json:"tools"`
	Guardrails     []string `json:"guardrails"`
}

// Summary builds the listing entry for d.
func (d *Descriptor) Summary() Summary {
	s := Summary{
		ID:             d.ID,
		Name:           d.Label,
		Description:    d.Description,
		HandoffTargets: make([]string, 0, len(d.Handoffs)),
		Tools:          make([]string, 0, len(d.Tools)),
		Guardrails:     make([]string, 0, len(d.Guardrails)),
	}
	for _, h := range d.Handoffs {
		s.HandoffTargets = append(s.HandoffTargets, h.Target)
	}
	for _, t := range d.Tools {
		s.Tools = append(s.Tools, t.Name)
	}
	for _, g := range d.Guardrails {
		s.Guardrails = append(s.Guardrails, g.Name)
	}
	return s
}
