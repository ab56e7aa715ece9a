// Package reasoning connects specialists to the capability that decides what
// they say and do.
package reasoning

import (
	"context"

	"github.com/ashureev/skydesk/internal/domain"
)

// ActionKind tags an Action.
type ActionKind string

// Action kinds produced by a reasoning run.
const (
	ActionMessage  ActionKind = "message"
	ActionToolCall ActionKind = "tool_call"
	ActionHandoff  ActionKind = "handoff"
)

// Action is one item produced by a reasoning run, in production order.
type Action struct {
	Kind       ActionKind `json:"kind"`
	Specialist string     `json:"specialist,omitempty"`
	Text       string     `json:"text,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	Arguments  string     `json:"arguments,omitempty"`
	Target     string     `json:"target,omitempty"`
}

// Request is the input of one reasoning run.
type Request struct {
	SpecialistID string                `json:"specialist_id"`
	History      []domain.Message      `json:"history"`
	Context      domain.AirlineContext `json:"context"`
}

// Result is the output of one reasoning run. History is the canonical
// transcript and extends the request history. AwaitingToolResults asks the
// caller to run the produced tool calls and dispatch again.
type Result struct {
	History             []domain.Message `json:"history"`
	Actions             []Action         `json:"actions"`
	AwaitingToolResults bool             `json:"awaiting_tool_results"`
}

// Reasoner runs the active specialist over the conversation.
type Reasoner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// HandoffToolPrefix prefixes the synthetic tools that request a handoff.
const HandoffToolPrefix = "transfer_to_"
