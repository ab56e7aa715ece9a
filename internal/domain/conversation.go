// Package domain contains core domain types for the SkyDesk turn engine.
package domain

import (
	"time"
)

// TriageSpecialist is the specialist every conversation starts with and the
// fallback for unknown specialist ids.
const TriageSpecialist = "triage"

// Message roles stored in conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ConversationState is the persisted state of one conversation.
type ConversationState struct {
	ConversationID   string         `json:"conversation_id"`
	History          []Message      `json:"history"`
	Context          AirlineContext `json:"context"`
	ActiveSpecialist string         `json:"active_specialist"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// NewConversationState returns a fresh state owned by triage.
func NewConversationState(id string, ctx AirlineContext, now time.Time) *ConversationState {
	return &ConversationState{
		ConversationID:   id,
		History:          []Message{},
		Context:          ctx,
		ActiveSpecialist: TriageSpecialist,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Clone returns a deep copy of the state.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	out.History = CloneHistory(s.History)
	out.Context = s.Context.Clone()
	return &out
}

// Message is a role-tagged history record.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Specialist string     `json:"specialist,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// ToolCall is a tool invocation requested by an assistant message.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// CloneHistory copies a history slice, including nested tool calls.
func CloneHistory(history []Message) []Message {
	out := make([]Message, len(history))
	for i, msg := range history {
		out[i] = msg
		if msg.ToolCalls != nil {
			out[i].ToolCalls = append([]ToolCall(nil), msg.ToolCalls...)
		}
	}
	return out
}
