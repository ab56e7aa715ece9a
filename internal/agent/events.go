package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/skydesk/internal/domain"
	"github.com/ashureev/skydesk/internal/guardrail"
)

// EventType categorizes turn events.
type EventType string

const (
	// EventInfo is an informational notice.
	EventInfo EventType = "info"
	// EventMessage is a specialist message emission.
	EventMessage EventType = "message"
	// EventHandoff is a change of active specialist.
	EventHandoff EventType = "handoff"
	// EventHookCall brackets the start of a transition hook.
	EventHookCall EventType = "hook_call"
	// EventHookOutput brackets the completion of a transition hook.
	EventHookOutput EventType = "hook_output"
	// EventToolCall is a tool invocation request.
	EventToolCall EventType = "tool_call"
	// EventToolOutput is a tool invocation result.
	EventToolOutput EventType = "tool_output"
	// EventContextUpdate is a field-level context diff.
	EventContextUpdate EventType = "context_update"
	// EventGuardrailRefusal is a refused turn.
	EventGuardrailRefusal EventType = "guardrail_refusal"
)

// Event is one immutable entry of a turn's trace. Sequence orders events;
// Timestamp is advisory.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Specialist string         `json:"specialist"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Sequence   int64          `json:"sequence"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Recorder turns the side effects of one turn into ordered events.
// A Recorder is owned by a single turn and is not safe for concurrent use.
type Recorder struct {
	seq    int64
	now    func() time.Time
	newID  func() string
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{now: now, newID: uuid.NewString}
}

// Events returns the recorded events in emission order.
func (r *Recorder) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	return len(r.events)
}

func (r *Recorder) emit(typ EventType, specialistID, content string, metadata map[string]any) Event {
	r.seq++
	ev := Event{
		ID:         r.newID(),
		Type:       typ,
		Specialist: specialistID,
		Content:    content,
		Metadata:   metadata,
		Sequence:   r.seq,
		Timestamp:  r.now(),
	}
	r.events = append(r.events, ev)
	return ev
}

// Info records an informational notice.
func (r *Recorder) Info(content string) Event {
	return r.emit(EventInfo, SystemSpecialist, content, nil)
}

// Message records a specialist message.
func (r *Recorder) Message(specialistID, text string) Event {
	return r.emit(EventMessage, specialistID, text, nil)
}

// Handoff records a change of active specialist.
func (r *Recorder) Handoff(source, target string) Event {
	return r.emit(EventHandoff, source, fmt.Sprintf("Handoff from %s to %s", source, target), map[string]any{
		"source": source,
		"target": target,
	})
}

// HookCall records the start of a transition hook.
func (r *Recorder) HookCall(target, hook string) Event {
	return r.emit(EventHookCall, target, "Calling handoff hook: "+hook, map[string]any{"hook": hook})
}

// HookOutput records a completed transition hook.
func (r *Recorder) HookOutput(target, hook, greeting string) Event {
	meta := map[string]any{"hook": hook}
	if greeting != "" {
		meta["greeting"] = greeting
	}
	return r.emit(EventHookOutput, target, fmt.Sprintf("Handoff hook %s completed.", hook), meta)
}

// ToolCall records a tool invocation request.
func (r *Recorder) ToolCall(specialistID, tool, args string) Event {
	return r.emit(EventToolCall, specialistID, "Calling tool: "+tool, map[string]any{
		"tool_name": tool,
		"tool_args": args,
	})
}

// ToolOutput records a tool result. Failed tools carry the error text.
func (r *Recorder) ToolOutput(specialistID, tool, result string, toolErr error) Event {
	meta := map[string]any{
		"tool_name":   tool,
		"tool_result": result,
	}
	if toolErr != nil {
		meta["error"] = toolErr.Error()
	}
	return r.emit(EventToolOutput, specialistID, fmt.Sprintf("Tool '%s' output: %s", tool, result), meta)
}

// ContextUpdate records a non-empty context diff with its full new values.
func (r *Recorder) ContextUpdate(specialistID string, diff domain.ContextDiff) Event {
	return r.emit(EventContextUpdate, specialistID, "Context updated: "+strings.Join(diff.Keys, ", "), map[string]any{
		"keys":    diff.Keys,
		"changes": diff.Changes,
	})
}

// GuardrailRefusal records a refused turn.
func (r *Recorder) GuardrailRefusal(trip guardrail.Result, refusal string) Event {
	return r.emit(EventGuardrailRefusal, SystemSpecialist, refusal, map[string]any{
		"guardrail_id":   trip.ID,
		"guardrail_name": trip.Name,
		"reasoning":      trip.Reasoning,
	})
}
