package agent

import (
	"testing"
	"time"
)

func TestRecorderSequencesEvents(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rec := NewRecorder(func() time.Time { return now })

	rec.Info(ConversationStarted)
	rec.Message("triage", "Hello")
	rec.ToolCall("triage", "faq_lookup_tool", `{"question":"bags"}`)

	if rec.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", rec.Len())
	}
	events := rec.Events()
	for i, ev := range events {
		if ev.Sequence != int64(i+1) || ev.ID == "" || !ev.Timestamp.Equal(now) {
			t.Fatalf("event %d = %+v", i, ev)
		}
	}
	if events[1].Type != EventMessage || events[1].Specialist != "triage" {
		t.Fatalf("message event = %+v", events[1])
	}
}
