package catalog

import (
	"strings"
	"testing"

	"github.com/ashureev/skydesk/internal/domain"
	"github.com/ashureev/skydesk/internal/tools"
)

func TestRegistryShape(t *testing.T) {
	r, err := NewRegistry(tools.New(nil))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	triage, ok := r.Get(Triage)
	if !ok {
		t.Fatal("triage missing")
	}
	if len(triage.Handoffs) != 6 {
		t.Fatalf("triage handoffs = %d, want 6", len(triage.Handoffs))
	}

	for _, d := range r.All() {
		if len(d.Guardrails) != 2 {
			t.Errorf("%s guardrails = %d, want 2", d.ID, len(d.Guardrails))
		}
		if d.Instructions == nil {
			t.Errorf("%s has no instructions", d.ID)
		}
		if d.ID == Triage {
			continue
		}
		if _, ok := d.Handoff(Triage); !ok {
			t.Errorf("%s cannot hand back to triage", d.ID)
		}
		if _, ok := d.Handoff(Cancellation); ok {
			t.Errorf("%s may hand off directly to cancellation", d.ID)
		}
	}

	seat, _ := r.Get(SeatBooking)
	if tool, ok := seat.Tool("display_seat_map"); !ok || !tool.Directive {
		t.Fatal("seat booking lacks the seat map directive")
	}
	if h, _ := triage.Handoff(Schedule); h.Hook == nil || h.Hook.Name != "on_schedule_handoff" {
		t.Fatalf("schedule handoff hook = %+v", h.Hook)
	}
	if h, _ := triage.Handoff(FAQ); h.Hook != nil {
		t.Fatal("faq handoff should have no hook")
	}
}

func TestScheduleGreeting(t *testing.T) {
	got, err := ScheduleGreeting(&domain.AirlineContext{IsConferenceAttendee: true, ConferenceName: "Aviation Tech Summit 2025"})
	if err != nil {
		t.Fatalf("ScheduleGreeting() error = %v", err)
	}
	if !strings.HasPrefix(got, "Welcome to the Aviation Tech Summit 2025!") {
		t.Fatalf("attendee greeting = %q", got)
	}

	got, _ = ScheduleGreeting(&domain.AirlineContext{})
	if !strings.HasPrefix(got, "I can help you with the conference schedule.") {
		t.Fatalf("guest greeting = %q", got)
	}
}

func TestInstructionsReflectContext(t *testing.T) {
	got := seatBookingInstructions(domain.AirlineContext{ConfirmationNumber: "LL0EZ6"})
	if !strings.Contains(got, "confirmation LL0EZ6, seat [unknown]") {
		t.Fatalf("seat instructions = %q", got)
	}
	got = scheduleInstructions(domain.AirlineContext{PassengerName: "Ava", IsConferenceAttendee: true})
	if !strings.Contains(got, "Ava is registered as an attendee.") || !strings.Contains(got, domain.DefaultConferenceName) {
		t.Fatalf("schedule instructions = %q", got)
	}
}
