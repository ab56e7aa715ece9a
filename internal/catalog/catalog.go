// Package catalog defines the airline and conference specialists.
package catalog

import (
	"github.com/ashureev/skydesk/internal/domain"
	"github.com/ashureev/skydesk/internal/guardrail"
	"github.com/ashureev/skydesk/internal/specialist"
	"github.com/ashureev/skydesk/internal/tools"
)

// Specialist ids.
const (
	Triage       = domain.TriageSpecialist
	SeatBooking  = "seat_booking"
	FlightStatus = "flight_status"
	Cancellation = "cancellation"
	FAQ          = "faq"
	Schedule     = "schedule"
	Networking   = "networking"
)

var defaultGuardrails = []specialist.Guardrail{guardrail.Relevance, guardrail.Jailbreak}

// Hooks that only mark the transition.
var (
	seatBookingHook  = &specialist.Hook{Name: "on_seat_booking_handoff", Run: noGreeting}
	cancellationHook = &specialist.Hook{Name: "on_cancellation_handoff", Run: noGreeting}
	flightStatusHook = &specialist.Hook{Name: "on_flight_status_handoff", Run: noGreeting}
	scheduleHook     = &specialist.Hook{Name: "on_schedule_handoff", Run: ScheduleGreeting}
)

func noGreeting(*domain.AirlineContext) (string, error) {
	return "", nil
}

// ScheduleGreeting welcomes attendees by conference name.
func ScheduleGreeting(shared *domain.AirlineContext) (string, error) {
	if shared.IsConferenceAttendee && shared.ConferenceName != "" {
		return "Welcome to the " + shared.ConferenceName + "! I have the complete conference schedule " +
			"and can find sessions by speaker, topic, track, room or time. What would you like to know?", nil
	}
	return "I can help you with the conference schedule. I can search by speaker, topic, track, " +
		"room, date or time range. What are you looking for?", nil
}

// NewRegistry builds the specialist registry over ts.
func NewRegistry(ts *tools.Toolset) (*specialist.Registry, error) {
	back := []specialist.Handoff{{Target: Triage}}

	return specialist.NewRegistry(Triage,
		specialist.Descriptor{
			ID:          Triage,
			Label:       "Triage Agent",
			Description: "Routes customers to the right specialist.",
			Guardrails:  defaultGuardrails,
			Handoffs: []specialist.Handoff{
				{Target: FlightStatus, Hook: flightStatusHook},
				{Target: Cancellation, Hook: cancellationHook},
				{Target: FAQ},
				{Target: SeatBooking, Hook: seatBookingHook},
				{Target: Schedule, Hook: scheduleHook},
				{Target: Networking},
			},
			Instructions: triageInstructions,
		},
		specialist.Descriptor{
			ID:           SeatBooking,
			Label:        "Seat Booking Agent",
			Description:  "Changes seat assignments and shows the seat map.",
			Guardrails:   defaultGuardrails,
			Handoffs:     back,
			Tools:        []specialist.Tool{ts.UpdateSeat(), ts.DisplaySeatMap(), ts.BookingDetails()},
			Instructions: seatBookingInstructions,
		},
		specialist.Descriptor{
			ID:           FlightStatus,
			Label:        "Flight Status Agent",
			Description:  "Reports flight status, gates and delays.",
			Guardrails:   defaultGuardrails,
			Handoffs:     back,
			Tools:        []specialist.Tool{ts.FlightStatus(), ts.BookingDetails()},
			Instructions: flightStatusInstructions,
		},
		specialist.Descriptor{
			ID:           Cancellation,
			Label:        "Cancellation Agent",
			Description:  "Cancels bookings.",
			Guardrails:   defaultGuardrails,
			Handoffs:     back,
			Tools:        []specialist.Tool{ts.CancelFlight(), ts.BookingDetails()},
			Instructions: cancellationInstructions,
		},
		specialist.Descriptor{
			ID:           FAQ,
			Label:        "FAQ Agent",
			Description:  "Answers questions about airline policies and services.",
			Guardrails:   defaultGuardrails,
			Handoffs:     back,
			Tools:        []specialist.Tool{ts.FAQLookup()},
			Instructions: faqInstructions,
		},
		specialist.Descriptor{
			ID:          Schedule,
			Label:       "Schedule Agent",
			Description: "Answers questions about the conference schedule, speakers, tracks and rooms.",
			Guardrails:  defaultGuardrails,
			Handoffs:    back,
			Tools: []specialist.Tool{
				ts.ConferenceSessions(), ts.AllSpeakers(), ts.AllTracks(), ts.AllRooms(),
			},
			Instructions: scheduleInstructions,
		},
		specialist.Descriptor{
			ID:           Networking,
			Label:        "Networking Agent",
			Description:  "Connects attendees with businesses in the conference directory.",
			Guardrails:   defaultGuardrails,
			Handoffs:     back,
			Tools:        []specialist.Tool{ts.SearchBusinesses(), ts.DisplayBusinessForm()},
			Instructions: networkingInstructions,
		},
	)
}
