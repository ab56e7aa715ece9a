// Package agent implements the turn orchestrator that routes user messages
// through guardrails, specialists and handoffs.
package agent

import (
	"errors"
	"time"

	"github.com/ashureev/skydesk/internal/domain"
	"github.com/ashureev/skydesk/internal/guardrail"
	"github.com/ashureev/skydesk/internal/specialist"
)

var (
	// ErrTurnFailed is returned when a turn hits a fatal error. Details are
	// logged, never returned.
	ErrTurnFailed = errors.New("turn failed")
	// ErrTurnInProgress is returned in reject mode when the conversation
	// already has a turn in flight.
	ErrTurnInProgress = errors.New("a turn is already in progress for this conversation")
	// ErrEmptyMessage is returned for blank messages on existing conversations.
	ErrEmptyMessage = errors.New("message is required")
)

// Canned user-facing texts.
const (
	RefusalMessage = "I can only assist with airline travel services, conference information, and business " +
		"networking. Your message was flagged as outside my area of expertise. Please ask about flights, " +
		"bookings, seat changes, cancellations, conference schedules, or business connections."
	GenericErrorMessage = "An unexpected internal error occurred. Please try again or contact support."
	ConversationStarted = "Conversation started."
)

// SystemSpecialist attributes events that no specialist produced.
const SystemSpecialist = "system"

// TurnRequest is one inbound user turn.
type TurnRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	IdentityToken  string `json:"identity_token,omitempty"`
}

// MessageResponse is a user-visible output of a turn.
type MessageResponse struct {
	Content    string `json:"content"`
	Specialist string `json:"specialist"`
}

// CustomerDetails is the identity block shown next to the conversation.
type CustomerDetails struct {
	Name                 string `json:"name,omitempty"`
	AccountNumber        string `json:"account_number,omitempty"`
	Email                string `json:"email,omitempty"`
	IsConferenceAttendee bool   `json:"is_conference_attendee"`
	ConferenceName       string `json:"conference_name,omitempty"`
	RegistrationID       string `json:"registration_id"`
}

// CustomerInfo is present when the conversation carries a registration id.
type CustomerInfo struct {
	Customer       CustomerDetails         `json:"customer"`
	Bookings       []domain.BookingSummary `json:"bookings"`
	CurrentBooking *domain.BookingSummary  `json:"current_booking,omitempty"`
}

// TurnResult is the complete response of one turn.
type TurnResult struct {
	ConversationID   string               `json:"conversation_id"`
	ActiveSpecialist string               `json:"active_specialist"`
	Messages         []MessageResponse    `json:"messages"`
	Events           []Event              `json:"events"`
	Context          map[string]any       `json:"context"`
	Specialists      []specialist.Summary `json:"specialists"`
	GuardrailChecks  []guardrail.Result   `json:"guardrail_checks"`
	CustomerInfo     *CustomerInfo        `json:"customer_info,omitempty"`
	CompletedAt      time.Time            `json:"completed_at"`
}

func newCustomerInfo(c domain.AirlineContext) *CustomerInfo {
	if c.RegistrationID == "" {
		return nil
	}
	info := &CustomerInfo{
		Customer: CustomerDetails{
			Name:                 c.PassengerName,
			AccountNumber:        c.AccountNumber,
			Email:                c.CustomerEmail,
			IsConferenceAttendee: c.IsConferenceAttendee,
			ConferenceName:       c.ConferenceName,
			RegistrationID:       c.RegistrationID,
		},
		Bookings: append([]domain.BookingSummary{}, c.CustomerBookings...),
	}
	for i := range info.Bookings {
		b := info.Bookings[i]
		if c.ConfirmationNumber != "" && b.ConfirmationNumber == c.ConfirmationNumber {
			info.CurrentBooking = &b
			break
		}
	}
	return info
}
