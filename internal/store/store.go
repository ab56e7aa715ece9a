// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/skydesk/internal/domain"
)

// ConversationRepository is the durable half of the conversation state store.
type ConversationRepository interface {
	// LoadConversation returns the stored state, or nil if none exists.
	LoadConversation(ctx context.Context, conversationID string) (*domain.ConversationState, error)

	// UpsertConversation creates or replaces the stored state.
	UpsertConversation(ctx context.Context, state *domain.ConversationState) error
}

// LookupRepository serves the data tools and the profile loader read and write.
type LookupRepository interface {
	// GetUserProfile returns the registration profile, or nil if none exists.
	GetUserProfile(ctx context.Context, registrationID string) (*domain.UserProfile, error)

	// GetCustomerByAccount returns the customer, or nil if none exists.
	GetCustomerByAccount(ctx context.Context, accountNumber string) (*domain.Customer, error)

	// ListCustomerBookings returns every booking of a customer.
	ListCustomerBookings(ctx context.Context, customerID string) ([]domain.BookingSummary, error)

	// GetBookingDetails resolves a confirmation number, or nil if unknown.
	GetBookingDetails(ctx context.Context, confirmationNumber string) (*domain.BookingDetails, error)

	// UpdateSeat moves a booking to a new seat.
	UpdateSeat(ctx context.Context, confirmationNumber, seatNumber string) error

	// CancelBooking marks a booking as cancelled.
	CancelBooking(ctx context.Context, confirmationNumber string) error

	// GetFlightStatus returns the flight, or nil if unknown.
	GetFlightStatus(ctx context.Context, flightNumber string) (*domain.Flight, error)

	// ListConferenceSessions returns sessions matching the filter ordered by start time.
	ListConferenceSessions(ctx context.Context, filter domain.SessionFilter) ([]domain.ConferenceSession, error)

	// ListDistinctScheduleValues returns the sorted distinct values of a schedule column.
	ListDistinctScheduleValues(ctx context.Context, column ScheduleColumn) ([]string, error)

	// SearchBusinesses returns directory entries matching the query and industry.
	SearchBusinesses(ctx context.Context, query, industry string) ([]domain.Business, error)
}

// ScheduleColumn selects a schedule attribute for distinct listings.
type ScheduleColumn string

// Schedule columns that can be listed.
const (
	ScheduleSpeakers ScheduleColumn = "speaker_name"
	ScheduleTracks   ScheduleColumn = "track_name"
	ScheduleRooms    ScheduleColumn = "conference_room_name"
)

// Repository is the full durable store.
type Repository interface {
	ConversationRepository
	LookupRepository

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
