package domain

import "time"

// BookingStatusCancelled marks a cancelled booking.
const BookingStatusCancelled = "Cancelled"

// Customer is an airline customer account.
type Customer struct {
	ID                   string `json:"id"`
	AccountNumber        string `json:"account_number"`
	Name                 string `json:"name"`
	Email                string `json:"email"`
	IsConferenceAttendee bool   `json:"is_conference_attendee"`
	ConferenceName       string `json:"conference_name,omitempty"`
	RegistrationID       string `json:"registration_id,omitempty"`
}

// Flight is a scheduled flight and its live status.
type Flight struct {
	ID                 string    `json:"id"`
	FlightNumber       string    `json:"flight_number"`
	Origin             string    `json:"origin"`
	Destination        string    `json:"destination"`
	ScheduledDeparture time.Time `json:"scheduled_departure"`
	CurrentStatus      string    `json:"current_status"`
	Gate               string    `json:"gate,omitempty"`
	Terminal           string    `json:"terminal,omitempty"`
	DelayMinutes       int       `json:"delay_minutes,omitempty"`
}

// Booking ties a customer to a seat on a flight.
type Booking struct {
	ID                 string    `json:"id"`
	ConfirmationNumber string    `json:"confirmation_number"`
	CustomerID         string    `json:"customer_id"`
	FlightID           string    `json:"flight_id"`
	SeatNumber         string    `json:"seat_number"`
	Status             string    `json:"booking_status"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// BookingDetails is a booking joined with its customer and flight.
type BookingDetails struct {
	Booking  Booking  `json:"booking"`
	Customer Customer `json:"customer"`
	Flight   Flight   `json:"flight"`
}

// UserProfile is a conference registration keyed by registration id.
type UserProfile struct {
	RegistrationID string         `json:"registration_id"`
	Details        map[string]any `json:"details"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ConferenceSession is one entry of the conference schedule.
type ConferenceSession struct {
	ID          string `json:"id"`
	SpeakerName string `json:"speaker_name"`
	Topic       string `json:"topic"`
	Room        string `json:"conference_room_name"`
	Track       string `json:"track_name"`
	Date        string `json:"conference_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Description string `json:"description,omitempty"`
}

// SessionFilter narrows a schedule query. Empty fields match everything.
// Date is YYYY-MM-DD; StartAfter and EndBefore are HH:MM.
type SessionFilter struct {
	Speaker    string
	Topic      string
	Room       string
	Track      string
	Date       string
	StartAfter string
	EndBefore  string
}

// Business is a networking directory entry.
type Business struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Industry     string `json:"industry"`
	Description  string `json:"description,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	Location     string `json:"location,omitempty"`
}
