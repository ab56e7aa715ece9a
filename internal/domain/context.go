package domain

import (
	"encoding/json"
	"reflect"
	"sort"
)

// DefaultConferenceName is used for attendees whose profile does not name one.
const DefaultConferenceName = "Aviation Tech Summit 2025"

// AirlineContext is the shared, typed record carried across turns.
// Every field is optional; the zero value is the default context.
type AirlineContext struct {
	PassengerName        string           `json:"passenger_name,omitempty"`
	ConfirmationNumber   string           `json:"confirmation_number,omitempty"`
	SeatNumber           string           `json:"seat_number,omitempty"`
	FlightNumber         string           `json:"flight_number,omitempty"`
	AccountNumber        string           `json:"account_number,omitempty"`
	CustomerID           string           `json:"customer_id,omitempty"`
	BookingID            string           `json:"booking_id,omitempty"`
	FlightID             string           `json:"flight_id,omitempty"`
	CustomerEmail        string           `json:"customer_email,omitempty"`
	CustomerBookings     []BookingSummary `json:"customer_bookings,omitempty"`
	IsConferenceAttendee bool             `json:"is_conference_attendee"`
	ConferenceName       string           `json:"conference_name,omitempty"`
	RegistrationID       string           `json:"registration_id,omitempty"`
	UserDetails          map[string]any   `json:"user_details,omitempty"`
}

// BookingSummary is the booking view kept in context.
type BookingSummary struct {
	ID                 string `json:"id"`
	ConfirmationNumber string `json:"confirmation_number"`
	FlightNumber       string `json:"flight_number,omitempty"`
	SeatNumber         string `json:"seat_number,omitempty"`
	Status             string `json:"status,omitempty"`
}

// Clone returns a deep copy of the context.
func (c AirlineContext) Clone() AirlineContext {
	out := c
	if c.CustomerBookings != nil {
		out.CustomerBookings = append([]BookingSummary(nil), c.CustomerBookings...)
	}
	if c.UserDetails != nil {
		out.UserDetails = make(map[string]any, len(c.UserDetails))
		for k, v := range c.UserDetails {
			out.UserDetails[k] = v
		}
	}
	return out
}

// Merge copies every field set in patch onto c. Fields absent from patch keep
// their current value.
func (c *AirlineContext) Merge(patch AirlineContext) {
	setString(&c.PassengerName, patch.PassengerName)
	setString(&c.ConfirmationNumber, patch.ConfirmationNumber)
	setString(&c.SeatNumber, patch.SeatNumber)
	setString(&c.FlightNumber, patch.FlightNumber)
	setString(&c.AccountNumber, patch.AccountNumber)
	setString(&c.CustomerID, patch.CustomerID)
	setString(&c.BookingID, patch.BookingID)
	setString(&c.FlightID, patch.FlightID)
	setString(&c.CustomerEmail, patch.CustomerEmail)
	setString(&c.ConferenceName, patch.ConferenceName)
	setString(&c.RegistrationID, patch.RegistrationID)
	if patch.CustomerBookings != nil {
		c.CustomerBookings = append([]BookingSummary(nil), patch.CustomerBookings...)
	}
	if patch.IsConferenceAttendee {
		c.IsConferenceAttendee = true
	}
	if patch.UserDetails != nil {
		if c.UserDetails == nil {
			c.UserDetails = make(map[string]any, len(patch.UserDetails))
		}
		for k, v := range patch.UserDetails {
			c.UserDetails[k] = v
		}
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Fields returns the context as a JSON-shaped map keyed by field name.
func (c AirlineContext) Fields() map[string]any {
	raw, err := json.Marshal(c)
	if err != nil {
		return map[string]any{}
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return map[string]any{}
	}
	return fields
}

// ContextDiff is a field-level difference between two contexts.
type ContextDiff struct {
	Keys    []string
	Changes map[string]any
}

// Empty reports whether nothing changed.
func (d ContextDiff) Empty() bool {
	return len(d.Keys) == 0
}

// DiffContext compares two contexts field by field. Changes holds the new value
// of every changed field; a field that was cleared maps to nil.
func DiffContext(before, after AirlineContext) ContextDiff {
	old := before.Fields()
	cur := after.Fields()

	diff := ContextDiff{Changes: map[string]any{}}
	for k, v := range cur {
		if prev, ok := old[k]; !ok || !reflect.DeepEqual(prev, v) {
			diff.Changes[k] = v
		}
	}
	for k := range old {
		if _, ok := cur[k]; !ok {
			diff.Changes[k] = nil
		}
	}
	for k := range diff.Changes {
		diff.Keys = append(diff.Keys, k)
	}
	sort.Strings(diff.Keys)
	return diff
}
