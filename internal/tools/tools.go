// Package tools implements the data tools specialists can call.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/skydesk/internal/domain"
	"github.com/ashureev/skydesk/internal/specialist"
	"github.com/ashureev/skydesk/internal/store"
)

// UI sentinels returned by directive tools.
const (
	SeatMapDirective      = "DISPLAY_SEAT_MAP"
	BusinessFormDirective = "DISPLAY_BUSINESS_FORM"
)

// Toolset builds tools over a lookup repository.
type Toolset struct {
	repo store.LookupRepository
}

// New creates a toolset.
func New(repo store.LookupRepository) *Toolset {
	return &Toolset{repo: repo}
}

func str(desc string, required bool) specialist.Param {
	return specialist.Param{Type: specialist.ParamString, Desc: desc, Required: required}
}

// UpdateSeat changes the seat on a booking and records it in context.
func (t *Toolset) UpdateSeat() specialist.Tool {
	return specialist.Tool{
		Name:        "update_seat",
		Description: "Update the seat for a given confirmation number.",
		Params: map[string]specialist.Param{
			"confirmation_number": str("The booking confirmation number.", true),
			"new_seat":            str("The seat to move to, e.g. 12A.", true),
		},
		Run: func(ctx context.Context, shared *domain.AirlineContext, args specialist.Args) (string, error) {
			confirmation := strings.ToUpper(strings.TrimSpace(args.String("confirmation_number")))
			seat := strings.ToUpper(strings.TrimSpace(args.String("new_seat")))
			if confirmation == "" || seat == "" {
				return "A confirmation number and a seat are both required to change seats.", nil
			}

			err := t.repo.UpdateSeat(ctx, confirmation, seat)
			if errors.Is(err, store.ErrBookingNotFound) {
				return fmt.Sprintf("Seat update failed: no booking matches confirmation number %s. "+
					"Please check the number and try again.", confirmation), nil
			}
			if err != nil {
				return "", fmt.Errorf("update seat: %w", err)
			}

			shared.ConfirmationNumber = confirmation
			shared.SeatNumber = seat
			return fmt.Sprintf("Seat updated to %s for confirmation number %s.", seat, confirmation), nil
		},
	}
}

// DisplaySeatMap asks the client to render an interactive seat map.
func (t *Toolset) DisplaySeatMap() specialist.Tool {
	return specialist.Tool{
		Name:        "display_seat_map",
		Description: "Show an interactive seat map so the customer can pick a seat.",
		Directive:   true,
		Run: func(context.Context, *domain.AirlineContext, specialist.Args) (string, error) {
			return SeatMapDirective, nil
		},
	}
}

// BookingDetails loads a booking and copies its identifiers into context.
func (t *Toolset) BookingDetails() specialist.Tool {
	return specialist.Tool{
		Name:        "get_booking_details",
		Description: "Look up booking details by confirmation number.",
		Params: map[string]specialist.Param{
			"confirmation_number": str("The booking confirmation number.", true),
		},
		Run: func(ctx context.Context, shared *domain.AirlineContext, args specialist.Args) (string, error) {
			confirmation := strings.ToUpper(strings.TrimSpace(args.String("confirmation_number")))
			if confirmation == "" {
				return "Please provide a confirmation number.", nil
			}

			d, err := t.repo.GetBookingDetails(ctx, confirmation)
			if err != nil {
				return "", fmt.Errorf("get booking details: %w", err)
			}
			if d == nil {
				return fmt.Sprintf("No booking found with confirmation number %s. "+
					"Please double-check the number and try again.", confirmation), nil
			}

			shared.ConfirmationNumber = d.Booking.ConfirmationNumber
			shared.SeatNumber = d.Booking.SeatNumber
			shared.BookingID = d.Booking.ID
			shared.FlightID = d.Booking.FlightID
			shared.CustomerID = d.Booking.CustomerID
			shared.FlightNumber = d.Flight.FlightNumber
			if d.Customer.Name != "" {
				shared.PassengerName = d.Customer.Name
			}
			if d.Customer.AccountNumber != "" {
				shared.AccountNumber = d.Customer.AccountNumber
			}
			if d.Customer.Email != "" {
				shared.CustomerEmail = d.Customer.Email
			}

			var b strings.Builder
			b.WriteString("Booking details\n")
			fmt.Fprintf(&b, "Confirmation: %s\n", d.Booking.ConfirmationNumber)
			fmt.Fprintf(&b, "Passenger: %s\n", d.Customer.Name)
			fmt.Fprintf(&b, "Flight: %s\n", d.Flight.FlightNumber)
			fmt.Fprintf(&b, "Seat: %s\n", d.Booking.SeatNumber)
			fmt.Fprintf(&b, "Status: %s\n", d.Booking.Status)
			if d.Flight.Origin != "" && d.Flight.Destination != "" {
				fmt.Fprintf(&b, "Route: %s -> %s\n", d.Flight.Origin, d.Flight.Destination)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	}
}

// FlightStatus reports the live status of a flight.
func (t *Toolset) FlightStatus() specialist.Tool {
	return specialist.Tool{
		Name:        "flight_status_tool",
		Description: "Look up the current status of a flight by flight number.",
		Params: map[string]specialist.Param{
			"flight_number": str("The flight number, e.g. FLT-123.", true),
		},
		Run: func(ctx context.Context, shared *domain.AirlineContext, args specialist.Args) (string, error) {
			number := strings.ToUpper(strings.TrimSpace(args.String("flight_number")))
			if number == "" {
				return "Please provide a flight number.", nil
			}

			f, err := t.repo.GetFlightStatus(ctx, number)
			if err != nil {
				return "", fmt.Errorf("get flight status: %w", err)
			}
			if f == nil {
				return fmt.Sprintf("Flight %s was not found. Flight numbers look like FLT-100.", number), nil
			}

			shared.FlightNumber = f.FlightNumber
			shared.FlightID = f.ID

			var b strings.Builder
			fmt.Fprintf(&b, "Flight %s status\n", f.FlightNumber)
			fmt.Fprintf(&b, "Route: %s -> %s\n", f.Origin, f.Destination)
			fmt.Fprintf(&b, "Status: %s\n", f.CurrentStatus)
			if !f.ScheduledDeparture.IsZero() {
				fmt.Fprintf(&b, "Scheduled departure: %s\n", f.ScheduledDeparture.Format("03:04 PM on January 02, 2006"))
			}
			if f.Gate != "" {
				fmt.Fprintf(&b, "Gate: %s\n", f.Gate)
			}
			if f.Terminal != "" {
				fmt.Fprintf(&b, "Terminal: %s\n", f.Terminal)
			}
			if f.DelayMinutes > 0 {
				fmt.Fprintf(&b, "Delay: %d minutes\n", f.DelayMinutes)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	}
}

// CancelFlight cancels the booking identified by the context's confirmation number.
func (t *Toolset) CancelFlight() specialist.Tool {
	return specialist.Tool{
		Name:        "cancel_flight",
		Description: "Cancel the booking for the confirmation number already in context.",
		Run: func(ctx context.Context, shared *domain.AirlineContext, _ specialist.Args) (string, error) {
			confirmation := shared.ConfirmationNumber
			if confirmation == "" {
				return "I need your confirmation number before I can cancel a booking.", nil
			}

			err := t.repo.CancelBooking(ctx, confirmation)
			if errors.Is(err, store.ErrBookingNotFound) {
				return fmt.Sprintf("Cancellation failed: no booking matches confirmation number %s.", confirmation), nil
			}
			if err != nil {
				return "", fmt.Errorf("cancel booking: %w", err)
			}

			for i := range shared.CustomerBookings {
				if shared.CustomerBookings[i].ConfirmationNumber == confirmation {
					shared.CustomerBookings[i].Status = domain.BookingStatusCancelled
				}
			}

			passenger := shared.PassengerName
			if passenger == "" {
				passenger = "the passenger"
			}
			return fmt.Sprintf("Booking %s for %s on flight %s has been cancelled.",
				confirmation, passenger, orUnknown(shared.FlightNumber)), nil
		},
	}
}

// ConferenceSessions searches the conference schedule.
func (t *Toolset) ConferenceSessions() specialist.Tool {
	return specialist.Tool{
		Name:        "get_conference_sessions",
		Description: "Search conference sessions by speaker, topic, room, track, date and time range.",
		Params: map[string]specialist.Param{
			"speaker_name":         str("Speaker name or part of it.", false),
			"topic":                str("Topic keyword.", false),
			"conference_room_name": str("Room name.", false),
			"track_name":           str("Track name.", false),
			"conference_date":      str("Date as YYYY-MM-DD.", false),
			"start_time":           str("Earliest start time as HH:MM.", false),
			"end_time":             str("Latest end time as HH:MM.", false),
		},
		Run: func(ctx context.Context, _ *domain.AirlineContext, args specialist.Args) (string, error) {
			filter := domain.SessionFilter{
				Speaker:    args.String("speaker_name"),
				Topic:      args.String("topic"),
				Room:       args.String("conference_room_name"),
				Track:      args.String("track_name"),
				Date:       strings.TrimSpace(args.String("conference_date")),
				StartAfter: strings.TrimSpace(args.String("start_time")),
				EndBefore:  strings.TrimSpace(args.String("end_time")),
			}
			if filter.Date != "" {
				if _, err := time.Parse("2006-01-02", filter.Date); err != nil {
					return "Invalid date. Please use YYYY-MM-DD, for example 2025-07-15.", nil
				}
			}
			if filter.StartAfter != "" {
				if _, err := time.Parse("15:04", filter.StartAfter); err != nil {
					return "Invalid start time. Please use 24-hour HH:MM, for example 09:00.", nil
				}
			}
			if filter.EndBefore != "" {
				if _, err := time.Parse("15:04", filter.EndBefore); err != nil {
					return "Invalid end time. Please use 24-hour HH:MM, for example 14:30.", nil
				}
			}

			sessions, err := t.repo.ListConferenceSessions(ctx, filter)
			if err != nil {
				return "", fmt.Errorf("list conference sessions: %w", err)
			}
			if len(sessions) == 0 {
				return "No conference sessions found matching your criteria.", nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Conference sessions found (%d)\n", len(sessions))
			for i, s := range sessions {
				fmt.Fprintf(&b, "%d. %s\n", i+1, s.Topic)
				fmt.Fprintf(&b, "   Speaker: %s\n", s.SpeakerName)
				fmt.Fprintf(&b, "   When: %s %s-%s\n", s.Date, s.StartTime, s.EndTime)
				fmt.Fprintf(&b, "   Room: %s, Track: %s\n", s.Room, s.Track)
				if s.Description != "" {
					fmt.Fprintf(&b, "   %s\n", s.Description)
				}
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	}
}

// AllSpeakers lists every speaker.
func (t *Toolset) AllSpeakers() specialist.Tool {
	return t.distinctTool("get_all_speakers", "List every conference speaker.", store.ScheduleSpeakers, "speakers")
}

// AllTracks lists every track.
func (t *Toolset) AllTracks() specialist.Tool {
	return t.distinctTool("get_all_tracks", "List every conference track.", store.ScheduleTracks, "tracks")
}

// AllRooms lists every room.
func (t *Toolset) AllRooms() specialist.Tool {
	return t.distinctTool("get_all_rooms", "List every conference room.", store.ScheduleRooms, "rooms")
}

func (t *Toolset) distinctTool(name, desc string, column store.ScheduleColumn, noun string) specialist.Tool {
	return specialist.Tool{
		Name:        name,
		Description: desc,
		Run: func(ctx context.Context, _ *domain.AirlineContext, _ specialist.Args) (string, error) {
			values, err := t.repo.ListDistinctScheduleValues(ctx, column)
			if err != nil {
				return "", fmt.Errorf("list %s: %w", noun, err)
			}
			if len(values) == 0 {
				return fmt.Sprintf("No conference %s found.", noun), nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Conference %s (%d total)\n", noun, len(values))
			for i, v := range values {
				fmt.Fprintf(&b, "%d. %s\n", i+1, v)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	}
}

// SearchBusinesses searches the networking directory.
func (t *Toolset) SearchBusinesses() specialist.Tool {
	return specialist.Tool{
		Name:        "search_businesses",
		Description: "Search the attendee business directory by keyword and industry.",
		Params: map[string]specialist.Param{
			"query":    str("Keyword to match against business names and descriptions.", false),
			"industry": str("Industry to filter by.", false),
		},
		Run: func(ctx context.Context, _ *domain.AirlineContext, args specialist.Args) (string, error) {
			found, err := t.repo.SearchBusinesses(ctx, args.String("query"), args.String("industry"))
			if err != nil {
				return "", fmt.Errorf("search businesses: %w", err)
			}
			if len(found) == 0 {
				return "No businesses matched your search.", nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Businesses found (%d)\n", len(found))
			for i, biz := range found {
				fmt.Fprintf(&b, "%d. %s (%s)", i+1, biz.Name, biz.Industry)
				if biz.Location != "" {
					fmt.Fprintf(&b, ", %s", biz.Location)
				}
				b.WriteString("\n")
				if biz.ContactName != "" {
					fmt.Fprintf(&b, "   Contact: %s <%s>\n", biz.ContactName, biz.ContactEmail)
				}
			}
			return strings.TrimRight(b.String(), "\n"), nil
		},
	}
}

// DisplayBusinessForm asks the client to render the business registration form.
func (t *Toolset) DisplayBusinessForm() specialist.Tool {
	return specialist.Tool{
		Name:        "display_business_form",
		Description: "Show a form so the attendee can add their business to the directory.",
		Directive:   true,
		Run: func(context.Context, *domain.AirlineContext, specialist.Args) (string, error) {
			return BusinessFormDirective, nil
		},
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
