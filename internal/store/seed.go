package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashureev/skydesk/internal/domain"
)

// UpsertUserProfile creates or replaces a registration profile.
func (s *SQLiteStore) UpsertUserProfile(ctx context.Context, profile domain.UserProfile) error {
	details, err := json.Marshal(profile.Details)
	if err != nil {
		return fmt.Errorf("encode user details: %w", err)
	}
	createdAt := profile.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (registration_id, details_json, created_at) VALUES (?, ?, ?)
		ON CONFLICT(registration_id) DO UPDATE SET details_json = excluded.details_json`,
		profile.RegistrationID, string(details), createdAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert user profile: %w", err)
	}
	return nil
}

// UpsertCustomer creates or replaces a customer.
func (s *SQLiteStore) UpsertCustomer(ctx context.Context, c domain.Customer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, account_number, name, email, is_conference_attendee,
		                       conference_name, registration_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_number = excluded.account_number,
			name = excluded.name,
			email = excluded.email,
			is_conference_attendee = excluded.is_conference_attendee,
			conference_name = excluded.conference_name,
			registration_id = excluded.registration_id`,
		c.ID, c.AccountNumber, c.Name, c.Email, c.IsConferenceAttendee, c.ConferenceName, c.RegistrationID)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

// UpsertFlight creates or replaces a flight.
func (s *SQLiteStore) UpsertFlight(ctx context.Context, f domain.Flight) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO flights (id, flight_number, origin, destination, scheduled_departure,
		                     current_status, gate, terminal, delay_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_status = excluded.current_status,
			gate = excluded.gate,
			terminal = excluded.terminal,
			delay_minutes = excluded.delay_minutes`,
		f.ID, f.FlightNumber, f.Origin, f.Destination, f.ScheduledDeparture.Unix(),
		f.CurrentStatus, f.Gate, f.Terminal, f.DelayMinutes)
	if err != nil {
		return fmt.Errorf("upsert flight: %w", err)
	}
	return nil
}

// UpsertBooking creates or replaces a booking.
func (s *SQLiteStore) UpsertBooking(ctx context.Context, b domain.Booking) error {
	status := b.Status
	if status == "" {
		status = "Confirmed"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookings (id, confirmation_number, customer_id, flight_id, seat_number,
		                      booking_status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			seat_number = excluded.seat_number,
			booking_status = excluded.booking_status,
			updated_at = excluded.updated_at`,
		b.ID, b.ConfirmationNumber, b.CustomerID, b.FlightID, b.SeatNumber, status, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert booking: %w", err)
	}
	return nil
}

// UpsertConferenceSession creates or replaces a schedule entry.
func (s *SQLiteStore) UpsertConferenceSession(ctx context.Context, cs domain.ConferenceSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conference_schedules (id, speaker_name, topic, conference_room_name,
		                                  track_name, conference_date, start_time, end_time, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			speaker_name = excluded.speaker_name,
			topic = excluded.topic,
			conference_room_name = excluded.conference_room_name,
			track_name = excluded.track_name,
			conference_date = excluded.conference_date,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			description = excluded.description`,
		cs.ID, cs.SpeakerName, cs.Topic, cs.Room, cs.Track, cs.Date, cs.StartTime, cs.EndTime, cs.Description)
	if err != nil {
		return fmt.Errorf("upsert conference session: %w", err)
	}
	return nil
}

// UpsertBusiness creates or replaces a directory entry.
func (s *SQLiteStore) UpsertBusiness(ctx context.Context, b domain.Business) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO businesses (id, name, industry, description, contact_name, contact_email, location)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			industry = excluded.industry,
			description = excluded.description,
			contact_name = excluded.contact_name,
			contact_email = excluded.contact_email,
			location = excluded.location`,
		b.ID, b.Name, b.Industry, b.Description, b.ContactName, b.ContactEmail, b.Location)
	if err != nil {
		return fmt.Errorf("upsert business: %w", err)
	}
	return nil
}

// SeedDemoData loads a small fixture set so a fresh database can serve every tool.
func (s *SQLiteStore) SeedDemoData(ctx context.Context) error {
	departure := time.Date(2025, 9, 14, 9, 30, 0, 0, time.UTC)

	steps := []func() error{
		func() error {
			return s.UpsertUserProfile(ctx, domain.UserProfile{
				RegistrationID: "REG-1001",
				Details: map[string]any{
					"user_name":        "Ava Chen",
					"registered_email": "ava.chen@example.com",
					"conference_name":  domain.DefaultConferenceName,
					"account_number":   "ACC-1001",
				},
			})
		},
		func() error {
			return s.UpsertCustomer(ctx, domain.Customer{
				ID: "cust-1", AccountNumber: "ACC-1001", Name: "Ava Chen",
				Email: "ava.chen@example.com", IsConferenceAttendee: true,
				ConferenceName: domain.DefaultConferenceName, RegistrationID: "REG-1001",
			})
		},
		func() error {
			return s.UpsertFlight(ctx, domain.Flight{
				ID: "flt-1", FlightNumber: "FLT-123", Origin: "SFO", Destination: "JFK",
				ScheduledDeparture: departure, CurrentStatus: "On Time", Gate: "A10", Terminal: "2",
			})
		},
		func() error {
			return s.UpsertBooking(ctx, domain.Booking{
				ID: "bk-1", ConfirmationNumber: "LL0EZ6", CustomerID: "cust-1",
				FlightID: "flt-1", SeatNumber: "23A",
			})
		},
		func() error {
			return s.UpsertConferenceSession(ctx, domain.ConferenceSession{
				ID: "cs-1", SpeakerName: "Priya Natarajan", Topic: "Sustainable Aviation Fuels",
				Room: "Skyline Hall", Track: "Sustainability", Date: "2025-09-15",
				StartTime: "09:00", EndTime: "10:00",
			})
		},
		func() error {
			return s.UpsertConferenceSession(ctx, domain.ConferenceSession{
				ID: "cs-2", SpeakerName: "Marcus Webb", Topic: "Predictive Maintenance with AI",
				Room: "Hangar B", Track: "Operations", Date: "2025-09-15",
				StartTime: "11:00", EndTime: "12:00",
			})
		},
		func() error {
			return s.UpsertBusiness(ctx, domain.Business{
				ID: "biz-1", Name: "AeroLogix", Industry: "Logistics",
				Description: "Air cargo routing software", ContactName: "Dana Ortiz",
				ContactEmail: "dana@aerologix.example", Location: "Denver",
			})
		},
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}
	return nil
}
