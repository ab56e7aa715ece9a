package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/skydesk/internal/domain"
	"github.com/ashureev/skydesk/internal/shared"
	_ "modernc.org/sqlite"
)

// ErrMalformedRecord is returned when a stored conversation cannot be decoded.
var ErrMalformedRecord = errors.New("malformed conversation record")

// ErrBookingNotFound is returned by booking mutations for unknown confirmation numbers.
var ErrBookingNotFound = errors.New("booking not found")

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db             *sql.DB
	conversationMu sync.Mutex // serializes conversation writes to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode lets readers proceed while a turn is being persisted.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS conversations (
		conversation_id TEXT PRIMARY KEY,
		history_json TEXT NOT NULL,
		context_json TEXT NOT NULL,
		active_specialist TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);

	CREATE TABLE IF NOT EXISTS users (
		registration_id TEXT PRIMARY KEY,
		details_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		account_number TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		is_conference_attendee INTEGER NOT NULL DEFAULT 0,
		conference_name TEXT NOT NULL DEFAULT '',
		registration_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS flights (
		id TEXT PRIMARY KEY,
		flight_number TEXT NOT NULL UNIQUE,
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		scheduled_departure INTEGER NOT NULL,
		current_status TEXT NOT NULL,
		gate TEXT NOT NULL DEFAULT '',
		terminal TEXT NOT NULL DEFAULT '',
		delay_minutes INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		confirmation_number TEXT NOT NULL UNIQUE,
		customer_id TEXT NOT NULL,
		flight_id TEXT NOT NULL,
		seat_number TEXT NOT NULL DEFAULT '',
		booking_status TEXT NOT NULL DEFAULT 'Confirmed',
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_bookings_customer ON bookings(customer_id);

	CREATE TABLE IF NOT EXISTS conference_schedules (
		id TEXT PRIMARY KEY,
		speaker_name TEXT NOT NULL,
		topic TEXT NOT NULL,
		conference_room_name TEXT NOT NULL,
		track_name TEXT NOT NULL,
		conference_date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_schedule_start ON conference_schedules(conference_date, start_time);

	CREATE TABLE IF NOT EXISTS businesses (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		industry TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		contact_name TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT ''
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// LoadConversation retrieves a conversation by id.
func (s *SQLiteStore) LoadConversation(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	query := `
		SELECT conversation_id, history_json, context_json, active_specialist,
		       created_at, updated_at
		FROM conversations WHERE conversation_id = ?`

	row := s.db.QueryRowContext(ctx, query, conversationID)

	var state domain.ConversationState
	var historyJSON, contextJSON string
	var createdAt, updatedAt int64

	err := row.Scan(
		&state.ConversationID, &historyJSON, &contextJSON, &state.ActiveSpecialist,
		&createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation row: %w", err)
	}

	if err := json.Unmarshal([]byte(historyJSON), &state.History); err != nil {
		return nil, fmt.Errorf("%w: history: %v", ErrMalformedRecord, err)
	}
	if err := json.Unmarshal([]byte(contextJSON), &state.Context); err != nil {
		return nil, fmt.Errorf("%w: context: %v", ErrMalformedRecord, err)
	}
	if state.History == nil {
		state.History = []domain.Message{}
	}

	state.CreatedAt = time.Unix(createdAt, 0)
	state.UpdatedAt = time.Unix(updatedAt, 0)
	return &state, nil
}

// UpsertConversation creates or replaces a conversation record.
func (s *SQLiteStore) UpsertConversation(ctx context.Context, state *domain.ConversationState) error {
	historyJSON, err := json.Marshal(state.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	contextJSON, err := json.Marshal(state.Context)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}

	createdAt := state.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := `
		INSERT INTO conversations (
			conversation_id, history_json, context_json, active_specialist,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			history_json = excluded.history_json,
			context_json = excluded.context_json,
			active_specialist = excluded.active_specialist,
			updated_at = excluded.updated_at`

	return shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, "upsert_conversation", func(ctx context.Context) error {
		s.conversationMu.Lock()
		defer s.conversationMu.Unlock()

		_, err := s.db.ExecContext(ctx, query,
			state.ConversationID, string(historyJSON), string(contextJSON), state.ActiveSpecialist,
			createdAt.Unix(), updatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert conversation: %w", err)
		}
		return nil
	})
}

// GetUserProfile retrieves a registration profile.
func (s *SQLiteStore) GetUserProfile(ctx context.Context, registrationID string) (*domain.UserProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT registration_id, details_json, created_at FROM users WHERE registration_id = ?`,
		registrationID)

	var profile domain.UserProfile
	var detailsJSON string
	var createdAt int64
	err := row.Scan(&profile.RegistrationID, &detailsJSON, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user profile: %w", err)
	}
	if err := json.Unmarshal([]byte(detailsJSON), &profile.Details); err != nil {
		return nil, fmt.Errorf("decode user details: %w", err)
	}
	profile.CreatedAt = time.Unix(createdAt, 0)
	return &profile, nil
}

// GetCustomerByAccount retrieves a customer by account number.
func (s *SQLiteStore) GetCustomerByAccount(ctx context.Context, accountNumber string) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, account_number, name, email, is_conference_attendee,
		       conference_name, registration_id
		FROM customers WHERE account_number = ?`, accountNumber)

	var c domain.Customer
	err := row.Scan(&c.ID, &c.AccountNumber, &c.Name, &c.Email,
		&c.IsConferenceAttendee, &c.ConferenceName, &c.RegistrationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	return &c, nil
}

// ListCustomerBookings returns the bookings of a customer.
func (s *SQLiteStore) ListCustomerBookings(ctx context.Context, customerID string) ([]domain.BookingSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.confirmation_number, COALESCE(f.flight_number, ''),
		       b.seat_number, b.booking_status
		FROM bookings b LEFT JOIN flights f ON f.id = b.flight_id
		WHERE b.customer_id = ?
		ORDER BY b.confirmation_number`, customerID)
	if err != nil {
		return nil, fmt.Errorf("query customer bookings: %w", err)
	}
	defer closeRows(rows, "customer bookings")

	var out []domain.BookingSummary
	for rows.Next() {
		var b domain.BookingSummary
		if err := rows.Scan(&b.ID, &b.ConfirmationNumber, &b.FlightNumber, &b.SeatNumber, &b.Status); err != nil {
			return nil, fmt.Errorf("scan booking summary: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer bookings: %w", err)
	}
	return out, nil
}

// GetBookingDetails resolves a confirmation number to its booking, customer and flight.
func (s *SQLiteStore) GetBookingDetails(ctx context.Context, confirmationNumber string) (*domain.BookingDetails, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT b.id, b.confirmation_number, b.customer_id, b.flight_id, b.seat_number,
		       b.booking_status, b.updated_at,
		       COALESCE(c.account_number, ''), COALESCE(c.name, ''), COALESCE(c.email, ''),
		       COALESCE(f.flight_number, ''), COALESCE(f.origin, ''), COALESCE(f.destination, ''),
		       COALESCE(f.scheduled_departure, 0), COALESCE(f.current_status, '')
		FROM bookings b
		LEFT JOIN customers c ON c.id = b.customer_id
		LEFT JOIN flights f ON f.id = b.flight_id
		WHERE b.confirmation_number = ?`, confirmationNumber)

	var d domain.BookingDetails
	var updatedAt, departure int64
	err := row.Scan(
		&d.Booking.ID, &d.Booking.ConfirmationNumber, &d.Booking.CustomerID, &d.Booking.FlightID,
		&d.Booking.SeatNumber, &d.Booking.Status, &updatedAt,
		&d.Customer.AccountNumber, &d.Customer.Name, &d.Customer.Email,
		&d.Flight.FlightNumber, &d.Flight.Origin, &d.Flight.Destination,
		&departure, &d.Flight.CurrentStatus,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan booking details: %w", err)
	}

	d.Booking.UpdatedAt = time.Unix(updatedAt, 0)
	d.Customer.ID = d.Booking.CustomerID
	d.Flight.ID = d.Booking.FlightID
	d.Flight.ScheduledDeparture = time.Unix(departure, 0).UTC()
	return &d, nil
}

// UpdateSeat moves a booking to a new seat.
func (s *SQLiteStore) UpdateSeat(ctx context.Context, confirmationNumber, seatNumber string) error {
	return s.updateBooking(ctx, "update_seat",
		`UPDATE bookings SET seat_number = ?, updated_at = ? WHERE confirmation_number = ?`,
		seatNumber, time.Now().Unix(), confirmationNumber)
}

// CancelBooking marks a booking as cancelled.
func (s *SQLiteStore) CancelBooking(ctx context.Context, confirmationNumber string) error {
	return s.updateBooking(ctx, "cancel_booking",
		`UPDATE bookings SET booking_status = ?, updated_at = ? WHERE confirmation_number = ?`,
		domain.BookingStatusCancelled, time.Now().Unix(), confirmationNumber)
}

func (s *SQLiteStore) updateBooking(ctx context.Context, name, query string, args ...any) error {
	var rows int64
	err := shared.RetryOnConflict(ctx, shared.DefaultRetryPolicy, name, func(ctx context.Context) error {
		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		rows, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// GetFlightStatus retrieves a flight by number.
func (s *SQLiteStore) GetFlightStatus(ctx context.Context, flightNumber string) (*domain.Flight, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, flight_number, origin, destination, scheduled_departure,
		       current_status, gate, terminal, delay_minutes
		FROM flights WHERE flight_number = ? COLLATE NOCASE`, flightNumber)

	var f domain.Flight
	var departure int64
	err := row.Scan(&f.ID, &f.FlightNumber, &f.Origin, &f.Destination, &departure,
		&f.CurrentStatus, &f.Gate, &f.Terminal, &f.DelayMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan flight: %w", err)
	}
	f.ScheduledDeparture = time.Unix(departure, 0).UTC()
	return &f, nil
}

// ListConferenceSessions returns schedule entries matching filter.
func (s *SQLiteStore) ListConferenceSessions(ctx context.Context, filter domain.SessionFilter) ([]domain.ConferenceSession, error) {
	var clauses []string
	var args []any

	like := func(column, value string) {
		if value = strings.TrimSpace(value); value != "" {
			clauses = append(clauses, column+" LIKE '%' || ? || '%'")
			args = append(args, value)
		}
	}
	like("speaker_name", filter.Speaker)
	like("topic", filter.Topic)
	like("conference_room_name", filter.Room)
	like("track_name", filter.Track)

	if filter.Date != "" {
		clauses = append(clauses, "conference_date = ?")
		args = append(args, filter.Date)
	}
	if filter.StartAfter != "" {
		clauses = append(clauses, "start_time >= ?")
		args = append(args, filter.StartAfter)
	}
	if filter.EndBefore != "" {
		clauses = append(clauses, "end_time <= ?")
		args = append(args, filter.EndBefore)
	}

	query := `
		SELECT id, speaker_name, topic, conference_room_name, track_name,
		       conference_date, start_time, end_time, description
		FROM conference_schedules`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY conference_date, start_time"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conference sessions: %w", err)
	}
	defer closeRows(rows, "conference sessions")

	var out []domain.ConferenceSession
	for rows.Next() {
		var cs domain.ConferenceSession
		if err := rows.Scan(&cs.ID, &cs.SpeakerName, &cs.Topic, &cs.Room, &cs.Track,
			&cs.Date, &cs.StartTime, &cs.EndTime, &cs.Description); err != nil {
			return nil, fmt.Errorf("scan conference session: %w", err)
		}
		out = append(out, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conference sessions: %w", err)
	}
	return out, nil
}

// ListDistinctScheduleValues returns sorted distinct values of a schedule column.
func (s *SQLiteStore) ListDistinctScheduleValues(ctx context.Context, column ScheduleColumn) ([]string, error) {
	switch column {
	case ScheduleSpeakers, ScheduleTracks, ScheduleRooms:
	default:
		return nil, fmt.Errorf("unsupported schedule column %q", column)
	}

	col := string(column)
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT "+col+" FROM conference_schedules WHERE "+col+" <> '' ORDER BY "+col)
	if err != nil {
		return nil, fmt.Errorf("query distinct %s: %w", col, err)
	}
	defer closeRows(rows, col)

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", col, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", col, err)
	}
	return out, nil
}

// SearchBusinesses matches query against name and description, and industry exactly.
func (s *SQLiteStore) SearchBusinesses(ctx context.Context, query, industry string) ([]domain.Business, error) {
	sqlQuery := `
		SELECT id, name, industry, description, contact_name, contact_email, location
		FROM businesses WHERE 1 = 1`
	var args []any
	if q := strings.TrimSpace(query); q != "" {
		sqlQuery += ` AND (name LIKE '%' || ? || '%' OR description LIKE '%' || ? || '%')`
		args = append(args, q, q)
	}
	if ind := strings.TrimSpace(industry); ind != "" {
		sqlQuery += ` AND industry = ? COLLATE NOCASE`
		args = append(args, ind)
	}
	sqlQuery += ` ORDER BY name LIMIT 20`

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query businesses: %w", err)
	}
	defer closeRows(rows, "businesses")

	var out []domain.Business
	for rows.Next() {
		var b domain.Business
		if err := rows.Scan(&b.ID, &b.Name, &b.Industry, &b.Description,
			&b.ContactName, &b.ContactEmail, &b.Location); err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate businesses: %w", err)
	}
	return out, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", what, "error", err)
	}
}
