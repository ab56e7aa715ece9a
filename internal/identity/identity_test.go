package identity

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ashureev/skydesk/internal/domain"
	"github.com/ashureev/skydesk/internal/store"
)

func newSeededLoader(t *testing.T) (*Loader, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "identity.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.SeedDemoData(context.Background()); err != nil {
		t.Fatalf("SeedDemoData() error = %v", err)
	}
	return NewLoader(s, nil), s
}

func TestLoadKnownRegistration(t *testing.T) {
	loader, _ := newSeededLoader(t)

	got, err := loader.Load(context.Background(), " REG-1001 ")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.RegistrationID != "REG-1001" || got.PassengerName != "Ava Chen" || got.CustomerEmail != "ava.chen@example.com" {
		t.Fatalf("Load() = %+v", got)
	}
	if !got.IsConferenceAttendee || got.ConferenceName != domain.DefaultConferenceName {
		t.Fatalf("attendee fields = %v %q", got.IsConferenceAttendee, got.ConferenceName)
	}
	if got.CustomerID != "cust-1" || got.AccountNumber != "ACC-1001" || len(got.CustomerBookings) != 1 {
		t.Fatalf("customer fields not merged: %+v", got)
	}
}

func TestLoadNameFromFirstAndLast(t *testing.T) {
	loader, s := newSeededLoader(t)
	err := s.UpsertUserProfile(context.Background(), domain.UserProfile{
		RegistrationID: "REG-2002",
		Details:        map[string]any{"firstName": "Sam", "lastName": "Ortiz", "email": "sam@example.com"},
	})
	if err != nil {
		t.Fatalf("UpsertUserProfile() error = %v", err)
	}

	got, err := loader.Load(context.Background(), "REG-2002")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.PassengerName != "Sam Ortiz" || got.CustomerEmail != "sam@example.com" || got.CustomerID != "" {
		t.Fatalf("Load() = %+v", got)
	}
}

func TestLoadUnknownRegistration(t *testing.T) {
	loader, _ := newSeededLoader(t)

	got, err := loader.Load(context.Background(), "REG-404")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.RegistrationID != "REG-404" || got.IsConferenceAttendee || got.PassengerName != "" {
		t.Fatalf("Load() = %+v", got)
	}
}

func TestLoadRejectsMalformedToken(t *testing.T) {
	loader, _ := newSeededLoader(t)

	for _, token := range []string{"", "   ", "REG 1001", "reg/1001"} {
		if _, err := loader.Load(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Load(%q) error = %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestIPFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	if got := IPFromRequest(req); got != "10.1.2.3" {
		t.Fatalf("IPFromRequest() = %q", got)
	}
	req.RemoteAddr = "not-an-addr"
	if got := IPFromRequest(req); got != "not-an-addr" {
		t.Fatalf("IPFromRequest() = %q", got)
	}
}
