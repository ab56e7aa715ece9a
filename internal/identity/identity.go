// Package identity resolves identity tokens into initial conversation context.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/ashureev/skydesk/internal/domain"
	"github.com/ashureev/skydesk/internal/store"
)

// ErrInvalidToken is returned for tokens that are not well-formed registration ids.
var ErrInvalidToken = errors.New("invalid identity token")

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// NormalizeToken trims a token and validates its format.
func NormalizeToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if !tokenPattern.MatchString(token) {
		return "", ErrInvalidToken
	}
	return token, nil
}

// Loader builds the initial context of a new conversation from a registration id.
type Loader struct {
	repo   store.LookupRepository
	logger *slog.Logger
}

// NewLoader creates a profile loader.
func NewLoader(repo store.LookupRepository, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{repo: repo, logger: logger}
}

// Load returns the context for token. Unknown registrations yield a context
// carrying only the registration id. When the profile names an account
// number, the customer's id, email and bookings are merged in.
func (l *Loader) Load(ctx context.Context, token string) (domain.AirlineContext, error) {
	registrationID, err := NormalizeToken(token)
	if err != nil {
		return domain.AirlineContext{}, err
	}

	out := domain.AirlineContext{RegistrationID: registrationID}

	profile, err := l.repo.GetUserProfile(ctx, registrationID)
	if err != nil {
		return domain.AirlineContext{}, fmt.Errorf("load user profile: %w", err)
	}
	if profile == nil {
		l.logger.Debug("No profile for registration id", "registration_id", registrationID)
		return out, nil
	}

	details := profile.Details
	out.PassengerName = firstNonEmpty(detail(details, "user_name"),
		strings.TrimSpace(detail(details, "firstName")+" "+detail(details, "lastName")))
	out.CustomerEmail = firstNonEmpty(detail(details, "registered_email"), detail(details, "email"))
	out.IsConferenceAttendee = true
	out.ConferenceName = firstNonEmpty(detail(details, "conference_name"), domain.DefaultConferenceName)
	out.UserDetails = details

	if account := detail(details, "account_number"); account != "" {
		customer, err := l.loadCustomer(ctx, account)
		if err != nil {
			return domain.AirlineContext{}, err
		}
		out.Merge(customer)
	}
	return out, nil
}

func (l *Loader) loadCustomer(ctx context.Context, accountNumber string) (domain.AirlineContext, error) {
	out := domain.AirlineContext{AccountNumber: accountNumber}

	customer, err := l.repo.GetCustomerByAccount(ctx, accountNumber)
	if err != nil {
		return out, fmt.Errorf("load customer: %w", err)
	}
	if customer == nil {
		return out, nil
	}

	out.CustomerID = customer.ID
	out.CustomerEmail = customer.Email
	if customer.ConferenceName != "" {
		out.ConferenceName = customer.ConferenceName
	}

	bookings, err := l.repo.ListCustomerBookings(ctx, customer.ID)
	if err != nil {
		return out, fmt.Errorf("load customer bookings: %w", err)
	}
	out.CustomerBookings = bookings
	return out, nil
}

func detail(details map[string]any, key string) string {
	if v, ok := details[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// IPFromRequest returns a normalized remote IP for rate limiting and tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
