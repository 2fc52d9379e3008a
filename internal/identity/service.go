package identity

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/idmint/idmint/internal/apperr"
	"github.com/idmint/idmint/internal/logging"
)

const dateLayout = "2006-01-02"

// Service manages identity registration.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Register validates and stores a new identity for the category. A second
// registration of the same phone in the same category fails with Conflict.
func (s *Service) Register(ctx context.Context, category Category, in RegisterInput) (Identity, error) {
	if !category.Valid() {
		return Identity{}, apperr.New(apperr.ErrInvalidInput, "unknown id_type "+string(category))
	}

	in.Phone = strings.TrimSpace(in.Phone)
	in.IDType = strings.TrimSpace(in.IDType)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)

	if missing := missingFields(in); len(missing) > 0 {
		return Identity{}, apperr.New(apperr.ErrInvalidInput, "missing required field(s): "+strings.Join(missing, ", "))
	}

	dob, err := ParseDateOfBirth(in.DateOfBirth)
	if err != nil {
		return Identity{}, err
	}

	now := s.now().UTC()
	identity := Identity{
		Category:    category,
		Phone:       in.Phone,
		IDType:      in.IDType,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		DateOfBirth: dob,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, identity); err != nil {
		return Identity{}, err
	}

	s.logger.Info("identity registered",
		slog.String("category", string(category)),
		slog.String("phone", logging.RedactPhone(identity.Phone)),
	)
	return identity, nil
}

// ParseDateOfBirth accepts a calendar date (2006-01-02) or an RFC 3339
// timestamp. Only the calendar date as written is kept, at UTC midnight,
// matching the DATE column the Postgres repository stores.
func ParseDateOfBirth(raw string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, apperr.New(apperr.ErrInvalidInput, "dateOfBirth must be YYYY-MM-DD or RFC 3339")
}

func missingFields(in RegisterInput) []string {
	var missing []string
	if in.IDType == "" {
		missing = append(missing, "idType")
	}
	if in.FirstName == "" {
		missing = append(missing, "firstName")
	}
	if in.LastName == "" {
		missing = append(missing, "lastName")
	}
	if in.DateOfBirth == "" {
		missing = append(missing, "dateOfBirth")
	}
	if in.Phone == "" {
		missing = append(missing, "phoneNumber")
	}
	return missing
}
