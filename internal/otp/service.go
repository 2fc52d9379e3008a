package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/bcrypt"

	"github.com/idmint/idmint/internal/apperr"
	"github.com/idmint/idmint/internal/identity"
	"github.com/idmint/idmint/internal/logging"
	"github.com/idmint/idmint/internal/metrics"
	"github.com/idmint/idmint/internal/notification"
)

const (
	codeMin = 1000
	codeMax = 9999

	// DefaultTTL bounds how long a code stays valid when no TTL is configured.
	DefaultTTL = 10 * time.Minute
)

// Options tunes the OTP service.
type Options struct {
	TTL      time.Duration
	HashCost int
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Service generates, stores, delivers and verifies OTP codes.
type Service struct {
	store      Store
	identities identity.Repository
	notifier   notification.Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	ttl        time.Duration
	hashCost   int
	now        func() time.Time
	generate   func() (string, error)
}

// NewService wires the OTP service.
func NewService(store Store, identities identity.Repository, notifier notification.Notifier, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Service{
		store:      store,
		identities: identities,
		notifier:   notifier,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		ttl:        opts.TTL,
		hashCost:   opts.HashCost,
		now:        time.Now,
		generate:   GenerateCode,
	}
}

// GenerateCode returns a 4-digit code drawn uniformly from [1000, 9999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}

// Request issues a fresh code for a registered phone, binds it to
// targetAddress and delivers it. A delivery failure leaves the stored code
// in place; the caller may simply request again.
func (s *Service) Request(ctx context.Context, category identity.Category, phone, targetAddress string) (err error) {
	defer func() { s.metrics.OTPRequested(string(category), err) }()

	phone = strings.TrimSpace(phone)
	targetAddress = strings.TrimSpace(targetAddress)

	var missing []string
	if phone == "" {
		missing = append(missing, "phoneNumber")
	}
	if targetAddress == "" {
		missing = append(missing, "address")
	}
	if len(missing) > 0 {
		return apperr.New(apperr.ErrInvalidInput, "missing required field(s): "+strings.Join(missing, ", "))
	}
	if !category.Valid() {
		return apperr.New(apperr.ErrInvalidInput, "unknown id_type "+string(category))
	}
	if !common.IsHexAddress(targetAddress) {
		return apperr.New(apperr.ErrInvalidInput, "address must be a hex account address")
	}

	if _, err := s.identities.FindByPhone(ctx, category, phone); err != nil {
		return err
	}

	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}

	now := s.now().UTC()
	record := Record{
		Phone:         phone,
		CodeHash:      string(hash),
		TargetAddress: targetAddress,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}
	if err := s.store.Upsert(ctx, record); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	msg := notification.Message{
		Kind:        notification.KindOTP,
		Destination: phone,
		Body:        fmt.Sprintf("Your verification code is %s. It expires in %s.", code, s.ttl),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("otp delivery failed",
			slog.String("phone", logging.RedactPhone(phone)),
			slog.Any("error", err),
		)
		return apperr.Wrap(apperr.ErrDeliveryFailed, "Failed to send OTP", err)
	}

	s.logger.Info("otp issued",
		slog.String("category", string(category)),
		slog.String("phone", logging.RedactPhone(phone)),
		slog.Time("expires_at", record.ExpiresAt),
	)
	return nil
}

// Verify checks code against the stored record for phone using exact string
// comparison, then consumes it. The code is compared before expiry and use,
// and every rejection carries the same "Invalid OTP" message.
func (s *Service) Verify(ctx context.Context, phone, code string) (binding Binding, err error) {
	defer func() { s.metrics.OTPVerified(err) }()

	phone = strings.TrimSpace(phone)

	var missing []string
	if phone == "" {
		missing = append(missing, "phoneNumber")
	}
	if code == "" {
		missing = append(missing, "otp")
	}
	if len(missing) > 0 {
		return Binding{}, apperr.New(apperr.ErrInvalidInput, "missing required field(s): "+strings.Join(missing, ", "))
	}

	record, err := s.store.FindByPhone(ctx, phone)
	if err != nil {
		return Binding{}, err
	}

	now := s.now().UTC()
	var reason error
	switch {
	case bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte(code)) != nil:
		reason = ErrCodeMismatch
	case record.ConsumedAt != nil:
		reason = ErrCodeUsed
	case !now.Before(record.ExpiresAt):
		reason = ErrCodeExpired
	}
	if reason == nil {
		if err := s.store.Consume(ctx, phone, record.CodeHash, now); err != nil {
			if !errors.Is(err, apperr.ErrInvalidCode) {
				return Binding{}, err
			}
			reason = ErrCodeUsed
		}
	}
	if reason != nil {
		s.logger.Debug("otp rejected",
			slog.String("phone", logging.RedactPhone(phone)),
			slog.String("reason", reason.Error()),
		)
		return Binding{}, invalidCode(reason)
	}

	return Binding{Phone: record.Phone, TargetAddress: record.TargetAddress}, nil
}
