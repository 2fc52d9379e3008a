package otp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/idmint/idmint/internal/apperr"
)

// Store persists at most one OTP record per phone.
type Store interface {
	// FindByPhone returns the record for phone or a NotFound error.
	FindByPhone(ctx context.Context, phone string) (Record, error)
	// Upsert creates the record or replaces code, address, expiry and
	// consumption state in a single step.
	Upsert(ctx context.Context, record Record) error
	// Consume marks the record used if it still carries codeHash and has not
	// been consumed; otherwise it fails with InvalidCode.
	Consume(ctx context.Context, phone, codeHash string, at time.Time) error
}

// ErrNoCode is attached to the NotFound error returned when a phone holds no
// OTP record, so callers can tell it apart from a missing identity.
var ErrNoCode = errors.New("no otp record for phone")

func notFound() error {
	return apperr.Wrap(apperr.ErrNotFound, "OTP not found", ErrNoCode)
}

// Reasons a code is rejected. Callers only ever see "Invalid OTP"; the reason
// stays reachable through errors.Is for logs and tests.
var (
	ErrCodeMismatch = errors.New("otp mismatch")
	ErrCodeExpired  = errors.New("otp expired")
	ErrCodeUsed     = errors.New("otp already used")
)

func invalidCode(reason error) error {
	return apperr.Wrap(apperr.ErrInvalidCode, "Invalid OTP", reason)
}

func alreadyUsed() error {
	return invalidCode(ErrCodeUsed)
}

type memoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore builds an in-memory OTP store for development and tests.
func NewMemoryStore() Store {
	return &memoryStore{records: make(map[string]Record)}
}

func (s *memoryStore) FindByPhone(_ context.Context, phone string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[phone]
	if !ok {
		return Record{}, notFound()
	}
	return rec, nil
}

func (s *memoryStore) Upsert(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.ConsumedAt = nil
	s.records[record.Phone] = record
	return nil
}

func (s *memoryStore) Consume(_ context.Context, phone, codeHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[phone]
	if !ok || rec.CodeHash != codeHash || rec.ConsumedAt != nil {
		return alreadyUsed()
	}
	rec.ConsumedAt = &at
	s.records[phone] = rec
	return nil
}
