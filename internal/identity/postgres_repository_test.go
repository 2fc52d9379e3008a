package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/idmint/idmint/internal/apperr"
	"github.com/idmint/idmint/internal/testhelpers"
)

func TestPostgresRepository(t *testing.T) {
	repo := NewPostgresRepository(testhelpers.Postgres(t))
	svc := NewService(repo, nil)
	ctx := context.Background()

	t.Run("duplicate phone is conflict", func(t *testing.T) {
		if _, err := svc.Register(ctx, CategoryStandard, validInput("+15551230000")); err != nil {
			t.Fatalf("register: %v", err)
		}
		_, err := svc.Register(ctx, CategoryStandard, validInput("+15551230000"))
		if !errors.Is(err, apperr.ErrConflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
		if got := apperr.Message(err); got != "User already exists" {
			t.Fatalf("unexpected message %q", got)
		}
	})

	t.Run("categories use separate tables", func(t *testing.T) {
		if _, err := svc.Register(ctx, CategorySSA, validInput("+15551230000")); err != nil {
			t.Fatalf("register ssa: %v", err)
		}
		if _, err := repo.FindByPhone(ctx, CategorySSA, "+15559999999"); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("date of birth round trips as a calendar date", func(t *testing.T) {
		in := validInput("+15552220000")
		in.DateOfBirth = "1990-01-15T23:30:00-05:00"
		created, err := svc.Register(ctx, CategoryStandard, in)
		if err != nil {
			t.Fatalf("register: %v", err)
		}

		found, err := repo.FindByPhone(ctx, CategoryStandard, "+15552220000")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		want := time.Date(1990, time.January, 15, 0, 0, 0, 0, time.UTC)
		if !found.DateOfBirth.Equal(want) || !created.DateOfBirth.Equal(want) {
			t.Fatalf("expected dob %s, got stored %s created %s", want, found.DateOfBirth, created.DateOfBirth)
		}
		if found.Category != CategoryStandard || found.FirstName != "Ada" || found.IDType != "passport" {
			t.Fatalf("unexpected identity %+v", found)
		}
	})
}
