package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/idmint/idmint/internal/apperr"
	"github.com/idmint/idmint/internal/testhelpers"
)

func TestPostgresStore(t *testing.T) {
	store := NewPostgresStore(testhelpers.Postgres(t))
	ctx := context.Background()

	t.Run("missing record", func(t *testing.T) {
		_, err := store.FindByPhone(ctx, "+19999999999")
		if !errors.Is(err, apperr.ErrNotFound) || !errors.Is(err, ErrNoCode) {
			t.Fatalf("expected no code, got %v", err)
		}
	})

	t.Run("upsert replaces and clears consumption", func(t *testing.T) {
		first := testRecord("h1")
		if err := store.Upsert(ctx, first); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := store.Consume(ctx, testPhone, "h1", time.Now()); err != nil {
			t.Fatalf("consume: %v", err)
		}
		used, err := store.FindByPhone(ctx, testPhone)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if used.ConsumedAt == nil {
			t.Fatal("expected consumed record")
		}

		replacement := testRecord("h2")
		replacement.TargetAddress = otherAddr
		if err := store.Upsert(ctx, replacement); err != nil {
			t.Fatalf("second upsert: %v", err)
		}
		got, err := store.FindByPhone(ctx, testPhone)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.CodeHash != "h2" || got.TargetAddress != otherAddr || got.ConsumedAt != nil {
			t.Fatalf("expected fresh replacement, got %+v", got)
		}
		if !got.ExpiresAt.Equal(replacement.ExpiresAt) {
			t.Fatalf("expected expiry %s, got %s", replacement.ExpiresAt, got.ExpiresAt)
		}
	})

	t.Run("consume is single use", func(t *testing.T) {
		if err := store.Upsert(ctx, testRecord("h3")); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := store.Consume(ctx, testPhone, "h3", time.Now()); err != nil {
			t.Fatalf("consume: %v", err)
		}
		err := store.Consume(ctx, testPhone, "h3", time.Now())
		if !errors.Is(err, apperr.ErrInvalidCode) || !errors.Is(err, ErrCodeUsed) {
			t.Fatalf("expected used, got %v", err)
		}
	})

	t.Run("consume with stale hash fails", func(t *testing.T) {
		if err := store.Upsert(ctx, testRecord("h4")); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := store.Consume(ctx, testPhone, "h3", time.Now()); !errors.Is(err, ErrCodeUsed) {
			t.Fatalf("expected stale hash to be rejected, got %v", err)
		}
		got, err := store.FindByPhone(ctx, testPhone)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if got.ConsumedAt != nil {
			t.Fatal("stale consume must not mark the current code")
		}
	})

	t.Run("concurrent consume has one winner", func(t *testing.T) {
		if err := store.Upsert(ctx, testRecord("h5")); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		const workers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := store.Consume(ctx, testPhone, "h5", time.Now()); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			t.Fatalf("expected exactly one winner, got %d", wins)
		}
	})
}
