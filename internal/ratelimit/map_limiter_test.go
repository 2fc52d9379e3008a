package ratelimit

import (
	"strconv"
	"testing"
	"time"
)

func TestNewRejectsInvalidArgs(t *testing.T) {
	if New(0, 1, 0) != nil {
		t.Fatalf("expected nil limiter for zero rate")
	}
	if New(1, 0, 0) != nil {
		t.Fatalf("expected nil limiter for zero burst")
	}
	var l *MapLimiter
	if !l.Allow("k", time.Now()) {
		t.Fatalf("nil limiter must allow")
	}
}

func TestPerHourBurstThenRefill(t *testing.T) {
	l := PerHour(3)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if !l.Allow("+15551230000", now) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("+15551230000", now) {
		t.Fatalf("fourth request within the hour should be denied")
	}
	if !l.Allow("+15559990000", now) {
		t.Fatalf("other keys are independent")
	}
	if !l.Allow("+15551230000", now.Add(20*time.Minute+time.Second)) {
		t.Fatalf("one token should refill after a third of an hour")
	}
}

func TestBlankKeyAlwaysAllowed(t *testing.T) {
	l := New(1, 1, time.Minute)
	now := time.Now()
	for i := 0; i < 5; i++ {
		if !l.Allow("  ", now) {
			t.Fatalf("blank key must not be limited")
		}
	}
	if l.Len() != 0 {
		t.Fatalf("blank key must not be tracked, got %d keys", l.Len())
	}
}

func TestIdleEntriesAreEvicted(t *testing.T) {
	l := New(1, 1, time.Minute)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.Allow("stale", start)

	later := start.Add(time.Hour)
	for i := 0; i < sweepEvery; i++ {
		l.Allow("k"+strconv.Itoa(i%4), later)
	}
	if l.Len() != 4 {
		t.Fatalf("expected stale entry evicted, have %d keys", l.Len())
	}
}
