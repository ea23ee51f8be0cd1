package presence

import (
	"context"
	"testing"
	"time"
)

func TestStore_TouchIsIdempotent(t *testing.T) {
	s := New(context.Background(), time.Minute)

	if s.IsOnline(1) {
		t.Error("user online before any Touch")
	}

	for i := 0; i < 5; i++ {
		s.Touch(1)
	}
	if !s.IsOnline(1) {
		t.Error("user not online after Touch")
	}
	if s.IsOnline(2) {
		t.Error("untouched user reported online")
	}

	s.Remove(1)
	if s.IsOnline(1) {
		t.Error("user still online after Remove")
	}

	// Removing twice must be a no-op, not an error.
	s.Remove(1)
	if s.IsOnline(1) {
		t.Error("user online after second Remove")
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	ttl := 50 * time.Millisecond
	s := New(context.Background(), ttl)

	s.Touch(7)
	if !s.IsOnline(7) {
		t.Fatal("user not online right after Touch")
	}

	time.Sleep(3 * ttl)
	if s.IsOnline(7) {
		t.Error("user still online after TTL expiry")
	}
}

func TestStore_TouchRefreshesTTL(t *testing.T) {
	ttl := 80 * time.Millisecond
	s := New(context.Background(), ttl)

	s.Touch(3)
	for i := 0; i < 4; i++ {
		time.Sleep(ttl / 2)
		s.Touch(3)
	}
	// Total elapsed well past the original TTL, but heartbeats kept
	// the record alive.
	if !s.IsOnline(3) {
		t.Error("user expired despite heartbeats")
	}
}
