// Package presence tracks which users currently have a live, heartbeating
// connection. A user is online while their record is inside the sliding
// TTL window; absence of a record means offline, there is no explicit
// offline marker.
package presence

import (
	"context"
	"time"

	"github.com/c-pro/geche"
)

const DefaultTTL = 300 * time.Second

// Store is safe for concurrent use by many sessions.
type Store struct {
	records geche.Geche[int64, time.Time]
}

// New creates a presence store with the given sliding TTL. The store is
// scoped to the process lifetime: a restart means everyone is offline
// until they reconnect.
func New(ctx context.Context, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cleanup := ttl
	if cleanup > time.Minute {
		cleanup = time.Minute
	}
	return &Store{
		records: geche.NewMapTTLCache[int64, time.Time](ctx, ttl, cleanup),
	}
}

// Touch sets or refreshes the heartbeat record for userID. Idempotent.
func (s *Store) Touch(userID int64) {
	s.records.Set(userID, time.Now())
}

// IsOnline reports whether userID has an unexpired heartbeat record.
func (s *Store) IsOnline(userID int64) bool {
	_, err := s.records.Get(userID)
	return err == nil
}

// Remove deletes the record immediately so an explicit disconnect is
// reflected without waiting for the TTL.
func (s *Store) Remove(userID int64) {
	_ = s.records.Del(userID)
}
