// Package storage defines the persistence boundary between mutation
// logic and the backing store, plus the two interchangeable backends:
// a durable Postgres key-value table with per-key TTL and an in-process
// memory map with no TTL enforcement.
package storage

import (
	"context"
	"time"
)

// Record kinds. Keys are namespaced as kind + id, e.g. trip:{tripId}.
const (
	KindTrip    = "trip"
	KindBooking = "booking"
	KindLink    = "link"
	KindIndex   = "index"
)

// Default TTLs per kind.
const (
	TripTTL    = 24 * time.Hour
	BookingTTL = 365 * 24 * time.Hour
	IndexTTL   = 365 * 24 * time.Hour

	// MinLinkTTL floors a share link's storage TTL so a link expiring
	// in seconds still survives long enough to serve its final reads.
	MinLinkTTL = 60 * time.Second
)

// Capabilities describes what guarantees a backend provides. Callers
// assert against this instead of checking backend identity. Expiry of
// business deadlines (links, polls, voting windows) is always an
// explicit field check in the services, never delegated to storage TTL.
type Capabilities struct {
	SupportsTTL bool
}

// Store is the storage port. Values are serialized as JSON documents;
// dest arguments to Get must be pointers.
//
// Get returns models.ErrNotFound for an absent (or TTL-expired) record.
// CompareAndSet persists only if the stored revision still equals
// expectRev, returning the new revision; a mismatch returns
// models.ErrRevConflict. expectRev 0 is the create case: it inserts only
// when no live record exists, so two racing creators cannot both win.
// Set is an unconditional write that resets the revision. ListIDs is
// best-effort: backends that cannot enumerate may return an empty slice.
type Store interface {
	Get(ctx context.Context, kind, id string, dest any) error
	Set(ctx context.Context, kind, id string, value any, ttl time.Duration) error
	CompareAndSet(ctx context.Context, kind, id string, value any, expectRev int64, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, kind, id string) error
	Exists(ctx context.Context, kind, id string) (bool, error)
	ListIDs(ctx context.Context, kind string) ([]string, error)
	Capabilities() Capabilities
}

// LinkTTL returns the storage TTL for a share link expiring at the
// given time: the remaining lifetime, floored at MinLinkTTL.
func LinkTTL(expiresAt, now time.Time) time.Duration {
	ttl := expiresAt.Sub(now)
	if ttl < MinLinkTTL {
		return MinLinkTTL
	}
	return ttl
}
