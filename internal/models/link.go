package models

import "time"

// ShareableLink is a standalone, booking-derived artifact with its own
// expiry and use-count lifecycle. It references a booking snapshot, not
// a live trip.
type ShareableLink struct {
	ID          string    `json:"id"`
	BookingID   string    `json:"bookingId"`
	OwnerID     string    `json:"ownerId"`
	Permissions string    `json:"permissions"`
	ExpiresAt   time.Time `json:"expiresAt"`
	MaxUses     int       `json:"maxUses"` // 0 = unlimited
	CurrentUses int       `json:"currentUses"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`

	Rev int64 `json:"-"`
}

// SetRev records the storage revision observed on a read.
func (l *ShareableLink) SetRev(rev int64) { l.Rev = rev }

// Expired reports whether the link's deadline has passed.
func (l *ShareableLink) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// Exhausted reports whether the link has reached its use limit.
func (l *ShareableLink) Exhausted() bool {
	return l.MaxUses > 0 && l.CurrentUses >= l.MaxUses
}
