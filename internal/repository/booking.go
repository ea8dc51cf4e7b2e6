package repository

import (
	"context"
	"errors"
	"fmt"

	"tripsync-backend/internal/models"
	"tripsync-backend/internal/storage"
)

// BookingStore persists Booking records under booking:{bookingId}_{memberId}
// with a one-year TTL, plus a per-user index set user:{userId}:bookings so
// "list my bookings" never needs a full scan.
type BookingStore struct {
	store storage.Store
}

// NewBookingStore creates a new booking store.
func NewBookingStore(store storage.Store) *BookingStore {
	return &BookingStore{store: store}
}

func userIndexID(userID string) string {
	return "user:" + userID + ":bookings"
}

// Create persists one member's booking record and adds its key to the
// member's index set. The two writes are sequential, not atomic.
func (s *BookingStore) Create(ctx context.Context, booking *models.Booking) error {
	if err := s.store.Set(ctx, storage.KindBooking, booking.Key(), booking, storage.BookingTTL); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	if err := s.addToIndex(ctx, booking.MemberID, booking.Key()); err != nil {
		return fmt.Errorf("failed to index booking: %w", err)
	}
	return nil
}

// Get retrieves one member's booking record.
func (s *BookingStore) Get(ctx context.Context, bookingID, memberID string) (*models.Booking, error) {
	var booking models.Booking
	if err := s.store.Get(ctx, storage.KindBooking, bookingID+"_"+memberID, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListByUser returns all booking records indexed for a user. Records
// that aged out of storage since they were indexed are skipped.
func (s *BookingStore) ListByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	idx, err := s.index(ctx, userID)
	if err != nil {
		return nil, err
	}

	bookings := make([]models.Booking, 0, len(idx.Keys))
	for _, key := range idx.Keys {
		var booking models.Booking
		if err := s.store.Get(ctx, storage.KindBooking, key, &booking); err != nil {
			continue
		}
		bookings = append(bookings, booking)
	}
	return bookings, nil
}

// bookingIndex is the stored per-user index record. The revision makes
// concurrent index updates CAS-safe; rev 0 means the index does not
// exist yet and the write is an insert.
type bookingIndex struct {
	Keys []string `json:"keys"`

	rev int64
}

func (x *bookingIndex) SetRev(rev int64) { x.rev = rev }

const indexRetries = 3

func (s *BookingStore) index(ctx context.Context, userID string) (*bookingIndex, error) {
	var idx bookingIndex
	err := s.store.Get(ctx, storage.KindIndex, userIndexID(userID), &idx)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	return &idx, nil
}

func (s *BookingStore) addToIndex(ctx context.Context, userID, key string) error {
	for attempt := 0; attempt < indexRetries; attempt++ {
		idx, err := s.index(ctx, userID)
		if err != nil {
			return err
		}
		exists := false
		for _, k := range idx.Keys {
			if k == key {
				exists = true
				break
			}
		}
		if exists {
			return nil
		}

		idx.Keys = append(idx.Keys, key)
		_, err = s.store.CompareAndSet(ctx, storage.KindIndex, userIndexID(userID), idx, idx.rev, storage.IndexTTL)
		if err == nil {
			return nil
		}
		if !errors.Is(err, models.ErrRevConflict) {
			return err
		}
	}
	return fmt.Errorf("index for user %s: %w", userID, models.ErrConflict)
}
