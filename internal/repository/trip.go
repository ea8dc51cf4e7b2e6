package repository

import (
	"context"
	"fmt"

	"tripsync-backend/internal/models"
	"tripsync-backend/internal/storage"
)

// TripStore persists Trip aggregates under trip:{tripId} with a
// 24-hour TTL. Trips are never explicitly deleted in the normal flow;
// they age out of the durable backend by TTL.
type TripStore struct {
	store storage.Store
}

// NewTripStore creates a new trip store.
func NewTripStore(store storage.Store) *TripStore {
	return &TripStore{store: store}
}

// Get retrieves a trip. The returned trip carries its storage revision.
func (s *TripStore) Get(ctx context.Context, tripID string) (*models.Trip, error) {
	var trip models.Trip
	if err := s.store.Get(ctx, storage.KindTrip, tripID, &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

// Create persists a brand-new trip.
func (s *TripStore) Create(ctx context.Context, trip *models.Trip) error {
	if err := s.store.Set(ctx, storage.KindTrip, trip.ID, trip, storage.TripTTL); err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	trip.Rev = 1
	return nil
}

// Update persists a mutated trip against its loaded revision. Returns
// models.ErrRevConflict when a concurrent writer got there first.
func (s *TripStore) Update(ctx context.Context, trip *models.Trip) error {
	rev, err := s.store.CompareAndSet(ctx, storage.KindTrip, trip.ID, trip, trip.Rev, storage.TripTTL)
	if err != nil {
		return err
	}
	trip.Rev = rev
	return nil
}

// Exists reports whether a trip is present.
func (s *TripStore) Exists(ctx context.Context, tripID string) (bool, error) {
	return s.store.Exists(ctx, storage.KindTrip, tripID)
}
