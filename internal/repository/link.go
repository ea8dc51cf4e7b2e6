package repository

import (
	"context"
	"errors"
	"time"

	"tripsync-backend/internal/models"
	"tripsync-backend/internal/storage"
)

// LinkStore persists ShareableLink records under link:{linkId}. The
// storage TTL tracks the link's own expiry, floored at one minute so a
// just-expired link can still serve its reduced preview payload.
type LinkStore struct {
	store storage.Store
}

// NewLinkStore creates a new share-link store.
func NewLinkStore(store storage.Store) *LinkStore {
	return &LinkStore{store: store}
}

// Create persists a new share link.
func (s *LinkStore) Create(ctx context.Context, link *models.ShareableLink) error {
	ttl := storage.LinkTTL(link.ExpiresAt, time.Now())
	if err := s.store.Set(ctx, storage.KindLink, link.ID, link, ttl); err != nil {
		return err
	}
	link.Rev = 1
	return nil
}

// Get retrieves a share link.
func (s *LinkStore) Get(ctx context.Context, linkID string) (*models.ShareableLink, error) {
	var link models.ShareableLink
	if err := s.store.Get(ctx, storage.KindLink, linkID, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// Update persists a mutated link (use counting) against the revision it
// was read at, keeping its TTL in step with the link's expiry. A
// concurrent mutation surfaces models.ErrRevConflict.
func (s *LinkStore) Update(ctx context.Context, link *models.ShareableLink) error {
	ttl := storage.LinkTTL(link.ExpiresAt, time.Now())
	rev, err := s.store.CompareAndSet(ctx, storage.KindLink, link.ID, link, link.Rev, ttl)
	if err != nil {
		return err
	}
	link.Rev = rev
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
