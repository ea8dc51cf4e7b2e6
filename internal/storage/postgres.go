package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"tripsync-backend/internal/models"
)

// Postgres is the durable backend: a single kv_records table holding
// JSON documents with a per-row expiry and an optimistic revision.
// Expired rows are treated as absent on every read and physically
// removed by a background sweep.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres creates the durable store over an existing pool.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Get retrieves a record into dest.
func (p *Postgres) Get(ctx context.Context, kind, id string, dest any) error {
	query := `
		SELECT value, rev
		FROM kv_records
		WHERE kind = $1 AND id = $2
		  AND (expires_at IS NULL OR expires_at > now())
	`
	var (
		data []byte
		rev  int64
	)
	err := p.db.QueryRow(ctx, query, kind, id).Scan(&data, &rev)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
		}
		return fmt.Errorf("failed to get %s %s: %w (%w)", kind, id, models.ErrStorageUnavailable, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
	}
	setRev(dest, rev)
	return nil
}

// Set writes a record unconditionally, resetting its revision.
func (p *Postgres) Set(ctx context.Context, kind, id string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", kind, id, err)
	}

	query := `
		INSERT INTO kv_records (kind, id, value, rev, expires_at)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (kind, id) DO UPDATE
		SET value = EXCLUDED.value, rev = 1, expires_at = EXCLUDED.expires_at
	`
	if _, err := p.db.Exec(ctx, query, kind, id, data, expiry(ttl)); err != nil {
		return fmt.Errorf("failed to set %s %s: %w (%w)", kind, id, models.ErrStorageUnavailable, err)
	}
	return nil
}

// CompareAndSet writes a record only if its stored revision matches.
// expectRev 0 inserts, failing when a live record already exists.
func (p *Postgres) CompareAndSet(ctx context.Context, kind, id string, value any, expectRev int64, ttl time.Duration) (int64, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s %s: %w", kind, id, err)
	}

	if expectRev == 0 {
		// Insert-if-absent. An expired row still occupies the primary
		// key, so the conflict branch may reclaim it.
		query := `
			INSERT INTO kv_records (kind, id, value, rev, expires_at)
			VALUES ($1, $2, $3, 1, $4)
			ON CONFLICT (kind, id) DO UPDATE
			SET value = EXCLUDED.value, rev = 1, expires_at = EXCLUDED.expires_at
			WHERE kv_records.expires_at IS NOT NULL AND kv_records.expires_at <= now()
			RETURNING rev
		`
		var rev int64
		err := p.db.QueryRow(ctx, query, kind, id, data, expiry(ttl)).Scan(&rev)
		if err != nil {
			if err == pgx.ErrNoRows {
				return 0, fmt.Errorf("%s %s already exists: %w", kind, id, models.ErrRevConflict)
			}
			return 0, fmt.Errorf("failed to insert %s %s: %w (%w)", kind, id, models.ErrStorageUnavailable, err)
		}
		return rev, nil
	}

	query := `
		UPDATE kv_records
		SET value = $3, rev = rev + 1, expires_at = $4
		WHERE kind = $1 AND id = $2 AND rev = $5
		  AND (expires_at IS NULL OR expires_at > now())
		RETURNING rev
	`
	var rev int64
	err = p.db.QueryRow(ctx, query, kind, id, data, expiry(ttl), expectRev).Scan(&rev)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Either the row is gone or another writer bumped the rev;
			// distinguish so callers can retry only the latter.
			exists, exErr := p.Exists(ctx, kind, id)
			if exErr == nil && !exists {
				return 0, fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
			}
			return 0, fmt.Errorf("%s %s rev %d stale: %w", kind, id, expectRev, models.ErrRevConflict)
		}
		return 0, fmt.Errorf("failed to update %s %s: %w (%w)", kind, id, models.ErrStorageUnavailable, err)
	}
	return rev, nil
}

// Delete removes a record. Deleting an absent record is a no-op.
func (p *Postgres) Delete(ctx context.Context, kind, id string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM kv_records WHERE kind = $1 AND id = $2`, kind, id); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w (%w)", kind, id, models.ErrStorageUnavailable, err)
	}
	return nil
}

// Exists reports whether a live record is present.
func (p *Postgres) Exists(ctx context.Context, kind, id string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM kv_records
			WHERE kind = $1 AND id = $2
			  AND (expires_at IS NULL OR expires_at > now())
		)
	`
	var exists bool
	if err := p.db.QueryRow(ctx, query, kind, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s %s: %w (%w)", kind, id, models.ErrStorageUnavailable, err)
	}
	return exists, nil
}

// ListIDs enumerates all live record ids of a kind.
func (p *Postgres) ListIDs(ctx context.Context, kind string) ([]string, error) {
	query := `
		SELECT id FROM kv_records
		WHERE kind = $1 AND (expires_at IS NULL OR expires_at > now())
	`
	rows, err := p.db.Query(ctx, query, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s ids: %w (%w)", kind, models.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", kind, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Capabilities reports that this backend enforces per-key TTLs.
func (p *Postgres) Capabilities() Capabilities {
	return Capabilities{SupportsTTL: true}
}

// RunExpirySweep deletes expired rows every interval until ctx is done.
// Reads already filter expired rows, so the sweep is purely reclamation.
func (p *Postgres) RunExpirySweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tag, err := p.db.Exec(ctx, `DELETE FROM kv_records WHERE expires_at IS NOT NULL AND expires_at <= now()`)
			if err != nil {
				log.Error().Err(err).Msg("Storage expiry sweep failed")
				continue
			}
			if n := tag.RowsAffected(); n > 0 {
				log.Debug().Int64("rows", n).Msg("Expired storage records reclaimed")
			}
		}
	}
}

var _ Store = (*Postgres)(nil)

func expiry(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := time.Now().Add(ttl)
	return &t
}
