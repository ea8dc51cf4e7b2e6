package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"tripsync-backend/internal/models"
)

// Memory is the process-local backend. Writes are synchronous and
// cannot fail; TTLs are recorded but not enforced (SupportsTTL=false),
// so records live until deleted or the process exits.
type Memory struct {
	mu   sync.RWMutex
	rows map[string]memoryRow
}

type memoryRow struct {
	value []byte
	rev   int64
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{rows: make(map[string]memoryRow)}
}

func memKey(kind, id string) string { return kind + ":" + id }

// Get retrieves a record into dest.
func (m *Memory) Get(_ context.Context, kind, id string, dest any) error {
	m.mu.RLock()
	row, ok := m.rows[memKey(kind, id)]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
	}
	if err := json.Unmarshal(row.value, dest); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
	}
	setRev(dest, row.rev)
	return nil
}

// Set writes a record unconditionally, resetting its revision.
func (m *Memory) Set(_ context.Context, kind, id string, value any, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", kind, id, err)
	}

	m.mu.Lock()
	m.rows[memKey(kind, id)] = memoryRow{value: data, rev: 1}
	m.mu.Unlock()
	return nil
}

// CompareAndSet writes a record only if its stored revision matches.
func (m *Memory) CompareAndSet(_ context.Context, kind, id string, value any, expectRev int64, _ time.Duration) (int64, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s %s: %w", kind, id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := memKey(kind, id)
	row, ok := m.rows[key]
	if !ok {
		if expectRev != 0 {
			return 0, fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
		}
		m.rows[key] = memoryRow{value: data, rev: 1}
		return 1, nil
	}
	if row.rev != expectRev {
		return 0, fmt.Errorf("%s %s rev %d != %d: %w", kind, id, row.rev, expectRev, models.ErrRevConflict)
	}
	m.rows[key] = memoryRow{value: data, rev: row.rev + 1}
	return row.rev + 1, nil
}

// Delete removes a record. Deleting an absent record is a no-op.
func (m *Memory) Delete(_ context.Context, kind, id string) error {
	m.mu.Lock()
	delete(m.rows, memKey(kind, id))
	m.mu.Unlock()
	return nil
}

// Exists reports whether a record is present.
func (m *Memory) Exists(_ context.Context, kind, id string) (bool, error) {
	m.mu.RLock()
	_, ok := m.rows[memKey(kind, id)]
	m.mu.RUnlock()
	return ok, nil
}

// ListIDs enumerates all record ids of a kind.
func (m *Memory) ListIDs(_ context.Context, kind string) ([]string, error) {
	prefix := kind + ":"
	var ids []string

	m.mu.RLock()
	for key := range m.rows {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			ids = append(ids, key[len(prefix):])
		}
	}
	m.mu.RUnlock()
	return ids, nil
}

// Capabilities reports that this backend does not enforce TTLs.
func (m *Memory) Capabilities() Capabilities {
	return Capabilities{SupportsTTL: false}
}

var _ Store = (*Memory)(nil)

// revTracker is implemented by records that carry their storage
// revision so later writes can go through CompareAndSet.
type revTracker interface {
	SetRev(rev int64)
}

// setRev pushes the stored revision into records that track one.
// Record kinds without a revision ignore it.
func setRev(dest any, rev int64) {
	if r, ok := dest.(revTracker); ok {
		r.SetRev(rev)
	}
}
