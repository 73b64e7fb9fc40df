// internal/store/memory.go
//
// In-memory registry of live tables.
// Each player (account id or anonymous id) owns at most one table. Tables
// hold a running loop, so they live in memory only and are dropped when
// idle; scores survive in the score store.
//
// Characteristics:
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Errors are returned for missing owners on Get().

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/shapematch/internal/table"
)

// ErrNotFound is returned by Get for an owner without a table.
var ErrNotFound = errors.New("table not found")

// Store defines the registry interface for live tables.
type Store interface {
	// Save adds or replaces the table of t.Owner. A replaced table is closed.
	Save(ctx context.Context, t *table.Table) error

	// Get retrieves the table of owner.
	Get(ctx context.Context, owner string) (*table.Table, error)

	// Delete closes and forgets the table of owner.
	Delete(ctx context.Context, owner string) error

	// Sweep closes tables idle for at least idle and returns how many.
	Sweep(ctx context.Context, now time.Time, idle time.Duration) int

	// CloseAll closes and forgets every table, ending open streams.
	CloseAll(ctx context.Context)

	// Len returns the number of live tables.
	Len() int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu     sync.RWMutex            // guards tables map
	tables map[string]*table.Table // keyed by Table.Owner
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{tables: make(map[string]*table.Table)}
}

func (m *memory) Save(ctx context.Context, t *table.Table) error {
	m.mu.Lock()
	old := m.tables[t.Owner]
	m.tables[t.Owner] = t
	m.mu.Unlock()
	if old != nil && old != t {
		old.Close()
	}
	return nil
}

func (m *memory) Get(ctx context.Context, owner string) (*table.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tables[owner]; ok {
		return t, nil
	}
	return nil, ErrNotFound
}

func (m *memory) Delete(ctx context.Context, owner string) error {
	m.mu.Lock()
	t, ok := m.tables[owner]
	delete(m.tables, owner)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	t.Close()
	return nil
}

func (m *memory) Sweep(ctx context.Context, now time.Time, idle time.Duration) int {
	var stale []*table.Table
	m.mu.Lock()
	for owner, t := range m.tables {
		if t.Idle(now, idle) {
			stale = append(stale, t)
			delete(m.tables, owner)
		}
	}
	m.mu.Unlock()
	for _, t := range stale {
		t.Close()
	}
	if len(stale) > 0 {
		log.Info().Int("tables", len(stale)).Msg("swept idle tables")
	}
	return len(stale)
}

func (m *memory) CloseAll(ctx context.Context) {
	m.mu.Lock()
	all := m.tables
	m.tables = make(map[string]*table.Table)
	m.mu.Unlock()
	for _, t := range all {
		t.Close()
	}
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables)
}
