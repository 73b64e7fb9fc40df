// internal/scores/memory.go
//
// In-memory implementation of Store and Accounts.
// Characteristics:
//   - Concurrency-safe via RWMutex.
//   - State is lost when the process restarts.

package scores

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is a map-backed Store and Accounts.
type Memory struct {
	mu      sync.RWMutex
	scores  map[string]Scores
	results []Result
	users   map[string]*User // keyed by ID
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		scores: make(map[string]Scores),
		users:  make(map[string]*User),
	}
}

func (m *Memory) Load(ctx context.Context, owner string) (Scores, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scores[owner], nil
}

func (m *Memory) Save(ctx context.Context, owner string, s Scores) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[owner] = s
	return nil
}

func (m *Memory) Record(ctx context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.At.IsZero() {
		r.At = time.Now().UTC()
	}
	m.results = append(m.results, r)
	if u, ok := m.users[r.OwnerID]; ok {
		u.RoundsCompleted++
	}
	return nil
}

func (m *Memory) Leaderboard(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Result, len(m.results))
	copy(out, m.results)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ElapsedMs == out[j].ElapsedMs {
			return out[i].At.Before(out[j].At)
		}
		return out[i].ElapsedMs < out[j].ElapsedMs
	})
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		if u, ok := m.users[out[i].OwnerID]; ok {
			out[i].Name = u.Username
		}
	}
	return out, nil
}

func (m *Memory) Claim(ctx context.Context, from, to string) error {
	if from == "" || to == "" || from == to {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.results {
		if m.results[i].OwnerID == from {
			m.results[i].OwnerID = to
		}
	}
	guest, ok := m.scores[from]
	if !ok {
		return nil
	}
	delete(m.scores, from)
	m.scores[to] = mergeScores(m.scores[to], guest)
	return nil
}

func (m *Memory) CreateUser(ctx context.Context, id, username, passwordHash string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return nil, ErrUsernameTaken
		}
	}
	u := &User{ID: id, Username: username, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	m.users[id] = u
	cp := *u
	return &cp, nil
}

func (m *Memory) UserByName(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UserByID(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrNotFound
}

// mergeScores keeps the account's last time (falling back to the guest's)
// and the better of the two best times.
func mergeScores(account, guest Scores) Scores {
	out := account
	if out.Last == 0 {
		out.Last = guest.Last
	}
	if better(ToMs(guest.High), ToMs(out.High)) {
		out.High = guest.High
	}
	return out
}
