// internal/scores/scores.go
//
// Persistence for completion times and player accounts.
// Defines:
//   - Scores: last and best completion time of one owner, in seconds.
//   - Result: one completed round, for history and the leaderboard.
//   - User: an account; guests own scores through an anonymous id instead.
//   - Store / Accounts: the interfaces the game and HTTP layers depend on.
//
// Implementations: Memory (this package, tests and SCORE_STORE=memory) and
// SQL (SQLite via mattn/go-sqlite3). Times are kept as integer milliseconds.

package scores

import (
	"context"
	"errors"
	"math"
	"time"
)

var (
	// ErrUnavailable wraps any failure of the backing storage. Gameplay
	// treats it as "no stored scores" and carries on.
	ErrUnavailable = errors.New("score store unavailable")

	ErrNotFound      = errors.New("not found")
	ErrUsernameTaken = errors.New("username taken")
)

// Scores holds an owner's last and best times in seconds. Zero means unset.
type Scores struct {
	Last float64 `json:"lastScore"`
	High float64 `json:"highScore"`
}

// Result is one completed round.
type Result struct {
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name,omitempty"` // username when the owner has an account
	ElapsedMs int64     `json:"elapsedMs"`
	NewHigh   bool      `json:"newHigh"`
	At        time.Time `json:"at"`
}

// User is a registered player.
type User struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	PasswordHash    string    `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
	RoundsCompleted int       `json:"roundsCompleted"`
}

// Store loads and saves scores and keeps the result history.
type Store interface {
	// Load returns the stored scores of owner, zero values when none exist.
	Load(ctx context.Context, owner string) (Scores, error)
	// Save replaces the stored scores of owner.
	Save(ctx context.Context, owner string, s Scores) error
	// Record appends a completed round.
	Record(ctx context.Context, r Result) error
	// Leaderboard returns the fastest results, fastest first.
	Leaderboard(ctx context.Context, limit int) ([]Result, error)
	// Claim moves history and scores from one owner id to another
	// (a guest signing in). Best times are merged.
	Claim(ctx context.Context, from, to string) error
}

// Accounts manages registered players.
type Accounts interface {
	CreateUser(ctx context.Context, id, username, passwordHash string) (*User, error)
	UserByName(ctx context.Context, username string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)
}

const defaultLeaderboardLimit = 20

// ToMs converts a score in seconds to whole milliseconds.
func ToMs(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}

// FromMs converts milliseconds to a score in seconds.
func FromMs(ms int64) float64 {
	return float64(ms) / 1000
}

// better reports whether candidate beats the current best (zero = unset).
func better(candidate, best int64) bool {
	return candidate > 0 && (best == 0 || candidate < best)
}
