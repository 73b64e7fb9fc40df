// internal/scores/sql.go
//
// SQLite implementation of Store and Accounts.
// Responsibilities:
//   - Opening the database with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying the embedded migrations (idempotent, recorded in _migrations).
//   - Score, result history, leaderboard and account queries.

package scores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/shapematch/assets"
)

// SQL is a Store and Accounts backed by database/sql.
type SQL struct {
	db *sql.DB
}

// Open opens (and creates if missing) a SQLite database file and applies
// migrations. ":memory:" is accepted for tests.
func Open(dsn string) (*SQL, error) {
	if dsn != ":memory:" {
		dir := filepath.Dir(dsn)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQL{db: db}, nil
}

// Migrate applies the embedded migrations that have not run yet, each in
// its own transaction.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}
	migrations, err := assets.Migrations()
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	for _, m := range migrations {
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, m.Name).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", m.Name).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", m.Name, err)
		}
		log.Info().Str("migration", m.Name).Msg("applied")
	}
	return nil
}

// Close closes the database.
func (s *SQL) Close() error { return s.db.Close() }

// resultTimeLayout is fixed width so created_at sorts lexically.
const resultTimeLayout = "2006-01-02T15:04:05.000Z07:00"

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

func (s *SQL) Load(ctx context.Context, owner string) (Scores, error) {
	var last, high int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_ms, high_ms FROM scores WHERE owner_id=?`, owner,
	).Scan(&last, &high)
	if errors.Is(err, sql.ErrNoRows) {
		return Scores{}, nil
	}
	if err != nil {
		return Scores{}, unavailable("load", err)
	}
	return Scores{Last: FromMs(last), High: FromMs(high)}, nil
}

func (s *SQL) Save(ctx context.Context, owner string, sc Scores) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO scores (owner_id, last_ms, high_ms, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(owner_id) DO UPDATE SET
            last_ms=excluded.last_ms,
            high_ms=excluded.high_ms,
            updated_at=excluded.updated_at`,
		owner, ToMs(sc.Last), ToMs(sc.High), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return unavailable("save", err)
	}
	return nil
}

// Record inserts the result and bumps the owner's completed-round counter
// when the owner has an account.
func (s *SQL) Record(ctx context.Context, r Result) error {
	if r.At.IsZero() {
		r.At = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("record", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO results (owner_id, elapsed_ms, new_high, created_at)
        VALUES (?, ?, ?, ?)`,
		r.OwnerID, r.ElapsedMs, r.NewHigh, r.At.UTC().Format(resultTimeLayout),
	); err != nil {
		return unavailable("record", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET rounds_completed = rounds_completed + 1 WHERE id=?`, r.OwnerID,
	); err != nil {
		return unavailable("record", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("record", err)
	}
	return nil
}

// Leaderboard is ordered by elapsed time, then by who got there first.
func (s *SQL) Leaderboard(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT r.owner_id, COALESCE(u.username, ''), r.elapsed_ms, r.new_high, r.created_at
        FROM results r
        LEFT JOIN users u ON u.id = r.owner_id
        ORDER BY r.elapsed_ms ASC, r.created_at ASC
        LIMIT ?`, limit,
	)
	if err != nil {
		return nil, unavailable("leaderboard", err)
	}
	defer rows.Close()

	out := make([]Result, 0, limit)
	for rows.Next() {
		var r Result
		var at string
		if err := rows.Scan(&r.OwnerID, &r.Name, &r.ElapsedMs, &r.NewHigh, &at); err != nil {
			return nil, unavailable("leaderboard", err)
		}
		if r.At, err = time.Parse(resultTimeLayout, at); err != nil {
			return nil, unavailable("leaderboard", fmt.Errorf("created_at %q: %w", at, err))
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("leaderboard", err)
	}
	return out, nil
}

func (s *SQL) Claim(ctx context.Context, from, to string) error {
	if from == "" || to == "" || from == to {
		return nil
	}
	guest, err := s.Load(ctx, from)
	if err != nil {
		return err
	}
	account, err := s.Load(ctx, to)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("claim", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE results SET owner_id=? WHERE owner_id=?`, to, from); err != nil {
		return unavailable("claim", err)
	}
	if guest != (Scores{}) {
		merged := mergeScores(account, guest)
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO scores (owner_id, last_ms, high_ms, updated_at)
            VALUES (?, ?, ?, ?)
            ON CONFLICT(owner_id) DO UPDATE SET
                last_ms=excluded.last_ms,
                high_ms=excluded.high_ms,
                updated_at=excluded.updated_at`,
			to, ToMs(merged.Last), ToMs(merged.High), time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return unavailable("claim", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM scores WHERE owner_id=?`, from); err != nil {
			return unavailable("claim", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("claim", err)
	}
	return nil
}

func (s *SQL) CreateUser(ctx context.Context, id, username, passwordHash string) (*User, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE lower(username)=lower(?)`, username,
	).Scan(&exists)
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, unavailable("create user", err)
	}
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		id, username, passwordHash, now.Format(time.RFC3339),
	); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrUsernameTaken
		}
		return nil, unavailable("create user", err)
	}
	return &User{ID: id, Username: username, PasswordHash: passwordHash, CreatedAt: now.Truncate(time.Second)}, nil
}

func (s *SQL) UserByName(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, username, password_hash, created_at, rounds_completed
        FROM users WHERE lower(username)=lower(?)`, username)
	return scanUser(row)
}

func (s *SQL) UserByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, username, password_hash, created_at, rounds_completed
        FROM users WHERE id=?`, id)
	return scanUser(row)
}

// scanUser converts a *sql.Row into a User.
func scanUser(row *sql.Row) (*User, error) {
	var u User
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created, &u.RoundsCompleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable("load user", err)
	}
	var err error
	if u.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, unavailable("load user", fmt.Errorf("created_at %q: %w", created, err))
	}
	return &u, nil
}
