// internal/table/table.go
//
// A table is one player's live game.
// Responsibilities:
//   - Own a clock.Loop so the session, its timers and every request run on
//     one goroutine.
//   - Publish render events to SSE subscribers through a Broadcaster.
//   - Track last activity so idle tables can be swept.

package table

import (
	"context"
	"sync"
	"time"

	"github.com/robalobadob/shapematch/internal/clock"
	"github.com/robalobadob/shapematch/internal/game"
	"github.com/robalobadob/shapematch/internal/layout"
	"github.com/robalobadob/shapematch/internal/scores"
)

// Options configures a new table.
type Options struct {
	Owner      string
	Store      scores.Store
	Randomizer *layout.Randomizer
	Config     game.Config
}

// Table couples a game session with its event loop and subscribers.
type Table struct {
	Owner string

	loop    *clock.Loop
	hub     *Broadcaster
	session *game.Session

	mu       sync.Mutex
	lastSeen time.Time
}

// Open starts a loop and builds the owner's session on it.
func Open(ctx context.Context, opts Options) (*Table, error) {
	loop := clock.NewLoop()
	loop.Start(context.Background())
	t := &Table{
		Owner:    opts.Owner,
		loop:     loop,
		hub:      NewBroadcaster(),
		lastSeen: time.Now(),
	}

	var err error
	derr := loop.Do(ctx, func() {
		t.session, err = game.New(ctx, game.Options{
			Clock:      loop,
			Store:      opts.Store,
			Owner:      opts.Owner,
			Renderer:   NewFeed(t.hub),
			Randomizer: opts.Randomizer,
			Config:     opts.Config,
		})
	})
	if derr != nil {
		loop.Close()
		return nil, derr
	}
	if err != nil {
		loop.Close()
		return nil, err
	}
	return t, nil
}

// Do runs f against the session on the table's loop and returns its error.
func (t *Table) Do(ctx context.Context, f func(s *game.Session) error) error {
	t.touch()
	var ferr error
	if err := t.loop.Do(ctx, func() { ferr = f(t.session) }); err != nil {
		return err
	}
	return ferr
}

// View returns a snapshot of the session.
func (t *Table) View(ctx context.Context) (game.Snapshot, error) {
	var snap game.Snapshot
	err := t.Do(ctx, func(s *game.Session) error {
		snap = s.Snapshot()
		return nil
	})
	return snap, err
}

// Subscribe returns a channel of render events.
func (t *Table) Subscribe() chan Event {
	t.touch()
	return t.hub.Subscribe()
}

// Unsubscribe ends a subscription.
func (t *Table) Unsubscribe(ch chan Event) { t.hub.Unsubscribe(ch) }

// Idle reports whether the table has seen no activity for d and has no
// open streams.
func (t *Table) Idle(now time.Time, d time.Duration) bool {
	if t.hub.Subscribers() > 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return now.Sub(t.lastSeen) >= d
}

// Close cancels the session's timers, stops the loop and ends all streams.
func (t *Table) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = t.loop.Do(ctx, func() { t.session.Close() })
	t.loop.Close()
	t.hub.CloseAll()
}

func (t *Table) touch() {
	t.mu.Lock()
	t.lastSeen = time.Now()
	t.mu.Unlock()
}
