package table

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/shapematch/internal/board"
	"github.com/robalobadob/shapematch/internal/clock"
	"github.com/robalobadob/shapematch/internal/game"
	"github.com/robalobadob/shapematch/internal/layout"
	"github.com/robalobadob/shapematch/internal/scores"
	"github.com/robalobadob/shapematch/internal/shapes"
)

func openTable(t *testing.T) *Table {
	t.Helper()
	tb, err := Open(context.Background(), Options{
		Owner:      "p1",
		Store:      scores.NewMemory(),
		Randomizer: layout.New(3),
	})
	require.NoError(t, err)
	t.Cleanup(tb.Close)
	return tb
}

// next waits for the next event with the given name.
func next(t *testing.T, ch chan Event, name string) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			require.True(t, ok, "stream closed")
			if e.Name == name {
				return e
			}
		case <-deadline:
			t.Fatalf("no %q event", name)
		}
	}
}

func TestTable_DoAndView(t *testing.T) {
	tb := openTable(t)
	ctx := context.Background()

	view, err := tb.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, game.Idle, view.Status.Phase)
	assert.Len(t, view.Shapes, 5)

	require.NoError(t, tb.Do(ctx, func(s *game.Session) error { return s.Click() }))
	view, err = tb.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, game.Playing, view.Status.Phase)

	err = tb.Do(ctx, func(s *game.Session) error { return s.Start() })
	assert.ErrorIs(t, err, game.ErrBadTransition)
}

func TestTable_StreamsTicks(t *testing.T) {
	tb := openTable(t)
	sub := tb.Subscribe()
	defer tb.Unsubscribe(sub)

	require.NoError(t, tb.Do(context.Background(), func(s *game.Session) error { return s.Click() }))

	var st game.Status
	for st.ElapsedMs == 0 {
		e := next(t, sub, EventStatus)
		require.NoError(t, json.Unmarshal(e.Data, &st))
	}
	assert.Equal(t, "Stop", st.Button)
	assert.GreaterOrEqual(t, st.ElapsedMs, int64(100))
}

func TestTable_Completes(t *testing.T) {
	tb := openTable(t)
	ctx := context.Background()
	sub := tb.Subscribe()
	defer tb.Unsubscribe(sub)

	require.NoError(t, tb.Do(ctx, func(s *game.Session) error {
		if err := s.Click(); err != nil {
			return err
		}
		for _, sil := range s.Snapshot().Silhouettes {
			if _, err := s.DragEnd(sil.Kind, sil.Pos.X, sil.Pos.Y); err != nil {
				return err
			}
		}
		return nil
	}))

	e := next(t, sub, EventReport)
	var rep game.Report
	require.NoError(t, json.Unmarshal(e.Data, &rep))
	assert.True(t, rep.NewHighScore)
	assert.Contains(t, rep.Message, "Congratulations!")

	view, err := tb.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, game.Finished, view.Status.Phase)
	require.NotNil(t, view.Report)
	assert.Equal(t, rep, *view.Report)
}

func TestTable_Close(t *testing.T) {
	tb, err := Open(context.Background(), Options{Owner: "p2"})
	require.NoError(t, err)
	sub := tb.Subscribe()
	tb.Close()

	_, open := <-sub
	assert.False(t, open)
	err = tb.Do(context.Background(), func(*game.Session) error { return nil })
	assert.ErrorIs(t, err, clock.ErrClosed)
}

func TestTable_Idle(t *testing.T) {
	tb := openTable(t)
	now := time.Now()
	assert.False(t, tb.Idle(now, time.Minute))
	assert.True(t, tb.Idle(now.Add(2*time.Minute), time.Minute))

	sub := tb.Subscribe()
	assert.False(t, tb.Idle(now.Add(2*time.Minute), time.Minute), "open streams keep a table alive")
	tb.Unsubscribe(sub)
}

func TestFeed_Events(t *testing.T) {
	hub := NewBroadcaster()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)
	f := NewFeed(hub)

	f.RenderShape(game.ShapeUpdate{
		Shape: board.PlacedShape{Kind: shapes.Circle, Pos: board.Point{X: 700, Y: 190}},
		Transition: game.Transition{
			Duration: 250 * time.Millisecond,
			Easing:   game.EaseInOut,
		},
	})
	e := <-sub
	assert.Equal(t, EventShape, e.Name)
	assert.JSONEq(t, `{
		"shape": {"kind":"circle","pos":{"x":700,"y":190},"home":{"x":0,"y":0},
		          "slot":0,"color":"","draggable":false,"matched":false},
		"durationMs": 250,
		"easing": "ease-in-out"
	}`, string(e.Data))

	f.RenderStatus(game.Status{Phase: game.Playing, Button: "Stop"})
	e = <-sub
	assert.Equal(t, EventStatus, e.Name)
	assert.Contains(t, string(e.Data), `"phase":"playing"`)
}

func TestBroadcaster_DropsForLaggingSubscriber(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	for i := 0; i < 100; i++ {
		b.Publish(Event{Name: "status"})
	}
	assert.Len(t, ch, cap(ch))
	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.Subscribers())
}
