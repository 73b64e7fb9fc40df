package httpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/shapematch/internal/config"
	"github.com/robalobadob/shapematch/internal/game"
	"github.com/robalobadob/shapematch/internal/scores"
	"github.com/robalobadob/shapematch/internal/shapes"
	"github.com/robalobadob/shapematch/internal/store"
	"github.com/robalobadob/shapematch/internal/table"
)

type client struct {
	t    *testing.T
	base string
	hc   *http.Client
}

func newTestServer(t *testing.T) (*client, *scores.Memory) {
	t.Helper()
	backend := scores.NewMemory()
	return serve(t, backend), backend
}

func serve(t *testing.T, backend Backend) *client {
	t.Helper()
	tables := store.NewMemoryStore()
	srv := New(testConfig(), tables, backend).WithGameConfig(game.Config{
		SettleDelay:   10 * time.Millisecond,
		AnnounceDelay: 10 * time.Millisecond,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		tables.CloseAll(context.Background())
	})
	return newClient(t, ts.URL)
}

func testConfig() config.Config {
	return config.Config{
		ClientOrigin: "http://localhost:5173",
		JWTSecret:    "test-secret",
		JWTExpires:   time.Hour,
		CookieName:   "shapematch_token",
		LayoutSeed:   1,
	}
}

// downAccounts answers account lookups as if the database were gone.
type downAccounts struct {
	*scores.Memory
}

func (downAccounts) UserByName(ctx context.Context, username string) (*scores.User, error) {
	return nil, fmt.Errorf("%w: load user: disk I/O error", scores.ErrUnavailable)
}

func newClient(t *testing.T, base string) *client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: base, hc: &http.Client{Jar: jar, Timeout: 5 * time.Second}}
}

func (c *client) do(method, path string, body any) (int, []byte) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			rd = strings.NewReader(s)
		} else {
			b, err := json.Marshal(body)
			require.NoError(c.t, err)
			rd = bytes.NewReader(b)
		}
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	require.NoError(c.t, err)
	resp, err := c.hc.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, out
}

func (c *client) state() game.Snapshot {
	c.t.Helper()
	code, body := c.do(http.MethodGet, "/game/state", nil)
	require.Equal(c.t, http.StatusOK, code, string(body))
	var snap game.Snapshot
	require.NoError(c.t, json.Unmarshal(body, &snap))
	return snap
}

// solve drops every shape onto its silhouette and waits for the round to end.
func (c *client) solve() game.Snapshot {
	c.t.Helper()
	for _, sil := range c.state().Silhouettes {
		code, body := c.do(http.MethodPost, "/game/drop", moveReq{Shape: sil.Kind.String(), X: sil.Pos.X, Y: sil.Pos.Y})
		require.Equal(c.t, http.StatusOK, code, string(body))
		var res dropRes
		require.NoError(c.t, json.Unmarshal(body, &res))
		require.Equal(c.t, "snap", res.Decision)
	}
	var snap game.Snapshot
	require.Eventually(c.t, func() bool {
		snap = c.state()
		return snap.Status.Phase == game.Finished && snap.Report != nil
	}, 2*time.Second, 10*time.Millisecond)
	return snap
}

func TestHealthAndNotFound(t *testing.T) {
	c, _ := newTestServer(t)

	code, body := c.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"ok":true,"tables":0}`, string(body))

	code, body = c.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "shapematch")

	code, body = c.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, string(body), "not_found")
}

func TestCORSPreflight(t *testing.T) {
	c, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, c.base+"/game/button", nil)
	require.NoError(t, err)
	resp, err := c.hc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestGuestPlaysARound(t *testing.T) {
	c, backend := newTestServer(t)

	snap := c.state()
	assert.Equal(t, game.Idle, snap.Status.Phase)
	assert.Equal(t, "Start", snap.Status.Button)
	assert.Len(t, snap.Shapes, 5)
	require.Len(t, snap.Specs, 5)
	assert.Equal(t, shapes.Rectangle, snap.Specs[0].Kind)
	assert.Equal(t, 92.0, snap.Specs[0].Width)
	assert.Equal(t, 6, snap.Specs[4].Points)
	assert.Equal(t, shapes.DefaultStyle(), snap.Style)

	code, body := c.do(http.MethodPost, "/game/button", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	var st game.Status
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, game.Playing, st.Phase)
	assert.Equal(t, "Stop", st.Button)

	done := c.solve()
	assert.True(t, done.Report.NewHighScore)
	assert.Contains(t, done.Report.Message, "NEW HIGH SCORE!")
	for _, sh := range done.Shapes {
		assert.Equal(t, sh.Home, sh.Pos)
	}

	code, body = c.do(http.MethodGet, "/scores/me", nil)
	require.Equal(t, http.StatusOK, code)
	var mine scores.Scores
	require.NoError(t, json.Unmarshal(body, &mine))
	assert.Equal(t, done.Report.Score, mine.High)
	assert.Equal(t, done.Report.Score, mine.Last)

	code, body = c.do(http.MethodGet, "/scores/leaderboard?limit=5", nil)
	require.Equal(t, http.StatusOK, code)
	var lb []scores.Result
	require.NoError(t, json.Unmarshal(body, &lb))
	require.Len(t, lb, 1)
	assert.Equal(t, scores.ToMs(done.Report.Score), lb[0].ElapsedMs)

	all, err := backend.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	code, body = c.do(http.MethodPost, "/game/button", nil)
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Equal(t, uint64(2), c.state().Status.Round)
}

func TestGameErrors(t *testing.T) {
	c, _ := newTestServer(t)

	code, body := c.do(http.MethodPost, "/game/drop", moveReq{Shape: "circle", X: 1, Y: 1})
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, string(body), "not_playing")

	code, _ = c.do(http.MethodPost, "/game/stop", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = c.do(http.MethodPost, "/game/start", nil)
	require.Equal(t, http.StatusOK, code)

	code, body = c.do(http.MethodPost, "/game/drop", moveReq{Shape: "hexagon", X: 1, Y: 1})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(body), "unknown_shape")

	code, _ = c.do(http.MethodPost, "/game/drag", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = c.do(http.MethodPost, "/game/drag", moveReq{Shape: "star", X: 300, Y: 300})
	assert.Equal(t, http.StatusNoContent, code)

	code, body = c.do(http.MethodPost, "/game/drop", moveReq{Shape: "star", X: 300, Y: 300})
	require.Equal(t, http.StatusOK, code)
	var res dropRes
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, "return", res.Decision)

	code, _ = c.do(http.MethodPost, "/game/restart", nil)
	assert.Equal(t, http.StatusConflict, code, "restart needs a stopped game")

	code, _ = c.do(http.MethodGet, "/scores/leaderboard?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAuthFlow(t *testing.T) {
	c, _ := newTestServer(t)

	code, _ := c.do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	// a guest finishes a round, then signs up
	c.do(http.MethodPost, "/game/button", nil)
	guest := c.solve().Report.Score

	code, body := c.do(http.MethodPost, "/auth/signup", credentials{Username: "ada", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, code, string(body))

	code, body = c.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, code)
	var me scores.User
	require.NoError(t, json.Unmarshal(body, &me))
	assert.Equal(t, "ada", me.Username)
	assert.NotContains(t, string(body), "correct-horse")

	code, body = c.do(http.MethodGet, "/scores/me", nil)
	require.Equal(t, http.StatusOK, code)
	var mine scores.Scores
	require.NoError(t, json.Unmarshal(body, &mine))
	assert.Equal(t, guest, mine.High, "guest scores move to the account")
	assert.Equal(t, guest, c.state().Status.HighScore)

	c.do(http.MethodPost, "/game/button", nil)
	c.solve()
	code, body = c.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &me))
	assert.Equal(t, 1, me.RoundsCompleted)

	code, _ = c.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = c.do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	other := newClient(t, c.base)
	code, _ = other.do(http.MethodPost, "/auth/signup", credentials{Username: "ADA", Password: "another-pass"})
	assert.Equal(t, http.StatusConflict, code)
	code, _ = other.do(http.MethodPost, "/auth/signup", credentials{Username: "x", Password: "another-pass"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = other.do(http.MethodPost, "/auth/login", credentials{Username: "ada", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = other.do(http.MethodPost, "/auth/login", credentials{Username: "ada", Password: "correct-horse"})
	assert.Equal(t, http.StatusOK, code)
	code, _ = other.do(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestLogin_StoreUnavailable(t *testing.T) {
	c := serve(t, downAccounts{scores.NewMemory()})

	code, body := c.do(http.MethodPost, "/auth/login", credentials{Username: "ada", Password: "correct-horse"})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.JSONEq(t, `{"error":"scores_unavailable"}`, string(body))
}

func TestBearerToken(t *testing.T) {
	c, _ := newTestServer(t)
	s := &Server{cfg: config.Config{JWTSecret: "test-secret", JWTExpires: time.Hour}}

	tok, _, err := s.signJWT("nobody", "ghost")
	require.NoError(t, err)
	id, name, err := s.parseJWT(tok)
	require.NoError(t, err)
	assert.Equal(t, "nobody", id)
	assert.Equal(t, "ghost", name)

	other := &Server{cfg: config.Config{JWTSecret: "different"}}
	_, _, err = other.parseJWT(tok)
	assert.Error(t, err)

	// a valid token for a user that does not exist is treated as a guest
	req, err := http.NewRequest(http.MethodGet, c.base+"/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := c.hc.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStream(t *testing.T) {
	c, _ := newTestServer(t)
	c.state() // sets the anon cookie

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/game/stream", nil)
	require.NoError(t, err)
	streamer := &http.Client{Jar: c.hc.Jar}
	resp, err := streamer.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 256)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 64*1024), 1<<20)
		for sc.Scan() {
			if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				events <- name
			}
		}
		close(events)
	}()

	waitFor := func(name string) {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case e, ok := <-events:
				require.True(t, ok, "stream ended before %q", name)
				if e == name {
					return
				}
			case <-deadline:
				t.Fatalf("no %q event", name)
			}
		}
	}

	waitFor("snapshot")
	code, _ := c.do(http.MethodPost, "/game/button", nil)
	require.Equal(t, http.StatusOK, code)
	waitFor("shape")
	waitFor("status")
}

func TestTableFor(t *testing.T) {
	tables := store.NewMemoryStore()
	t.Cleanup(func() { tables.CloseAll(context.Background()) })
	srv := New(testConfig(), tables, scores.NewMemory())
	ctx := context.Background()

	var wg sync.WaitGroup
	got := make([]*table.Table, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tb, err := srv.tableFor(ctx, "p1")
			assert.NoError(t, err)
			got[i] = tb
		}(i)
	}
	wg.Wait()
	for _, tb := range got {
		assert.Same(t, got[0], tb)
	}
	assert.Equal(t, 1, tables.Len())

	// an existing table is found while another owner's table is being opened
	srv.openMu.Lock()
	defer srv.openMu.Unlock()
	done := make(chan *table.Table, 1)
	go func() {
		tb, _ := srv.tableFor(ctx, "p1")
		done <- tb
	}()
	select {
	case tb := <-done:
		assert.Same(t, got[0], tb)
	case <-time.After(time.Second):
		t.Fatal("lookup of an open table waited for openMu")
	}
}
