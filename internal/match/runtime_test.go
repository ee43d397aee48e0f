package match

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lguibr/pongrt/internal/actor"
	"github.com/lguibr/pongrt/internal/logging"
	"github.com/lguibr/pongrt/internal/physics"
	"github.com/lguibr/pongrt/internal/store"
)

type fakeConn struct {
	mu  sync.Mutex
	out []interface{}
}

func (c *fakeConn) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, v)
	return nil
}

func (c *fakeConn) messages() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interface{}, len(c.out))
	copy(out, c.out)
	return out
}

// flakyConn records sends like fakeConn until failing is set; from then on
// every Send returns an error.
type flakyConn struct {
	fakeConn
	failing atomic.Bool
	failed  atomic.Int32
}

func (c *flakyConn) Send(v interface{}) error {
	if c.failing.Load() {
		c.failed.Add(1)
		return errors.New("connection closed")
	}
	return c.fakeConn.Send(v)
}

func (c *fakeConn) last() interface{} {
	msgs := c.messages()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	matches map[string]*store.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: make(map[string]*store.Match)}
}

func (f *fakeMatchRepo) Create(_ context.Context, m *store.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.matches[m.ID] = &cp
	return nil
}

func (f *fakeMatchRepo) Get(_ context.Context, id string) (*store.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok {
		return nil, assert.AnError
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMatchRepo) UpdateLifecycle(_ context.Context, id string, state store.MatchState, startedAt *time.Time, pausedBy *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.matches[id]
	m.State = state
	if startedAt != nil {
		m.StartedAt = startedAt
	}
	m.PausedBy = pausedBy
	return nil
}

func (f *fakeMatchRepo) RecordResult(_ context.Context, id, winnerID string, p1Score, p2Score int, terminal store.MatchState, endedAt time.Time) (*store.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.matches[id]
	if m.State == store.MatchEnded || m.State == store.MatchForfeited {
		cp := *m
		return &cp, nil
	}
	w := winnerID
	m.WinnerID = &w
	m.P1Score = p1Score
	m.P2Score = p2Score
	m.State = terminal
	m.EndedAt = &endedAt
	cp := *m
	return &cp, nil
}

func testDeps(repo store.MatchRepository) Deps {
	return Deps{
		MatchRepo:         repo,
		Log:               logging.Nop(),
		Physics:           physics.DefaultConfig(),
		TickInterval:      5 * time.Millisecond,
		CountdownDuration: 30 * time.Millisecond,
		RematchTTL:        60 * time.Millisecond,
		CleanupDelay:      50 * time.Millisecond,
		RateLimitPerSec:   60,
	}
}

func spawnRuntime(t *testing.T, engine *actor.Engine, repo store.MatchRepository, id, p1, p2 string) *actor.PID {
	t.Helper()
	m := &store.Match{ID: id, P1ID: p1, P2ID: p2, State: store.MatchWaiting, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), m))
	return engine.Spawn(actor.NewProps(NewProducer(id, p1, p2, nil, nil, testDeps(repo))))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestReadyBothSidesStartsCountdownThenPlay(t *testing.T) {
	engine := actor.NewEngine(nil)
	repo := newFakeMatchRepo()
	pid := spawnRuntime(t, engine, repo, "m1", "p1", "p2")

	c1, c2 := &fakeConn{}, &fakeConn{}
	engine.Send(pid, Connect{UserID: "p1", Conn: c1}, nil)
	engine.Send(pid, Connect{UserID: "p2", Conn: c2}, nil)
	engine.Send(pid, Ready{UserID: "p1"}, nil)
	engine.Send(pid, Ready{UserID: "p2"}, nil)

	waitFor(t, func() bool {
		for _, msg := range c1.messages() {
			if _, ok := msg.(outState); ok {
				return true
			}
		}
		return false
	})
}

func TestDisconnectMidPlayForfeits(t *testing.T) {
	engine := actor.NewEngine(nil)
	repo := newFakeMatchRepo()
	pid := spawnRuntime(t, engine, repo, "m2", "p1", "p2")

	c1, c2 := &fakeConn{}, &fakeConn{}
	engine.Send(pid, Connect{UserID: "p1", Conn: c1}, nil)
	engine.Send(pid, Connect{UserID: "p2", Conn: c2}, nil)
	engine.Send(pid, Ready{UserID: "p1"}, nil)
	engine.Send(pid, Ready{UserID: "p2"}, nil)

	waitFor(t, func() bool {
		for _, msg := range c1.messages() {
			if _, ok := msg.(outState); ok {
				return true
			}
		}
		return false
	})

	engine.Send(pid, Disconnect{UserID: "p1"}, nil)

	waitFor(t, func() bool {
		m, _ := repo.Get(context.Background(), "m2")
		return m.State == store.MatchForfeited
	})
	m, _ := repo.Get(context.Background(), "m2")
	require.NotNil(t, m.WinnerID)
	assert.Equal(t, "p2", *m.WinnerID)

	waitFor(t, func() bool {
		last := c2.last()
		go2, ok := last.(outGameOver)
		return ok && go2.Reason == "forfeit" && go2.WinnerID == "p2"
	})
}

func TestPauseOnlyPauserMayResume(t *testing.T) {
	engine := actor.NewEngine(nil)
	repo := newFakeMatchRepo()
	pid := spawnRuntime(t, engine, repo, "m3", "p1", "p2")

	c1, c2 := &fakeConn{}, &fakeConn{}
	engine.Send(pid, Connect{UserID: "p1", Conn: c1}, nil)
	engine.Send(pid, Connect{UserID: "p2", Conn: c2}, nil)
	engine.Send(pid, Ready{UserID: "p1"}, nil)
	engine.Send(pid, Ready{UserID: "p2"}, nil)

	waitFor(t, func() bool {
		for _, msg := range c1.messages() {
			if _, ok := msg.(outState); ok {
				return true
			}
		}
		return false
	})

	engine.Send(pid, Pause{UserID: "p1"}, nil)
	waitFor(t, func() bool {
		m, _ := repo.Get(context.Background(), "m3")
		return m.State == store.MatchPaused
	})

	engine.Send(pid, Resume{UserID: "p2"}, nil)
	waitFor(t, func() bool {
		last := c2.last()
		e, ok := last.(outError)
		return ok && e.Code == "UNAUTHORIZED_RESUME"
	})

	m, _ := repo.Get(context.Background(), "m3")
	assert.Equal(t, store.MatchPaused, m.State)
}

func TestEmptyPreStartDestroysRuntime(t *testing.T) {
	engine := actor.NewEngine(nil)
	repo := newFakeMatchRepo()
	m := &store.Match{ID: "m5", P1ID: "p1", P2ID: "p2", State: store.MatchWaiting, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), m))

	var mu sync.Mutex
	destroyed := ""
	deps := testDeps(repo)
	deps.OnDestroy = func(id string) {
		mu.Lock()
		destroyed = id
		mu.Unlock()
	}
	pid := engine.Spawn(actor.NewProps(NewProducer("m5", "p1", "p2", nil, nil, deps)))

	c1 := &fakeConn{}
	engine.Send(pid, Connect{UserID: "p1", Conn: c1}, nil)
	engine.Send(pid, Disconnect{UserID: "p1"}, nil)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return destroyed == "m5"
	})

	row, _ := repo.Get(context.Background(), "m5")
	assert.Equal(t, store.MatchWaiting, row.State, "a never-started match stays waiting, not forfeited")
}

func TestBothAbsentUsesEarlierSeatedTie(t *testing.T) {
	engine := actor.NewEngine(nil)
	repo := newFakeMatchRepo()
	pid := spawnRuntime(t, engine, repo, "m4", "p1", "p2")

	c1, c2 := &fakeConn{}, &flakyConn{}
	engine.Send(pid, Connect{UserID: "p1", Conn: c1}, nil)
	engine.Send(pid, Connect{UserID: "p2", Conn: c2}, nil)
	engine.Send(pid, Ready{UserID: "p1"}, nil)
	engine.Send(pid, Ready{UserID: "p2"}, nil)

	waitFor(t, func() bool {
		for _, msg := range c1.messages() {
			if _, ok := msg.(outState); ok {
				return true
			}
		}
		return false
	})

	// p2's socket dies silently: the runtime drops it on the next failed
	// send, so p2 is absent without a forfeit being triggered.
	c2.failing.Store(true)
	waitFor(t, func() bool { return c2.failed.Load() > 0 })

	// p1 then disconnects while p2 is absent too; p1 connected first, so the
	// earlier-seated tie-break awards p1 the win.
	engine.Send(pid, Disconnect{UserID: "p1"}, nil)

	waitFor(t, func() bool {
		m, _ := repo.Get(context.Background(), "m4")
		return m.State == store.MatchForfeited
	})
	m, _ := repo.Get(context.Background(), "m4")
	require.NotNil(t, m.WinnerID)
	assert.Equal(t, "p1", *m.WinnerID)
}
