package transport

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lguibr/pongrt/internal/store"
)

// Minimal in-memory repository fakes, the same shape
// internal/match/runtime_test.go uses for its fakeMatchRepo, extended to
// the other four repository interfaces so the transport layer can be
// exercised end-to-end without a real database.

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
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	cp := *m
	f.matches[m.ID] = &cp
	return nil
}

func (f *fakeMatchRepo) Get(_ context.Context, id string) (*store.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMatchRepo) UpdateLifecycle(_ context.Context, id string, state store.MatchState, startedAt *time.Time, pausedBy *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok {
		return errNotFound
	}
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
	m, ok := f.matches[id]
	if !ok {
		return nil, errNotFound
	}
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

type fakeTournamentRepo struct {
	mu            sync.Mutex
	tournaments   map[string]*store.Tournament
	players       map[string][]*store.TournamentPlayer
	matches       map[string]*store.TournamentMatch
	matchesByID   map[string]*store.TournamentMatch
	order         map[string]int
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{
		tournaments: make(map[string]*store.Tournament),
		players:     make(map[string][]*store.TournamentPlayer),
		matches:     make(map[string]*store.TournamentMatch),
		matchesByID: make(map[string]*store.TournamentMatch),
		order:       make(map[string]int),
	}
}

func (f *fakeTournamentRepo) CreateTournament(_ context.Context, t *store.Tournament) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.tournaments[t.ID] = &cp
	return nil
}

func (f *fakeTournamentRepo) GetTournament(_ context.Context, id string) (*store.Tournament, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tournaments[id]
	if !ok {
		return nil, errNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTournamentRepo) RegisterPlayer(_ context.Context, p *store.TournamentPlayer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.players[p.TournamentID] = append(f.players[p.TournamentID], &cp)
	return nil
}

func (f *fakeTournamentRepo) SetQueued(_ context.Context, tournamentID, playerID string, queuedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.players[tournamentID] {
		if p.ID == playerID {
			p.QueuedAt = queuedAt
		}
	}
	return nil
}

func (f *fakeTournamentRepo) QueuedPlayers(_ context.Context, tournamentID string) ([]*store.TournamentPlayer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.TournamentPlayer
	for _, p := range f.players[tournamentID] {
		if p.QueuedAt != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeTournamentRepo) CreateTournamentMatch(_ context.Context, m *store.TournamentMatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	cp := *m
	f.matches[m.TournamentID] = &cp
	f.matchesByID[m.ID] = &cp
	return nil
}

func (f *fakeTournamentRepo) NextOrder(_ context.Context, tournamentID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order[tournamentID]++
	return f.order[tournamentID], nil
}

func (f *fakeTournamentRepo) AnnouncedMatch(_ context.Context, tournamentID string) (*store.TournamentMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[tournamentID]
	if !ok || m.Status != store.TournamentMatchAnnounced {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeTournamentRepo) GetTournamentMatch(_ context.Context, matchID string) (*store.TournamentMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matchesByID[matchID]
	if !ok {
		return nil, errNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeTournamentRepo) RecordTournamentResult(_ context.Context, matchID, winnerID string, p1Score, p2Score int, completedAt time.Time) (*store.TournamentMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matchesByID[matchID]
	if !ok {
		return nil, errNotFound
	}
	if m.Status == store.TournamentMatchCompleted {
		cp := *m
		return &cp, nil
	}
	w := winnerID
	m.WinnerID = &w
	m.P1Score = &p1Score
	m.P2Score = &p2Score
	m.Status = store.TournamentMatchCompleted
	m.CompletedAt = &completedAt
	delete(f.matches, m.TournamentID)
	cp := *m
	return &cp, nil
}

func (f *fakeTournamentRepo) PendingOrAnnouncedCount(_ context.Context, tournamentID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.matches[tournamentID]; ok {
		return 1, nil
	}
	return 0, nil
}

func (f *fakeTournamentRepo) StartTournament(_ context.Context, tournamentID string, startedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tournaments[tournamentID]
	if !ok {
		return errNotFound
	}
	if t.Status == store.TournamentPending {
		t.Status = store.TournamentRunning
		t.StartedAt = &startedAt
	}
	return nil
}

func (f *fakeTournamentRepo) CompleteTournament(_ context.Context, tournamentID string, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tournaments[tournamentID]
	if !ok {
		return errNotFound
	}
	t.Status = store.TournamentCompleted
	t.CompletedAt = &completedAt
	return nil
}

func (f *fakeTournamentRepo) EliminatePlayer(_ context.Context, tournamentID, playerRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.players[tournamentID] {
		ref := p.Alias
		if p.UserID != nil {
			ref = *p.UserID
		}
		if ref == playerRef {
			p.Eliminated = true
		}
	}
	return nil
}

func (f *fakeTournamentRepo) Standings(_ context.Context, tournamentID string) ([]*store.TournamentPlayer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.players[tournamentID], nil
}

type fakeChatRepo struct {
	mu       sync.Mutex
	channels map[string]*store.ChatChannel
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{channels: make(map[string]*store.ChatChannel)}
}

func (f *fakeChatRepo) EnsureChannel(_ context.Context, slug, title, visibility, createdBy string) (*store.ChatChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.channels[slug]; ok {
		cp := *c
		return &cp, nil
	}
	c := &store.ChatChannel{ID: uuid.NewString(), Slug: slug, Title: title, Visibility: visibility, CreatedBy: createdBy, CreatedAt: time.Now()}
	f.channels[slug] = c
	cp := *c
	return &cp, nil
}

func (f *fakeChatRepo) AddMembership(_ context.Context, channelID, userID, role string) error {
	return nil
}

func (f *fakeChatRepo) SaveMessage(_ context.Context, m *store.ChatMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

type fakeBlockRepo struct {
	mu      sync.Mutex
	blocked map[string]bool
}

func newFakeBlockRepo() *fakeBlockRepo {
	return &fakeBlockRepo{blocked: make(map[string]bool)}
}

func blockKey(a, b string) string { return a + "|" + b }

func (f *fakeBlockRepo) Block(_ context.Context, blockerID, blockedID string, reason *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked[blockKey(blockerID, blockedID)] = true
	return nil
}

func (f *fakeBlockRepo) Unblock(_ context.Context, blockerID, blockedID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blocked, blockKey(blockerID, blockedID))
	return nil
}

func (f *fakeBlockRepo) IsBlocked(_ context.Context, userA, userB string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocked[blockKey(userA, userB)] || f.blocked[blockKey(userB, userA)], nil
}

type fakeStatsRepo struct{}

func newFakeStatsRepo() *fakeStatsRepo { return &fakeStatsRepo{} }

func (f *fakeStatsRepo) CompletedMatchesFor(_ context.Context, userID string) ([]store.CompletedMatchView, error) {
	return nil, nil
}

func (f *fakeStatsRepo) RewriteStats(_ context.Context, stats store.UserStats, recent []store.RecentMatch) error {
	return nil
}

type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

var errNotFound = notFoundError{}
