package match

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lguibr/pongrt/internal/actor"
	"github.com/lguibr/pongrt/internal/store"
)

// Registry is the process-wide index of live match runtimes. GetOrCreate is
// safe under
// concurrent callers racing on the same id; exactly one runtime is produced.
type Registry struct {
	mu        sync.Mutex
	runtimes  map[string]*actor.PID
	engine    *actor.Engine
	matchRepo store.MatchRepository
	depsBase  Deps
}

// NewRegistry builds a Registry. depsBase is the template Deps shared by
// every spawned runtime; OnDestroy is overwritten per-runtime.
func NewRegistry(engine *actor.Engine, matchRepo store.MatchRepository, depsBase Deps) *Registry {
	return &Registry{
		runtimes:  make(map[string]*actor.PID),
		engine:    engine,
		matchRepo: matchRepo,
		depsBase:  depsBase,
	}
}

// GetOrCreate returns the running runtime for id, creating both the durable
// Match row (if absent) and the runtime actor on first call.
func (reg *Registry) GetOrCreate(ctx context.Context, id, p1ID, p2ID string, tournamentID *string) (*actor.PID, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if pid, ok := reg.runtimes[id]; ok {
		return pid, nil
	}

	if _, err := reg.matchRepo.Get(ctx, id); err != nil {
		m := &store.Match{
			ID:           id,
			TournamentID: tournamentID,
			P1ID:         p1ID,
			P2ID:         p2ID,
			State:        store.MatchWaiting,
			CreatedAt:    time.Now(),
		}
		if err := reg.matchRepo.Create(ctx, m); err != nil {
			return nil, fmt.Errorf("match: create row: %w", err)
		}
	}

	deps := reg.depsBase
	deps.Creator = reg
	deps.OnDestroy = reg.destroy

	pid := reg.engine.Spawn(actor.NewProps(NewProducer(id, p1ID, p2ID, tournamentID, nil, deps)))
	reg.runtimes[id] = pid
	return pid, nil
}

// Get returns the runtime's PID if id is currently live.
func (reg *Registry) Get(id string) (*actor.PID, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	pid, ok := reg.runtimes[id]
	return pid, ok
}

func (reg *Registry) destroy(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.runtimes, id)
}

// CreateRematch mints a new Match row and runtime paired from an ended
// match, satisfying match.MatchCreator for the rematch broker.
func (reg *Registry) CreateRematch(ctx context.Context, p1ID, p2ID string, tournamentID *string, rematchOf string) (string, error) {
	newID := uuid.NewString()
	rematchOfCopy := rematchOf

	m := &store.Match{
		ID:           newID,
		TournamentID: tournamentID,
		P1ID:         p1ID,
		P2ID:         p2ID,
		State:        store.MatchWaiting,
		RematchOf:    &rematchOfCopy,
		CreatedAt:    time.Now(),
	}
	if err := reg.matchRepo.Create(ctx, m); err != nil {
		return "", fmt.Errorf("match: create rematch row: %w", err)
	}

	reg.mu.Lock()
	deps := reg.depsBase
	deps.Creator = reg
	deps.OnDestroy = reg.destroy
	pid := reg.engine.Spawn(actor.NewProps(NewProducer(newID, p1ID, p2ID, tournamentID, &rematchOfCopy, deps)))
	reg.runtimes[newID] = pid
	reg.mu.Unlock()

	return newID, nil
}

// CreateMatch mints a fresh direct (non-rematch) Match, satisfying
// invite.MatchCreator for an accepted invitation.
func (reg *Registry) CreateMatch(ctx context.Context, p1ID, p2ID string) (string, error) {
	newID := uuid.NewString()
	if _, err := reg.GetOrCreate(ctx, newID, p1ID, p2ID, nil); err != nil {
		return "", err
	}
	return newID, nil
}

// CreatePongMatch mints the durable match behind an announced tournament
// pairing under the pairing's own id, satisfying tournament.MatchCreator.
// The runtime spawns lazily on first participant connect.
func (reg *Registry) CreatePongMatch(ctx context.Context, id, p1ID, p2ID, tournamentID string) error {
	tid := tournamentID
	m := &store.Match{
		ID:           id,
		TournamentID: &tid,
		P1ID:         p1ID,
		P2ID:         p2ID,
		State:        store.MatchWaiting,
		CreatedAt:    time.Now(),
	}
	return reg.matchRepo.Create(ctx, m)
}
