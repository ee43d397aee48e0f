package tournament

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/lguibr/pongrt/internal/actor"
	"github.com/lguibr/pongrt/internal/store"
)

// Registry indexes the one live Coordinator actor per tournament, the same
// lazy-spawn-on-first-touch shape as the match registry.
type Registry struct {
	mu      sync.Mutex
	pids    map[string]*actor.PID
	engine  *actor.Engine
	repo    store.TournamentRepository
	creator MatchCreator
	log     *zap.SugaredLogger
}

// NewRegistry builds a tournament Registry.
func NewRegistry(engine *actor.Engine, repo store.TournamentRepository, log *zap.SugaredLogger) *Registry {
	return &Registry{
		pids:   make(map[string]*actor.PID),
		engine: engine,
		repo:   repo,
		log:    log,
	}
}

// SetMatchCreator wires the match registry in after construction; the two
// registries reference each other (announce creates matches, terminal
// matches report results back), so one side is attached late. Must be
// called before the first coordinator is spawned.
func (reg *Registry) SetMatchCreator(creator MatchCreator) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.creator = creator
}

// GetOrCreate returns the Coordinator PID for tournamentID, spawning it on
// first access.
func (reg *Registry) GetOrCreate(tournamentID string) *actor.PID {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if pid, ok := reg.pids[tournamentID]; ok {
		return pid
	}
	pid := reg.engine.Spawn(actor.NewProps(NewProducer(tournamentID, reg.repo, reg.creator, reg.log)))
	reg.pids[tournamentID] = pid
	return pid
}

// Get returns the Coordinator PID if one is already live.
func (reg *Registry) Get(tournamentID string) (*actor.PID, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	pid, ok := reg.pids[tournamentID]
	return pid, ok
}

// NotifyMatchResult satisfies match.TournamentNotifier: the match runtime
// calls this on a tournament-bound match's terminal transition, and the
// coordinator folds the result into the bracket without blocking the match
// runtime's own actor goroutine on a round trip.
func (reg *Registry) NotifyMatchResult(tournamentID, matchID, winnerID string, p1Score, p2Score int) {
	pid := reg.GetOrCreate(tournamentID)
	reg.engine.Send(pid, RecordResult{
		MatchID:  matchID,
		WinnerID: winnerID,
		P1Score:  p1Score,
		P2Score:  p2Score,
	}, nil)
}

// Enqueue marks playerID queued for pairing, routed through the
// tournament's single command queue like every other state mutation.
func (reg *Registry) Enqueue(tournamentID, playerID string) {
	pid := reg.GetOrCreate(tournamentID)
	reg.engine.Send(pid, Enqueue{PlayerID: playerID}, nil)
}

// Dequeue clears playerID's queued flag without pairing it.
func (reg *Registry) Dequeue(tournamentID, playerID string) {
	pid := reg.GetOrCreate(tournamentID)
	reg.engine.Send(pid, Dequeue{PlayerID: playerID}, nil)
}

// AnnounceNext synchronously triggers pairing for the REST-facing endpoint.
func (reg *Registry) AnnounceNext(ctx context.Context, tournamentID string) (*store.TournamentMatch, error) {
	pid := reg.GetOrCreate(tournamentID)
	result, err := reg.engine.Ask(ctx, pid, AnnounceNext{})
	if err != nil {
		return nil, err
	}
	tm, _ := result.(*store.TournamentMatch)
	return tm, nil
}

// RecordResult synchronously writes a tournament match result for the
// REST-facing endpoint.
func (reg *Registry) RecordResult(ctx context.Context, tournamentID, matchID, winnerID string, p1Score, p2Score int) (*store.TournamentMatch, error) {
	pid := reg.GetOrCreate(tournamentID)
	result, err := reg.engine.Ask(ctx, pid, RecordResult{
		MatchID:  matchID,
		WinnerID: winnerID,
		P1Score:  p1Score,
		P2Score:  p2Score,
	})
	if err != nil {
		return nil, err
	}
	switch v := result.(type) {
	case *store.TournamentMatch:
		return v, nil
	case error:
		return nil, v
	default:
		return nil, nil
	}
}
