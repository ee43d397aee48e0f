// Package tournament implements the tournament coordinator: one actor per
// tournament serializing queue pairing, announce, and result recording, so
// every subscriber of a tournament observes announce/result events in the
// same order. The single-writer shape is the same actor primitive the match
// runtime is built on, scoped per tournament.
package tournament

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lguibr/pongrt/internal/actor"
	"github.com/lguibr/pongrt/internal/apperr"
	"github.com/lguibr/pongrt/internal/store"
)

// MatchCreator mints the durable pong match behind an announced pairing, so
// the two players can connect to /ws/pong/{id} and play it out. Implemented
// by the match registry.
type MatchCreator interface {
	CreatePongMatch(ctx context.Context, id, p1ID, p2ID, tournamentID string) error
}

// Conn is the send side of a tournament subscriber's socket.
type Conn interface {
	Send(v interface{}) error
}

// Subscribe is the client's `subscribe{tournamentId}` message.
type Subscribe struct {
	UserID string
	Conn   Conn
}

// Unsubscribe is the client's `unsubscribe{tournamentId}` message.
type Unsubscribe struct {
	UserID string
}

// Enqueue marks a player queued for pairing.
type Enqueue struct {
	PlayerID string
}

// Dequeue clears a player's queued flag without pairing them.
type Dequeue struct {
	PlayerID string
}

// AnnounceNext requests the next pairing be announced; replies with
// *store.TournamentMatch (nil if fewer than two players are queued).
type AnnounceNext struct{}

// RecordResult is both the REST-originated result write and the message the
// match runtime's TournamentNotifier sends on a tournament-bound match's
// terminal transition. Replies with *store.TournamentMatch, or an error
// variant when the match is unknown, not announced, or the winner is not a
// participant.
type RecordResult struct {
	MatchID  string
	WinnerID string
	P1Score  int
	P2Score  int
}

// Coordinator is the per-tournament actor.
type Coordinator struct {
	id      string
	repo    store.TournamentRepository
	matches MatchCreator
	log     *zap.SugaredLogger

	subscribers map[string]Conn
}

// NewProducer returns an actor.Producer for one tournament's Coordinator.
// matches may be nil, in which case announced pairings are not backed by a
// playable pong match and results arrive via the REST result endpoint only.
func NewProducer(id string, repo store.TournamentRepository, matches MatchCreator, log *zap.SugaredLogger) actor.Producer {
	return func() actor.Actor {
		return &Coordinator{
			id:          id,
			repo:        repo,
			matches:     matches,
			log:         log.With("tournamentId", id),
			subscribers: make(map[string]Conn),
		}
	}
}

func (c *Coordinator) Receive(ctx actor.Context) {
	switch m := ctx.Message().(type) {
	case actor.Started, actor.Stopping, actor.Stopped:
	case Subscribe:
		c.handleSubscribe(ctx, m)
	case Unsubscribe:
		c.handleUnsubscribe(m)
	case Enqueue:
		c.handleEnqueue(ctx, m)
	case Dequeue:
		c.handleDequeue(ctx, m)
	case AnnounceNext:
		c.handleAnnounceNext(ctx)
	case RecordResult:
		c.handleRecordResult(ctx, m)
	}
}

func (c *Coordinator) handleSubscribe(ctx actor.Context, m Subscribe) {
	c.subscribers[m.UserID] = m.Conn
	c.subscribers[m.UserID].Send(outSubscribed{Type: "subscribed", TournamentID: c.id})

	bg := context.Background()
	if announced, err := c.repo.AnnouncedMatch(bg, c.id); err == nil && announced != nil {
		c.subscribers[m.UserID].Send(newOutAnnounceNext(c.id, announced))
	}
}

func (c *Coordinator) handleUnsubscribe(m Unsubscribe) {
	conn, ok := c.subscribers[m.UserID]
	if !ok {
		return
	}
	delete(c.subscribers, m.UserID)
	conn.Send(outUnsubscribed{Type: "unsubscribed", TournamentID: c.id})
}

func (c *Coordinator) broadcast(v interface{}) {
	for userID, conn := range c.subscribers {
		if err := conn.Send(v); err != nil {
			c.log.Debugw("send failed, dropping subscriber", "userId", userID, "err", err)
			delete(c.subscribers, userID)
		}
	}
}

func (c *Coordinator) handleEnqueue(ctx actor.Context, m Enqueue) {
	bg := context.Background()
	now := time.Now()
	if err := c.repo.SetQueued(bg, c.id, m.PlayerID, &now); err != nil {
		c.log.Errorw("enqueue failed", "playerId", m.PlayerID, "err", err)
	}
}

func (c *Coordinator) handleDequeue(ctx actor.Context, m Dequeue) {
	bg := context.Background()
	if err := c.repo.SetQueued(bg, c.id, m.PlayerID, nil); err != nil {
		c.log.Errorw("dequeue failed", "playerId", m.PlayerID, "err", err)
	}
}

func (c *Coordinator) handleAnnounceNext(ctx actor.Context) {
	bg := context.Background()

	if existing, err := c.repo.AnnouncedMatch(bg, c.id); err == nil && existing != nil {
		ctx.Reply(existing)
		return
	}

	queued, err := c.repo.QueuedPlayers(bg, c.id)
	if err != nil {
		c.log.Errorw("load queued players failed", "err", err)
		ctx.Reply(nil)
		return
	}
	if len(queued) < 2 {
		ctx.Reply(nil)
		return
	}

	p1, p2 := queued[0], queued[1]
	order, err := c.repo.NextOrder(bg, c.id)
	if err != nil {
		c.log.Errorw("compute next order failed", "err", err)
		ctx.Reply(nil)
		return
	}

	p1ID, p2ID := playerRef(p1), playerRef(p2)
	now := time.Now()
	tm := &store.TournamentMatch{
		TournamentID: c.id,
		P1ID:         p1ID,
		P2ID:         p2ID,
		Order:        order,
		Status:       store.TournamentMatchAnnounced,
		CreatedAt:    now,
		AnnouncedAt:  &now,
	}
	if err := c.repo.CreateTournamentMatch(bg, tm); err != nil {
		c.log.Errorw("create tournament match failed", "err", err)
		ctx.Reply(nil)
		return
	}

	// The first announced pairing puts the tournament in play.
	if err := c.repo.StartTournament(bg, c.id, now); err != nil {
		c.log.Errorw("start tournament failed", "err", err)
	}

	_ = c.repo.SetQueued(bg, c.id, p1.ID, nil)
	_ = c.repo.SetQueued(bg, c.id, p2.ID, nil)

	// Announced pairings between registered users get a playable pong match
	// under the same id; alias-only players report results through REST.
	if c.matches != nil && p1.UserID != nil && p2.UserID != nil {
		if err := c.matches.CreatePongMatch(bg, tm.ID, *p1.UserID, *p2.UserID, c.id); err != nil {
			c.log.Errorw("create pong match for pairing failed", "matchId", tm.ID, "err", err)
		}
	}

	c.broadcast(newOutAnnounceNext(c.id, tm))
	ctx.Reply(tm)
}

func playerRef(p *store.TournamentPlayer) string {
	if p.UserID != nil {
		return *p.UserID
	}
	return p.Alias
}

func (c *Coordinator) handleRecordResult(ctx actor.Context, m RecordResult) {
	bg := context.Background()

	existing, err := c.repo.GetTournamentMatch(bg, m.MatchID)
	if err != nil {
		c.log.Warnw("result for unknown tournament match", "matchId", m.MatchID, "err", err)
		ctx.Reply(apperr.NotFound(apperr.CodeNotFound, "tournament match not found"))
		return
	}
	if existing.Status == store.TournamentMatchCompleted {
		ctx.Reply(existing)
		return
	}
	if existing.Status != store.TournamentMatchAnnounced {
		ctx.Reply(apperr.Conflict(apperr.CodeInvalidState, "match has not been announced"))
		return
	}
	if m.WinnerID != existing.P1ID && m.WinnerID != existing.P2ID {
		ctx.Reply(apperr.Conflict(apperr.CodeInvalidWinner, "winnerId must be a participant of the match"))
		return
	}

	tm, err := c.repo.RecordTournamentResult(bg, m.MatchID, m.WinnerID, m.P1Score, m.P2Score, time.Now())
	if err != nil {
		c.log.Errorw("record tournament result failed", "matchId", m.MatchID, "err", err)
		ctx.Reply(nil)
		return
	}

	c.broadcast(newOutResult(c.id, tm))
	ctx.Reply(tm)

	loser := existing.P1ID
	if m.WinnerID == existing.P1ID {
		loser = existing.P2ID
	}
	if err := c.repo.EliminatePlayer(bg, c.id, loser); err != nil {
		c.log.Errorw("eliminate player failed", "playerRef", loser, "err", err)
	}

	pending, err := c.repo.PendingOrAnnouncedCount(bg, c.id)
	if err != nil {
		c.log.Errorw("count pending matches failed", "err", err)
		return
	}
	queued, err := c.repo.QueuedPlayers(bg, c.id)
	if err != nil {
		c.log.Errorw("load queued players failed", "err", err)
		return
	}
	if pending == 0 && len(queued) == 0 {
		if err := c.repo.CompleteTournament(bg, c.id, time.Now()); err != nil {
			c.log.Errorw("complete tournament failed", "err", err)
		}
	}
}
