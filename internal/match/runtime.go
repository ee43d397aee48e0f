// Package match implements the match runtime and match registry: one actor
// per live Pong match owning its physics state, participant connections,
// and lifecycle, plus the process-wide index that creates and looks them
// up. Every external stimulus (connect, disconnect, client message,
// scheduler tick) arrives as a message on the runtime's own mailbox, so its
// state is only ever touched from its own goroutine. Tickers run on their
// own goroutines but feed the same mailbox, which keeps timer fires and
// client input serialized without locks.
package match

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lguibr/pongrt/internal/actor"
	"github.com/lguibr/pongrt/internal/apperr"
	"github.com/lguibr/pongrt/internal/physics"
	"github.com/lguibr/pongrt/internal/stats"
	"github.com/lguibr/pongrt/internal/store"
)

// RuntimeState is the in-memory lifecycle value, tracked separately from the
// durable Match row's state column (which mirrors it on every transition).
type RuntimeState string

const (
	StateWaiting    RuntimeState = "waiting"
	StateCountdown  RuntimeState = "countdown"
	StatePlaying    RuntimeState = "playing"
	StatePaused     RuntimeState = "paused"
	StateEnded      RuntimeState = "ended"
	StateForfeited  RuntimeState = "forfeited"
)

// TournamentNotifier is how the runtime tells the Tournament Coordinator
// about a terminal transition on a tournament-bound match. Match and
// tournament are independent actors; this interface is the only coupling.
type TournamentNotifier interface {
	NotifyMatchResult(tournamentID, matchID, winnerID string, p1Score, p2Score int)
}

// MatchCreator lets the runtime ask the registry to mint a fresh match for a
// rematch without importing the registry type (which in turn owns runtimes).
type MatchCreator interface {
	CreateRematch(ctx context.Context, p1ID, p2ID string, tournamentID *string, rematchOf string) (string, error)
}

// Deps bundles a runtime's collaborators. Shared across every match the
// registry spawns; OnDestroy is filled in per-instance by the registry.
type Deps struct {
	MatchRepo         store.MatchRepository
	Stats             *stats.Aggregator
	Tournament        TournamentNotifier
	Creator           MatchCreator
	Log               *zap.SugaredLogger
	Physics           physics.Config
	TickInterval      time.Duration
	CountdownDuration time.Duration
	RematchTTL        time.Duration
	CleanupDelay      time.Duration
	RateLimitPerSec   int
	OnDestroy         func(matchID string)
}

type inputWindow struct {
	anchor time.Time
	count  int
}

// Runtime is the per-match actor.
type Runtime struct {
	id           string
	p1ID, p2ID   string
	tournamentID *string
	rematchOf    *string

	deps Deps
	log  *zap.SugaredLogger

	engine *physics.State
	state  RuntimeState

	conns        map[string]Conn
	connectOrder []string
	ready        map[string]bool
	lastInputSeq map[string]int64
	windows      map[string]inputWindow

	pausedBy           string
	countdownRemaining int
	startedOnce        bool

	rematchRequestedBy string

	tickStop      chan struct{}
	countdownStop chan struct{}
	rematchTimer  *time.Timer
	cleanupTimer  *time.Timer
}

// NewProducer returns an actor.Producer that constructs a fresh Runtime for
// one match. id/p1ID/p2ID/tournamentID/rematchOf are immutable for the
// runtime's lifetime.
func NewProducer(id, p1ID, p2ID string, tournamentID, rematchOf *string, deps Deps) actor.Producer {
	return func() actor.Actor {
		return &Runtime{
			id:           id,
			p1ID:         p1ID,
			p2ID:         p2ID,
			tournamentID: tournamentID,
			rematchOf:    rematchOf,
			deps:         deps,
			log:          deps.Log.With("matchId", id),
			engine:       physics.New(deps.Physics),
			state:        StateWaiting,
			conns:        make(map[string]Conn),
			ready:        make(map[string]bool),
			lastInputSeq: make(map[string]int64),
			windows:      make(map[string]inputWindow),
		}
	}
}

// Receive dispatches every message this actor understands. It is the only
// place Runtime state is mutated.
func (r *Runtime) Receive(ctx actor.Context) {
	switch m := ctx.Message().(type) {
	case actor.Started:
		r.engine.Reset(0)
	case actor.Stopping:
		r.stopAllTimers()
	case Connect:
		r.handleConnect(ctx, m)
	case Disconnect:
		r.handleGone(ctx, m.UserID)
	case LeaveMatch:
		r.handleLeave(ctx, m.UserID)
	case Ready:
		r.handleReady(ctx, m.UserID)
	case Input:
		r.handleInput(ctx, m)
	case Pause:
		r.handlePause(ctx, m.UserID)
	case Resume:
		r.handleResume(ctx, m.UserID)
	case RequestState:
		r.handleRequestState(m.UserID)
	case Forfeit:
		r.handleForfeit(ctx, m.UserID)
	case RematchRequest:
		r.handleRematchRequest(ctx, m.UserID)
	case RematchAccept:
		r.handleRematchAccept(ctx, m.UserID)
	case RematchDecline:
		r.handleRematchDecline(ctx, m.UserID)
	case tickMsg:
		r.handleTick(ctx)
	case countdownTickMsg:
		r.handleCountdownTick(ctx)
	case cleanupExpireMsg:
		r.handleCleanupExpire(ctx)
	case rematchExpireMsg:
		r.handleRematchExpire()
	default:
		r.log.Debugw("unhandled message", "type", fmt.Sprintf("%T", m))
	}
}

func (r *Runtime) sideOf(userID string) (physics.Side, bool) {
	switch userID {
	case r.p1ID:
		return physics.SideP1, true
	case r.p2ID:
		return physics.SideP2, true
	default:
		return 0, false
	}
}

func (r *Runtime) otherParticipant(userID string) string {
	if userID == r.p1ID {
		return r.p2ID
	}
	return r.p1ID
}

// earlierSeated resolves the disconnect-both-absent tie per the design
// note: the participant who connected to this runtime first wins.
func (r *Runtime) earlierSeated() string {
	if len(r.connectOrder) > 0 {
		return r.connectOrder[0]
	}
	return r.p1ID
}

func (r *Runtime) send(userID string, v interface{}) {
	conn, ok := r.conns[userID]
	if !ok {
		return
	}
	if err := conn.Send(v); err != nil {
		r.log.Debugw("send failed, dropping connection", "userId", userID, "err", err)
		delete(r.conns, userID)
	}
}

func (r *Runtime) broadcast(v interface{}) {
	for userID := range r.conns {
		r.send(userID, v)
	}
}

func (r *Runtime) sendError(userID, code, msg string) {
	r.send(userID, outError{Type: "error", Code: code, Message: msg})
}

func (r *Runtime) handleConnect(ctx actor.Context, m Connect) {
	if _, known := r.conns[m.UserID]; !known {
		r.connectOrder = append(r.connectOrder, m.UserID)
	}
	r.conns[m.UserID] = m.Conn

	var snap *physics.Snapshot
	if r.state != StateWaiting {
		s := r.engine.Snapshot(time.Now())
		snap = &s
	}
	r.send(m.UserID, outJoined{Type: "joined", MatchID: r.id, GameState: snap})
}

func (r *Runtime) handleGone(ctx actor.Context, userID string) {
	delete(r.conns, userID)
	delete(r.ready, userID)
	r.forfeitIfMidPlay(ctx, userID)
	r.cancelRematchOnDisconnect(userID)
	r.destroyIfEmptyPreStart(ctx)
}

func (r *Runtime) handleLeave(ctx actor.Context, userID string) {
	delete(r.conns, userID)
	delete(r.ready, userID)
	r.send(r.otherParticipant(userID), outLeft{Type: "left", UserID: userID})
	r.forfeitIfMidPlay(ctx, userID)
	r.cancelRematchOnDisconnect(userID)
	r.destroyIfEmptyPreStart(ctx)
}

// destroyIfEmptyPreStart tears the runtime down when every participant has
// gone before the match ever left waiting; a terminal match instead lives
// until its cleanup timer to admit rematch and late reconnects.
func (r *Runtime) destroyIfEmptyPreStart(ctx actor.Context) {
	if r.state != StateWaiting || len(r.conns) > 0 {
		return
	}
	if r.deps.OnDestroy != nil {
		r.deps.OnDestroy(r.id)
	}
	ctx.Engine().Stop(ctx.Self())
}

// cancelRematchOnDisconnect drops a pending rematch offer as soon as either
// participant goes away, with reason=disconnect, rather than leaving it to
// expire on its own TTL.
func (r *Runtime) cancelRematchOnDisconnect(userID string) {
	if r.rematchRequestedBy == "" {
		return
	}
	r.stopRematchTimer()
	r.rematchRequestedBy = ""
	r.broadcast(outRematchExpired{Type: "rematch_expired", Reason: "disconnect"})
}

func (r *Runtime) forfeitIfMidPlay(ctx actor.Context, goneUserID string) {
	if r.state == StateWaiting || r.state == StateEnded || r.state == StateForfeited {
		return
	}
	winner := r.otherParticipant(goneUserID)
	if _, stillHere := r.conns[winner]; !stillHere {
		winner = r.earlierSeated()
	}
	r.endMatch(ctx, winner, store.MatchForfeited, "forfeit")
}

func (r *Runtime) handleForfeit(ctx actor.Context, userID string) {
	if r.state != StatePlaying && r.state != StatePaused {
		r.sendError(userID, apperr.CodeInvalidState, "match is not in progress")
		return
	}
	r.endMatch(ctx, r.otherParticipant(userID), store.MatchForfeited, "forfeit")
}

func (r *Runtime) handleReady(ctx actor.Context, userID string) {
	if r.state != StateWaiting {
		return
	}
	if _, ok := r.conns[userID]; !ok {
		return
	}
	r.ready[userID] = true
	r.broadcast(outReadyState{Type: "ready_state", UserID: userID, Ready: true})

	if _, p1Conn := r.conns[r.p1ID]; p1Conn && r.ready[r.p1ID] {
		if _, p2Conn := r.conns[r.p2ID]; p2Conn && r.ready[r.p2ID] {
			r.enterCountdown(ctx)
		}
	}
}

func (r *Runtime) enterCountdown(ctx actor.Context) {
	r.state = StateCountdown
	r.countdownRemaining = 3
	r.broadcast(outCountdown{Type: "countdown", Seconds: r.countdownRemaining})
	r.persistLifecycle()
	r.startCountdownTicker(ctx)
}

func (r *Runtime) handleCountdownTick(ctx actor.Context) {
	if r.state != StateCountdown {
		return
	}
	r.countdownRemaining--
	if r.countdownRemaining > 0 {
		r.broadcast(outCountdown{Type: "countdown", Seconds: r.countdownRemaining})
		return
	}
	r.stopCountdownTicker()
	r.enterPlaying(ctx)
}

func (r *Runtime) enterPlaying(ctx actor.Context) {
	r.state = StatePlaying
	r.engine.SetLastTick(time.Now())
	r.persistLifecycle()
	r.startTickTicker(ctx)
}

func (r *Runtime) handlePause(ctx actor.Context, userID string) {
	if _, ok := r.conns[userID]; !ok {
		return
	}
	if r.state != StatePlaying {
		r.sendError(userID, apperr.CodeInvalidState, "match is not playing")
		return
	}
	r.pausedBy = userID
	r.state = StatePaused
	r.stopTickTicker()
	r.broadcast(outPaused{Type: "paused", PausedBy: userID})
	r.persistLifecycle()
}

func (r *Runtime) handleResume(ctx actor.Context, userID string) {
	if r.state != StatePaused {
		r.sendError(userID, apperr.CodeInvalidState, "match is not paused")
		return
	}
	if userID != r.pausedBy {
		r.sendError(userID, apperr.CodeUnauthorizedResume, "only the pausing participant may resume")
		return
	}
	r.pausedBy = ""
	r.broadcast(outResume{Type: "resume", UserID: userID})
	r.enterCountdown(ctx)
}

func (r *Runtime) handleRequestState(userID string) {
	if _, ok := r.conns[userID]; !ok {
		return
	}
	r.send(userID, newOutState(r.engine.Snapshot(time.Now())))
}

func (r *Runtime) handleInput(ctx actor.Context, m Input) {
	if r.state != StatePlaying {
		return
	}
	side, ok := r.sideOf(m.UserID)
	if !ok {
		return
	}
	if m.Seq <= r.lastInputSeq[m.UserID] {
		return
	}
	if !r.allowInput(m.UserID) {
		r.log.Debugw("input rate limit exceeded", "userId", m.UserID)
		return
	}
	r.lastInputSeq[m.UserID] = m.Seq
	r.engine.SetDirection(side, m.Direction)
}

func (r *Runtime) allowInput(userID string) bool {
	limit := r.deps.RateLimitPerSec
	if limit <= 0 {
		limit = 60
	}
	w := r.windows[userID]
	now := time.Now()
	if w.anchor.IsZero() || now.Sub(w.anchor) >= time.Second {
		w.anchor = now
		w.count = 0
	}
	if w.count >= limit {
		r.windows[userID] = w
		return false
	}
	w.count++
	r.windows[userID] = w
	return true
}

func (r *Runtime) handleTick(ctx actor.Context) {
	if r.state != StatePlaying {
		return
	}
	now := time.Now()
	continues := r.engine.Tick(now)
	r.broadcast(newOutState(r.engine.Snapshot(now)))

	if !continues {
		r.stopTickTicker()
		winner := r.p1ID
		if r.engine.WinnerSide() == physics.SideP2 {
			winner = r.p2ID
		}
		r.endMatch(ctx, winner, store.MatchEnded, "score")
	}
}

func (r *Runtime) endMatch(ctx actor.Context, winnerID string, terminal store.MatchState, reason string) {
	if r.state == StateEnded || r.state == StateForfeited {
		return
	}
	r.stopTickTicker()
	r.stopCountdownTicker()

	if terminal == store.MatchForfeited {
		r.state = StateForfeited
	} else {
		r.state = StateEnded
	}

	now := time.Now()
	snap := r.engine.Snapshot(now)

	bg := context.Background()
	if _, err := r.deps.MatchRepo.RecordResult(bg, r.id, winnerID, snap.P1Score, snap.P2Score, terminal, now); err != nil {
		r.log.Errorw("record match result failed", "err", err)
	}

	r.broadcast(outGameOver{Type: "game_over", WinnerID: winnerID, P1Score: snap.P1Score, P2Score: snap.P2Score, Reason: reason})

	if r.deps.Stats != nil {
		p1ID, p2ID := r.p1ID, r.p2ID
		go func() {
			bg := context.Background()
			if err := r.deps.Stats.Recompute(bg, p1ID); err != nil {
				r.log.Errorw("stats recompute failed", "userId", p1ID, "err", err)
			}
			if err := r.deps.Stats.Recompute(bg, p2ID); err != nil {
				r.log.Errorw("stats recompute failed", "userId", p2ID, "err", err)
			}
		}()
	}

	if r.tournamentID != nil && r.deps.Tournament != nil {
		r.deps.Tournament.NotifyMatchResult(*r.tournamentID, r.id, winnerID, snap.P1Score, snap.P2Score)
	}

	r.startCleanupTimer(ctx)
}

func (r *Runtime) persistLifecycle() {
	bg := context.Background()
	var startedAt *time.Time
	if r.state == StateCountdown && !r.startedOnce {
		now := time.Now()
		startedAt = &now
		r.startedOnce = true
	}
	var pausedBy *string
	if r.pausedBy != "" {
		pausedBy = &r.pausedBy
	}
	var dbState store.MatchState
	switch r.state {
	case StateCountdown:
		dbState = store.MatchCountdown
	case StatePlaying:
		dbState = store.MatchPlaying
	case StatePaused:
		dbState = store.MatchPaused
	default:
		dbState = store.MatchWaiting
	}
	if err := r.deps.MatchRepo.UpdateLifecycle(bg, r.id, dbState, startedAt, pausedBy); err != nil {
		r.log.Errorw("persist lifecycle failed", "err", err)
	}
}

// --- rematch broker ---

func (r *Runtime) handleRematchRequest(ctx actor.Context, userID string) {
	r.offerOrAcceptRematch(ctx, userID)
}

func (r *Runtime) handleRematchAccept(ctx actor.Context, userID string) {
	r.offerOrAcceptRematch(ctx, userID)
}

func (r *Runtime) offerOrAcceptRematch(ctx actor.Context, userID string) {
	if r.state != StateEnded && r.state != StateForfeited {
		r.sendError(userID, apperr.CodeInvalidState, "match is not finished")
		return
	}
	if r.rematchRequestedBy == "" {
		r.rematchRequestedBy = userID
		r.startRematchTimer(ctx)
		r.send(r.otherParticipant(userID), outRematchOffered{Type: "rematch_request", From: userID})
		return
	}
	if r.rematchRequestedBy == userID {
		return
	}

	r.stopRematchTimer()
	requester := r.rematchRequestedBy
	r.rematchRequestedBy = ""

	if r.deps.Creator == nil {
		return
	}
	newID, err := r.deps.Creator.CreateRematch(context.Background(), r.p1ID, r.p2ID, r.tournamentID, r.id)
	if err != nil {
		r.log.Errorw("create rematch failed", "err", err)
		r.sendError(requester, apperr.CodeInternal, "could not create rematch")
		return
	}
	r.broadcast(outRematchAccepted{Type: "rematch_accepted", MatchID: newID})
}

func (r *Runtime) handleRematchDecline(ctx actor.Context, userID string) {
	if r.rematchRequestedBy == "" || r.rematchRequestedBy == userID {
		return
	}
	r.stopRematchTimer()
	r.rematchRequestedBy = ""
	r.broadcast(outRematchDeclined{Type: "rematch_declined"})
}

func (r *Runtime) handleRematchExpire() {
	if r.rematchRequestedBy == "" {
		return
	}
	r.rematchRequestedBy = ""
	r.broadcast(outRematchExpired{Type: "rematch_expired", Reason: "timeout"})
}

// --- schedulers ---

func (r *Runtime) startTickTicker(ctx actor.Context) {
	interval := r.deps.TickInterval
	if interval <= 0 {
		interval = time.Second / 60
	}
	stop := make(chan struct{})
	r.tickStop = stop
	engine, self := ctx.Engine(), ctx.Self()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				engine.Send(self, tickMsg{}, nil)
			}
		}
	}()
}

func (r *Runtime) stopTickTicker() {
	if r.tickStop != nil {
		close(r.tickStop)
		r.tickStop = nil
	}
}

func (r *Runtime) startCountdownTicker(ctx actor.Context) {
	interval := r.deps.CountdownDuration
	if interval <= 0 {
		interval = 3 * time.Second
	}
	perTick := interval / 3
	stop := make(chan struct{})
	r.countdownStop = stop
	engine, self := ctx.Engine(), ctx.Self()
	go func() {
		ticker := time.NewTicker(perTick)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				engine.Send(self, countdownTickMsg{}, nil)
			}
		}
	}()
}

func (r *Runtime) stopCountdownTicker() {
	if r.countdownStop != nil {
		close(r.countdownStop)
		r.countdownStop = nil
	}
}

func (r *Runtime) startRematchTimer(ctx actor.Context) {
	ttl := r.deps.RematchTTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	engine, self := ctx.Engine(), ctx.Self()
	r.rematchTimer = time.AfterFunc(ttl, func() {
		engine.Send(self, rematchExpireMsg{}, nil)
	})
}

func (r *Runtime) stopRematchTimer() {
	if r.rematchTimer != nil {
		r.rematchTimer.Stop()
		r.rematchTimer = nil
	}
}

func (r *Runtime) startCleanupTimer(ctx actor.Context) {
	delay := r.deps.CleanupDelay
	if delay <= 0 {
		delay = 30 * time.Second
	}
	engine, self := ctx.Engine(), ctx.Self()
	r.cleanupTimer = time.AfterFunc(delay, func() {
		engine.Send(self, cleanupExpireMsg{}, nil)
	})
}

func (r *Runtime) handleCleanupExpire(ctx actor.Context) {
	if r.deps.OnDestroy != nil {
		r.deps.OnDestroy(r.id)
	}
	ctx.Engine().Stop(ctx.Self())
}

func (r *Runtime) stopAllTimers() {
	r.stopTickTicker()
	r.stopCountdownTicker()
	r.stopRematchTimer()
	if r.cleanupTimer != nil {
		r.cleanupTimer.Stop()
		r.cleanupTimer = nil
	}
}
