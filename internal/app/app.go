// Package app builds the root context object the process uses in place of
// global singletons: one struct, built once at startup, holding every
// component handle the transport layer dispatches into.
package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/lguibr/pongrt/internal/actor"
	"github.com/lguibr/pongrt/internal/chat"
	"github.com/lguibr/pongrt/internal/config"
	"github.com/lguibr/pongrt/internal/invite"
	"github.com/lguibr/pongrt/internal/match"
	"github.com/lguibr/pongrt/internal/session"
	"github.com/lguibr/pongrt/internal/stats"
	"github.com/lguibr/pongrt/internal/store"
	"github.com/lguibr/pongrt/internal/tournament"
)

// App bundles every component the transport layer needs. It is constructed
// once in cmd/server/main.go and passed explicitly to every handler rather
// than reached through package-level state.
type App struct {
	Config config.Config
	Log    *zap.SugaredLogger

	Engine *actor.Engine

	Session *session.Gate

	MatchRepo      store.MatchRepository
	TournamentRepo store.TournamentRepository
	ChatRepo       store.ChatRepository
	BlockRepo      store.BlockRepository
	StatsRepo      store.StatsRepository

	Stats       *stats.Aggregator
	MatchReg    *match.Registry
	TournReg    *tournament.Registry
	Chat        *chat.Hub
	InvitePID   *actor.PID
}

// New wires every component from its repositories and config, in dependency
// order: stats and the tournament registry have no upstream dependencies,
// the match registry depends on the tournament registry (to notify it of
// tournament-bound results), and the invitation broker depends on both the
// chat hub (to reach a user's sockets) and the match registry (to create
// the match an accepted invite produces).
func New(cfg config.Config, log *zap.SugaredLogger, sessionStore session.Store,
	matchRepo store.MatchRepository, tournRepo store.TournamentRepository,
	chatRepo store.ChatRepository, blockRepo store.BlockRepository, statsRepo store.StatsRepository) *App {

	engine := actor.NewEngine(log)
	statsAgg := stats.New(statsRepo)
	tournReg := tournament.NewRegistry(engine, tournRepo, log)
	chatHub := chat.NewHub(engine, chatRepo, blockRepo, log)

	matchDeps := match.Deps{
		MatchRepo:         matchRepo,
		Stats:             statsAgg,
		Tournament:        tournReg,
		Log:               log,
		Physics:           cfg.Physics,
		TickInterval:      cfg.TickInterval,
		CountdownDuration: cfg.CountdownDuration,
		RematchTTL:        cfg.RematchTTL,
		CleanupDelay:      cfg.PostTerminalCleanup,
		RateLimitPerSec:   cfg.RateLimitInputsPerSecond,
	}
	matchReg := match.NewRegistry(engine, matchRepo, matchDeps)
	tournReg.SetMatchCreator(matchReg)

	invitePID := engine.Spawn(actor.NewProps(invite.NewProducer(cfg.InviteTTL, chatHub, matchReg, log)))

	return &App{
		Config:         cfg,
		Log:            log,
		Engine:         engine,
		Session:        session.New([]byte(cfg.AccessTokenSecret), sessionStore),
		MatchRepo:      matchRepo,
		TournamentRepo: tournRepo,
		ChatRepo:       chatRepo,
		BlockRepo:      blockRepo,
		StatsRepo:      statsRepo,
		Stats:          statsAgg,
		MatchReg:       matchReg,
		TournReg:       tournReg,
		Chat:           chatHub,
		InvitePID:      invitePID,
	}
}

// Shutdown drains every actor, giving in-flight commands up to timeout to
// finish before the process exits.
func (a *App) Shutdown(timeout time.Duration) {
	a.Engine.Shutdown(timeout)
}
