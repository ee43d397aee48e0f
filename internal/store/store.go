// Package store is the durable persistence layer: narrow repository
// interfaces backed by pgx/pgxpool rather than an ORM. A user's stats
// rewrite runs inside a single transaction. Match completion is a
// single-row update of the match, and the participants' stats are rewritten
// afterwards in separate transactions, so a crash between the two leaves
// the match completed with its participants' stats not yet rewritten.
package store

import (
	"context"
	"time"
)

// MatchState mirrors the match lifecycle states the runtime drives through.
type MatchState string

const (
	MatchWaiting    MatchState = "waiting"
	MatchCountdown  MatchState = "countdown"
	MatchPlaying    MatchState = "playing"
	MatchPaused     MatchState = "paused"
	MatchEnded      MatchState = "ended"
	MatchForfeited  MatchState = "forfeited"
)

// Match is the durable row backing one Pong match.
type Match struct {
	ID           string
	TournamentID *string
	P1ID         string
	P2ID         string
	P1Score      int
	P2Score      int
	WinnerID     *string
	State        MatchState
	PausedBy     *string
	RematchOf    *string
	CreatedAt    time.Time
	StartedAt    *time.Time
	EndedAt      *time.Time
}

// MatchRepository persists match rows and the result of completed matches.
type MatchRepository interface {
	Create(ctx context.Context, m *Match) error
	Get(ctx context.Context, id string) (*Match, error)
	// UpdateLifecycle writes a non-terminal lifecycle transition: state,
	// startedAt on first transition out of waiting, pausedBy on pause/resume.
	UpdateLifecycle(ctx context.Context, id string, state MatchState, startedAt *time.Time, pausedBy *string) error
	// RecordResult performs the idempotent terminal write: if the match is
	// already in a terminal state this is a no-op and returns the existing
	// row unchanged.
	RecordResult(ctx context.Context, id string, winnerID string, p1Score, p2Score int, terminal MatchState, endedAt time.Time) (*Match, error)
}

// TournamentStatus mirrors the coordinator's lifecycle.
type TournamentStatus string

const (
	TournamentPending   TournamentStatus = "pending"
	TournamentRunning   TournamentStatus = "running"
	TournamentCompleted TournamentStatus = "completed"
)

// Tournament is the durable row for a tournament.
type Tournament struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Status      TournamentStatus `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	StartedAt   *time.Time       `json:"startedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

// TournamentPlayer is one registered participant, possibly queued.
type TournamentPlayer struct {
	ID           string     `json:"id"`
	TournamentID string     `json:"tournamentId"`
	Alias        string     `json:"alias"`
	UserID       *string    `json:"userId,omitempty"`
	QueuedAt     *time.Time `json:"queuedAt,omitempty"`
	Eliminated   bool       `json:"eliminated"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// TournamentMatchStatus mirrors announce/result transitions.
type TournamentMatchStatus string

const (
	TournamentMatchPending    TournamentMatchStatus = "pending"
	TournamentMatchAnnounced  TournamentMatchStatus = "announced"
	TournamentMatchCompleted  TournamentMatchStatus = "completed"
)

// TournamentMatch is one paired-up bracket match within a tournament.
type TournamentMatch struct {
	ID           string                `json:"id"`
	TournamentID string                `json:"tournamentId"`
	P1ID         string                `json:"p1Id"`
	P2ID         string                `json:"p2Id"`
	Order        int                   `json:"order"`
	Status       TournamentMatchStatus `json:"status"`
	WinnerID     *string               `json:"winnerId,omitempty"`
	P1Score      *int                  `json:"p1Score,omitempty"`
	P2Score      *int                  `json:"p2Score,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	AnnouncedAt  *time.Time            `json:"announcedAt,omitempty"`
	CompletedAt  *time.Time            `json:"completedAt,omitempty"`
}

// TournamentRepository persists tournament state.
type TournamentRepository interface {
	CreateTournament(ctx context.Context, t *Tournament) error
	GetTournament(ctx context.Context, id string) (*Tournament, error)
	RegisterPlayer(ctx context.Context, p *TournamentPlayer) error
	SetQueued(ctx context.Context, tournamentID, playerID string, queuedAt *time.Time) error
	QueuedPlayers(ctx context.Context, tournamentID string) ([]*TournamentPlayer, error)
	CreateTournamentMatch(ctx context.Context, m *TournamentMatch) error
	// NextOrder returns the order value the next created match should use.
	NextOrder(ctx context.Context, tournamentID string) (int, error)
	AnnouncedMatch(ctx context.Context, tournamentID string) (*TournamentMatch, error)
	// GetTournamentMatch looks up one bracket match by id, for validating a
	// result write's winnerId against its actual participants.
	GetTournamentMatch(ctx context.Context, matchID string) (*TournamentMatch, error)
	// RecordTournamentResult is idempotent: calling it on an already
	// completed match returns the existing row unchanged.
	RecordTournamentResult(ctx context.Context, matchID, winnerID string, p1Score, p2Score int, completedAt time.Time) (*TournamentMatch, error)
	PendingOrAnnouncedCount(ctx context.Context, tournamentID string) (int, error)
	// StartTournament transitions pending→running and stamps startedAt; a
	// no-op once the tournament has left pending.
	StartTournament(ctx context.Context, tournamentID string, startedAt time.Time) error
	CompleteTournament(ctx context.Context, tournamentID string, completedAt time.Time) error
	// EliminatePlayer flags the player whose user id or alias matches
	// playerRef as out of the bracket.
	EliminatePlayer(ctx context.Context, tournamentID, playerRef string) error
	// Standings lists every registered player, most matches won first.
	Standings(ctx context.Context, tournamentID string) ([]*TournamentPlayer, error)
}

// ChatMessageType distinguishes a channel post from a direct message.
type ChatMessageType string

const (
	ChatMessageChannel ChatMessageType = "channel"
	ChatMessageDM      ChatMessageType = "dm"
)

// ChatChannel is a durable chat room.
type ChatChannel struct {
	ID         string
	Slug       string
	Title      string
	Visibility string
	CreatedBy  string
	CreatedAt  time.Time
}

// ChatMessage is one persisted chat post, channel or DM.
type ChatMessage struct {
	ID          string
	ChannelID   *string
	SenderID    string
	Content     string
	Type        ChatMessageType
	DMTargetID  *string
	CreatedAt   time.Time
}

// ChatRepository persists channels, memberships, messages, and blocks.
type ChatRepository interface {
	EnsureChannel(ctx context.Context, slug, title, visibility, createdBy string) (*ChatChannel, error)
	AddMembership(ctx context.Context, channelID, userID, role string) error
	SaveMessage(ctx context.Context, m *ChatMessage) error
}

// BlockRepository tracks symmetric chat blocks.
type BlockRepository interface {
	Block(ctx context.Context, blockerID, blockedID string, reason *string) error
	Unblock(ctx context.Context, blockerID, blockedID string) error
	// IsBlocked reports whether either user has blocked the other.
	IsBlocked(ctx context.Context, userA, userB string) (bool, error)
}

// UserStats is the per-user aggregated record.
type UserStats struct {
	UserID     string
	Wins       int
	Losses     int
	Streak     int
	LastResult *string
	UpdatedAt  time.Time
}

// RecentMatch is one row of a user's last-10 played-match feed.
type RecentMatch struct {
	ID              string
	UserID          string
	OpponentUserID  *string
	MatchID         string
	P1Score         int
	P2Score         int
	Outcome         string
	PlayedAt        time.Time
	CreatedAt       time.Time
}

// CompletedMatchView is the minimal per-match projection the stats
// aggregator needs to recompute a user's record from scratch.
type CompletedMatchView struct {
	MatchID        string
	OpponentUserID *string
	P1Score        int
	P2Score        int
	Won            bool
	PlayedAt       time.Time
}

// StatsRepository persists aggregated stats and the recent-match feed.
type StatsRepository interface {
	// CompletedMatchesFor returns a user's completed matches in
	// chronological order, for the aggregator to fold over.
	CompletedMatchesFor(ctx context.Context, userID string) ([]CompletedMatchView, error)
	// RewriteStats atomically replaces the stats row and the recent-match
	// snapshot rows for userID in a single transaction.
	RewriteStats(ctx context.Context, stats UserStats, recent []RecentMatch) error
}
