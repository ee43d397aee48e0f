package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgMatchRepository is the pgx/pgxpool-backed MatchRepository.
type PgMatchRepository struct {
	pool *pgxpool.Pool
}

func NewPgMatchRepository(pool *pgxpool.Pool) *PgMatchRepository {
	return &PgMatchRepository{pool: pool}
}

func (r *PgMatchRepository) Create(ctx context.Context, m *Match) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO matches (id, tournament_id, p1_id, p2_id, p1_score, p2_score, state, rematch_of, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.TournamentID, m.P1ID, m.P2ID, m.P1Score, m.P2Score, m.State, m.RematchOf, m.CreatedAt)
	return err
}

func (r *PgMatchRepository) Get(ctx context.Context, id string) (*Match, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tournament_id, p1_id, p2_id, p1_score, p2_score, winner_id, state, paused_by, rematch_of, created_at, started_at, ended_at
		FROM matches WHERE id = $1`, id)
	return scanMatch(row)
}

func (r *PgMatchRepository) UpdateLifecycle(ctx context.Context, id string, state MatchState, startedAt *time.Time, pausedBy *string) error {
	if startedAt != nil {
		_, err := r.pool.Exec(ctx, `
			UPDATE matches SET state=$2, started_at=COALESCE(started_at, $3), paused_by=$4 WHERE id=$1`,
			id, state, startedAt, pausedBy)
		return err
	}
	_, err := r.pool.Exec(ctx, `UPDATE matches SET state=$2, paused_by=$3 WHERE id=$1`, id, state, pausedBy)
	return err
}

func (r *PgMatchRepository) RecordResult(ctx context.Context, id string, winnerID string, p1Score, p2Score int, terminal MatchState, endedAt time.Time) (*Match, error) {
	existing, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.State == MatchEnded || existing.State == MatchForfeited {
		return existing, nil
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE matches SET winner_id=$2, p1_score=$3, p2_score=$4, state=$5, ended_at=$6
		WHERE id=$1`, id, winnerID, p1Score, p2Score, terminal, endedAt)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func scanMatch(row pgx.Row) (*Match, error) {
	m := &Match{}
	if err := row.Scan(&m.ID, &m.TournamentID, &m.P1ID, &m.P2ID, &m.P1Score, &m.P2Score, &m.WinnerID, &m.State, &m.PausedBy, &m.RematchOf, &m.CreatedAt, &m.StartedAt, &m.EndedAt); err != nil {
		return nil, err
	}
	return m, nil
}

// PgTournamentRepository is the pgx/pgxpool-backed TournamentRepository.
type PgTournamentRepository struct {
	pool *pgxpool.Pool
}

func NewPgTournamentRepository(pool *pgxpool.Pool) *PgTournamentRepository {
	return &PgTournamentRepository{pool: pool}
}

func (r *PgTournamentRepository) CreateTournament(ctx context.Context, t *Tournament) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tournaments (id, name, status, created_at) VALUES ($1, $2, $3, $4)`,
		t.ID, t.Name, t.Status, t.CreatedAt)
	return err
}

func (r *PgTournamentRepository) GetTournament(ctx context.Context, id string) (*Tournament, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, status, created_at, started_at, completed_at FROM tournaments WHERE id=$1`, id)
	t := &Tournament{}
	if err := row.Scan(&t.ID, &t.Name, &t.Status, &t.CreatedAt, &t.StartedAt, &t.CompletedAt); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *PgTournamentRepository) RegisterPlayer(ctx context.Context, p *TournamentPlayer) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tournament_players (id, tournament_id, alias, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.TournamentID, p.Alias, p.UserID, p.CreatedAt)
	return err
}

func (r *PgTournamentRepository) SetQueued(ctx context.Context, tournamentID, playerID string, queuedAt *time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tournament_players SET queued_at=$3 WHERE tournament_id=$1 AND id=$2`,
		tournamentID, playerID, queuedAt)
	return err
}

func (r *PgTournamentRepository) QueuedPlayers(ctx context.Context, tournamentID string) ([]*TournamentPlayer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tournament_id, alias, user_id, queued_at, eliminated, created_at
		FROM tournament_players WHERE tournament_id=$1 AND queued_at IS NOT NULL
		ORDER BY queued_at ASC`, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*TournamentPlayer
	for rows.Next() {
		p := &TournamentPlayer{}
		if err := rows.Scan(&p.ID, &p.TournamentID, &p.Alias, &p.UserID, &p.QueuedAt, &p.Eliminated, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PgTournamentRepository) CreateTournamentMatch(ctx context.Context, m *TournamentMatch) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tournament_matches (id, tournament_id, p1_id, p2_id, "order", status, created_at, announced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.TournamentID, m.P1ID, m.P2ID, m.Order, m.Status, m.CreatedAt, m.AnnouncedAt)
	return err
}

func (r *PgTournamentRepository) NextOrder(ctx context.Context, tournamentID string) (int, error) {
	var next int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX("order"), 0) + 1 FROM tournament_matches WHERE tournament_id=$1`,
		tournamentID).Scan(&next)
	return next, err
}

func (r *PgTournamentRepository) AnnouncedMatch(ctx context.Context, tournamentID string) (*TournamentMatch, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tournament_id, p1_id, p2_id, "order", status, winner_id, p1_score, p2_score, created_at, announced_at, completed_at
		FROM tournament_matches WHERE tournament_id=$1 AND status='announced'
		ORDER BY "order" DESC LIMIT 1`, tournamentID)
	m, err := scanTournamentMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *PgTournamentRepository) GetTournamentMatch(ctx context.Context, matchID string) (*TournamentMatch, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tournament_id, p1_id, p2_id, "order", status, winner_id, p1_score, p2_score, created_at, announced_at, completed_at
		FROM tournament_matches WHERE id=$1`, matchID)
	return scanTournamentMatch(row)
}

func (r *PgTournamentRepository) RecordTournamentResult(ctx context.Context, matchID, winnerID string, p1Score, p2Score int, completedAt time.Time) (*TournamentMatch, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tournament_id, p1_id, p2_id, "order", status, winner_id, p1_score, p2_score, created_at, announced_at, completed_at
		FROM tournament_matches WHERE id=$1`, matchID)
	existing, err := scanTournamentMatch(row)
	if err != nil {
		return nil, err
	}
	if existing.Status == TournamentMatchCompleted {
		return existing, nil
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE tournament_matches SET status='completed', winner_id=$2, p1_score=$3, p2_score=$4, completed_at=$5
		WHERE id=$1`, matchID, winnerID, p1Score, p2Score, completedAt)
	if err != nil {
		return nil, err
	}
	row = r.pool.QueryRow(ctx, `
		SELECT id, tournament_id, p1_id, p2_id, "order", status, winner_id, p1_score, p2_score, created_at, announced_at, completed_at
		FROM tournament_matches WHERE id=$1`, matchID)
	return scanTournamentMatch(row)
}

func (r *PgTournamentRepository) PendingOrAnnouncedCount(ctx context.Context, tournamentID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM tournament_matches WHERE tournament_id=$1 AND status IN ('pending', 'announced')`,
		tournamentID).Scan(&count)
	return count, err
}

func (r *PgTournamentRepository) StartTournament(ctx context.Context, tournamentID string, startedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tournaments SET status='running', started_at=COALESCE(started_at, $2)
		WHERE id=$1 AND status='pending'`, tournamentID, startedAt)
	return err
}

func (r *PgTournamentRepository) CompleteTournament(ctx context.Context, tournamentID string, completedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tournaments SET status='completed', completed_at=$2 WHERE id=$1`, tournamentID, completedAt)
	return err
}

func (r *PgTournamentRepository) EliminatePlayer(ctx context.Context, tournamentID, playerRef string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE tournament_players SET eliminated=true
		WHERE tournament_id=$1 AND COALESCE(user_id, alias)=$2`, tournamentID, playerRef)
	return err
}

func (r *PgTournamentRepository) Standings(ctx context.Context, tournamentID string) ([]*TournamentPlayer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.tournament_id, p.alias, p.user_id, p.queued_at, p.eliminated, p.created_at
		FROM tournament_players p
		LEFT JOIN tournament_matches m
			ON m.tournament_id = p.tournament_id AND m.winner_id = COALESCE(p.user_id, p.alias)
		WHERE p.tournament_id=$1
		GROUP BY p.id
		ORDER BY count(m.id) DESC, p.created_at ASC`, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*TournamentPlayer
	for rows.Next() {
		p := &TournamentPlayer{}
		if err := rows.Scan(&p.ID, &p.TournamentID, &p.Alias, &p.UserID, &p.QueuedAt, &p.Eliminated, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanTournamentMatch(row pgx.Row) (*TournamentMatch, error) {
	m := &TournamentMatch{}
	if err := row.Scan(&m.ID, &m.TournamentID, &m.P1ID, &m.P2ID, &m.Order, &m.Status, &m.WinnerID, &m.P1Score, &m.P2Score, &m.CreatedAt, &m.AnnouncedAt, &m.CompletedAt); err != nil {
		return nil, err
	}
	return m, nil
}

// PgChatRepository is the pgx/pgxpool-backed ChatRepository.
type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

func (r *PgChatRepository) EnsureChannel(ctx context.Context, slug, title, visibility, createdBy string) (*ChatChannel, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO chat_channels (id, slug, title, visibility, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
		RETURNING id, slug, title, visibility, created_by, created_at`,
		uuid.NewString(), slug, title, visibility, createdBy)

	c := &ChatChannel{}
	if err := row.Scan(&c.ID, &c.Slug, &c.Title, &c.Visibility, &c.CreatedBy, &c.CreatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PgChatRepository) AddMembership(ctx context.Context, channelID, userID, role string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_memberships (channel_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (channel_id, user_id) DO NOTHING`, channelID, userID, role)
	return err
}

func (r *PgChatRepository) SaveMessage(ctx context.Context, m *ChatMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, channel_id, sender_id, content, type, dm_target_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.ChannelID, m.SenderID, m.Content, m.Type, m.DMTargetID, m.CreatedAt)
	return err
}

// PgBlockRepository is the pgx/pgxpool-backed BlockRepository.
type PgBlockRepository struct {
	pool *pgxpool.Pool
}

func NewPgBlockRepository(pool *pgxpool.Pool) *PgBlockRepository {
	return &PgBlockRepository{pool: pool}
}

func (r *PgBlockRepository) Block(ctx context.Context, blockerID, blockedID string, reason *string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_blocks (blocker_id, blocked_id, reason, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (blocker_id, blocked_id) DO UPDATE SET reason = EXCLUDED.reason`,
		blockerID, blockedID, reason)
	return err
}

func (r *PgBlockRepository) Unblock(ctx context.Context, blockerID, blockedID string) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM chat_blocks WHERE blocker_id=$1 AND blocked_id=$2`, blockerID, blockedID)
	return err
}

func (r *PgBlockRepository) IsBlocked(ctx context.Context, userA, userB string) (bool, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM chat_blocks
		WHERE (blocker_id=$1 AND blocked_id=$2) OR (blocker_id=$2 AND blocked_id=$1)`,
		userA, userB).Scan(&count)
	return count > 0, err
}

// PgStatsRepository is the pgx/pgxpool-backed StatsRepository. RewriteStats
// runs the stats upsert and the recent-match upsert-and-prune inside one
// transaction, so readers never observe a half-rewritten record.
type PgStatsRepository struct {
	pool *pgxpool.Pool
}

func NewPgStatsRepository(pool *pgxpool.Pool) *PgStatsRepository {
	return &PgStatsRepository{pool: pool}
}

func (r *PgStatsRepository) CompletedMatchesFor(ctx context.Context, userID string) ([]CompletedMatchView, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, p1_id, p2_id, p1_score, p2_score, winner_id, ended_at
		FROM matches
		WHERE (p1_id=$1 OR p2_id=$1) AND state IN ('ended', 'forfeited')
		ORDER BY ended_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CompletedMatchView
	for rows.Next() {
		var id, p1ID, p2ID string
		var p1Score, p2Score int
		var winnerID *string
		var endedAt *time.Time
		if err := rows.Scan(&id, &p1ID, &p2ID, &p1Score, &p2Score, &winnerID, &endedAt); err != nil {
			return nil, err
		}
		var opponent *string
		if p1ID == userID {
			opponent = &p2ID
		} else {
			opponent = &p1ID
		}
		won := winnerID != nil && *winnerID == userID
		played := time.Time{}
		if endedAt != nil {
			played = *endedAt
		}
		out = append(out, CompletedMatchView{
			MatchID:        id,
			OpponentUserID: opponent,
			P1Score:        p1Score,
			P2Score:        p2Score,
			Won:            won,
			PlayedAt:       played,
		})
	}
	return out, rows.Err()
}

func (r *PgStatsRepository) RewriteStats(ctx context.Context, stats UserStats, recent []RecentMatch) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO user_stats (user_id, wins, losses, streak, last_result, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			wins=EXCLUDED.wins, losses=EXCLUDED.losses, streak=EXCLUDED.streak,
			last_result=EXCLUDED.last_result, updated_at=EXCLUDED.updated_at`,
		stats.UserID, stats.Wins, stats.Losses, stats.Streak, stats.LastResult, stats.UpdatedAt)
	if err != nil {
		return err
	}

	// Upsert keeps existing rows' id and created_at untouched, so recomputing
	// an unchanged history leaves the table byte-for-byte identical; only
	// rows that fell out of the last-10 window are pruned afterward.
	keep := make([]string, 0, len(recent))
	for _, rm := range recent {
		keep = append(keep, rm.MatchID)
		_, err := tx.Exec(ctx, `
			INSERT INTO user_recent_matches (id, user_id, opponent_user_id, match_id, p1_score, p2_score, outcome, played_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (user_id, match_id) DO UPDATE SET
				opponent_user_id=EXCLUDED.opponent_user_id, p1_score=EXCLUDED.p1_score,
				p2_score=EXCLUDED.p2_score, outcome=EXCLUDED.outcome, played_at=EXCLUDED.played_at`,
			rm.ID, rm.UserID, rm.OpponentUserID, rm.MatchID, rm.P1Score, rm.P2Score, rm.Outcome, rm.PlayedAt)
		if err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM user_recent_matches WHERE user_id=$1 AND NOT (match_id = ANY($2::uuid[]))`,
		stats.UserID, keep); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
