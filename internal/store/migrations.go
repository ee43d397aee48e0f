package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the schema if it does not already exist: a flat list of
// idempotent CREATE TABLE IF NOT EXISTS statements run in order against a
// pgxpool.Pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		createMatchesTable,
		createTournamentsTable,
		createTournamentPlayersTable,
		createTournamentMatchesTable,
		createChatTables,
		createStatsTables,
		createIndexes,
	}
	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("store: migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

const createMatchesTable = `
CREATE TABLE IF NOT EXISTS matches (
    id UUID PRIMARY KEY,
    tournament_id UUID,
    p1_id TEXT NOT NULL,
    p2_id TEXT NOT NULL,
    p1_score INT NOT NULL DEFAULT 0,
    p2_score INT NOT NULL DEFAULT 0,
    winner_id TEXT,
    state TEXT NOT NULL,
    paused_by TEXT,
    rematch_of UUID,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    started_at TIMESTAMPTZ,
    ended_at TIMESTAMPTZ
);
`

const createTournamentsTable = `
CREATE TABLE IF NOT EXISTS tournaments (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    started_at TIMESTAMPTZ,
    completed_at TIMESTAMPTZ
);
`

const createTournamentPlayersTable = `
CREATE TABLE IF NOT EXISTS tournament_players (
    id UUID PRIMARY KEY,
    tournament_id UUID NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
    alias TEXT NOT NULL,
    user_id TEXT,
    queued_at TIMESTAMPTZ,
    eliminated BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (tournament_id, alias)
);
`

const createTournamentMatchesTable = `
CREATE TABLE IF NOT EXISTS tournament_matches (
    id UUID PRIMARY KEY,
    tournament_id UUID NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
    p1_id TEXT NOT NULL,
    p2_id TEXT NOT NULL,
    "order" INT NOT NULL,
    status TEXT NOT NULL,
    winner_id TEXT,
    p1_score INT,
    p2_score INT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    announced_at TIMESTAMPTZ,
    completed_at TIMESTAMPTZ
);
`

const createChatTables = `
CREATE TABLE IF NOT EXISTS chat_channels (
    id UUID PRIMARY KEY,
    slug TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL,
    visibility TEXT NOT NULL,
    created_by TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chat_memberships (
    channel_id UUID NOT NULL REFERENCES chat_channels(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    role TEXT NOT NULL,
    joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (channel_id, user_id)
);

CREATE TABLE IF NOT EXISTS chat_messages (
    id UUID PRIMARY KEY,
    channel_id UUID,
    sender_id TEXT NOT NULL,
    content VARCHAR(2000) NOT NULL,
    type TEXT NOT NULL,
    dm_target_id TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chat_blocks (
    blocker_id TEXT NOT NULL,
    blocked_id TEXT NOT NULL,
    reason TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (blocker_id, blocked_id),
    CHECK (blocker_id <> blocked_id)
);
`

const createStatsTables = `
CREATE TABLE IF NOT EXISTS user_stats (
    user_id TEXT PRIMARY KEY,
    wins INT NOT NULL DEFAULT 0,
    losses INT NOT NULL DEFAULT 0,
    streak INT NOT NULL DEFAULT 0,
    last_result TEXT,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_recent_matches (
    id UUID PRIMARY KEY,
    user_id TEXT NOT NULL,
    opponent_user_id TEXT,
    match_id UUID NOT NULL,
    p1_score INT NOT NULL,
    p2_score INT NOT NULL,
    outcome TEXT NOT NULL,
    played_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (user_id, match_id)
);
`

const createIndexes = `
CREATE INDEX IF NOT EXISTS idx_tournament_matches_tournament ON tournament_matches(tournament_id, status);
CREATE INDEX IF NOT EXISTS idx_tournament_players_queue ON tournament_players(tournament_id, queued_at);
CREATE INDEX IF NOT EXISTS idx_chat_messages_channel ON chat_messages(channel_id, created_at);
CREATE INDEX IF NOT EXISTS idx_recent_matches_user ON user_recent_matches(user_id, played_at DESC);
`
