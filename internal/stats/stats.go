// Package stats implements the Stats Aggregator: on match completion, for
// each participant it recomputes wins/losses/streak/last-10 recent matches
// from that user's full completed-match history and rewrites both atomically.
// Recomputing from the full history rather than incrementing in place is
// what makes this idempotent — rerunning on unchanged data yields the same
// result by construction.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lguibr/pongrt/internal/store"
)

const recentMatchLimit = 10

// Aggregator recomputes and persists a user's stats.
type Aggregator struct {
	repo store.StatsRepository
}

func New(repo store.StatsRepository) *Aggregator {
	return &Aggregator{repo: repo}
}

// Recompute folds userID's completed-match history into wins, losses, a
// streak (consecutive wins ending at the most recent match, 0 if the most
// recent result was a loss), and the most recent recentMatchLimit matches,
// then writes both in one transaction.
func (a *Aggregator) Recompute(ctx context.Context, userID string) error {
	history, err := a.repo.CompletedMatchesFor(ctx, userID)
	if err != nil {
		return fmt.Errorf("stats: load history for %s: %w", userID, err)
	}

	var wins, losses, streak int
	var lastResult *string
	for _, m := range history {
		if m.Won {
			wins++
			streak++
			win := "win"
			lastResult = &win
		} else {
			losses++
			streak = 0
			loss := "loss"
			lastResult = &loss
		}
	}

	recent := make([]store.RecentMatch, 0, recentMatchLimit)
	start := len(history) - recentMatchLimit
	if start < 0 {
		start = 0
	}
	for _, m := range history[start:] {
		outcome := "loss"
		if m.Won {
			outcome = "win"
		}
		recent = append(recent, store.RecentMatch{
			ID:             recentMatchID(userID, m.MatchID),
			UserID:         userID,
			OpponentUserID: m.OpponentUserID,
			MatchID:        m.MatchID,
			P1Score:        m.P1Score,
			P2Score:        m.P2Score,
			Outcome:        outcome,
			PlayedAt:       m.PlayedAt,
		})
	}

	us := store.UserStats{
		UserID:     userID,
		Wins:       wins,
		Losses:     losses,
		Streak:     streak,
		LastResult: lastResult,
		UpdatedAt:  time.Now(),
	}

	if err := a.repo.RewriteStats(ctx, us, recent); err != nil {
		return fmt.Errorf("stats: rewrite for %s: %w", userID, err)
	}
	return nil
}

// recentMatchID derives a stable id from (userID, matchID), so recomputing
// an unchanged history reproduces the exact same rows instead of minting
// fresh ids on every run.
func recentMatchID(userID, matchID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(userID+":"+matchID)).String()
}
