package tournament

import "github.com/lguibr/pongrt/internal/store"

type outSubscribed struct {
	Type         string `json:"type"`
	TournamentID string `json:"tournamentId"`
}

type outUnsubscribed struct {
	Type         string `json:"type"`
	TournamentID string `json:"tournamentId"`
}

type outAnnounceNext struct {
	Type         string `json:"type"`
	TournamentID string `json:"tournamentId"`
	MatchID      string `json:"matchId"`
	P1ID         string `json:"p1Id"`
	P2ID         string `json:"p2Id"`
	Order        int    `json:"order"`
}

func newOutAnnounceNext(tournamentID string, m *store.TournamentMatch) outAnnounceNext {
	return outAnnounceNext{
		Type:         "announceNext",
		TournamentID: tournamentID,
		MatchID:      m.ID,
		P1ID:         m.P1ID,
		P2ID:         m.P2ID,
		Order:        m.Order,
	}
}

type outResult struct {
	Type         string `json:"type"`
	TournamentID string `json:"tournamentId"`
	MatchID      string `json:"matchId"`
	WinnerID     string `json:"winnerId"`
	P1Score      int    `json:"p1Score"`
	P2Score      int    `json:"p2Score"`
}

func newOutResult(tournamentID string, m *store.TournamentMatch) outResult {
	out := outResult{
		Type:         "result",
		TournamentID: tournamentID,
		MatchID:      m.ID,
	}
	if m.WinnerID != nil {
		out.WinnerID = *m.WinnerID
	}
	if m.P1Score != nil {
		out.P1Score = *m.P1Score
	}
	if m.P2Score != nil {
		out.P2Score = *m.P2Score
	}
	return out
}
