package match

import "github.com/lguibr/pongrt/internal/physics"

type outJoined struct {
	Type      string            `json:"type"`
	MatchID   string            `json:"matchId"`
	GameState *physics.Snapshot `json:"gameState,omitempty"`
}

type outReadyState struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	Ready  bool   `json:"ready"`
}

type outCountdown struct {
	Type    string `json:"type"`
	Seconds int    `json:"seconds"`
}

type ballWire struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type scoreWire struct {
	P1 int `json:"p1"`
	P2 int `json:"p2"`
}

type outState struct {
	Type      string    `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Ball      ballWire  `json:"ball"`
	P1        float64   `json:"p1"`
	P2        float64   `json:"p2"`
	Score     scoreWire `json:"score"`
}

func newOutState(snap physics.Snapshot) outState {
	return outState{
		Type:      "state",
		Timestamp: snap.Timestamp,
		Ball:      ballWire{X: snap.BallX, Y: snap.BallY},
		P1:        snap.P1Y,
		P2:        snap.P2Y,
		Score:     scoreWire{P1: snap.P1Score, P2: snap.P2Score},
	}
}

type outPaused struct {
	Type     string `json:"type"`
	PausedBy string `json:"pausedBy"`
}

type outResume struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type outGameOver struct {
	Type     string `json:"type"`
	WinnerID string `json:"winnerId"`
	P1Score  int    `json:"p1Score"`
	P2Score  int    `json:"p2Score"`
	Reason   string `json:"reason"`
}

type outLeft struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type outError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type outRematchOffered struct {
	Type string `json:"type"`
	From string `json:"from"`
}

type outRematchAccepted struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId"`
}

type outRematchDeclined struct {
	Type string `json:"type"`
}

type outRematchExpired struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}
