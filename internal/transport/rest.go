package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/lguibr/pongrt/internal/app"
	"github.com/lguibr/pongrt/internal/apperr"
	"github.com/lguibr/pongrt/internal/store"
)

// matchResponse is the `{matchId, p1Id, p2Id, state}` shape the match
// endpoints return; GET fills in scores and winner on the same shape.
type matchResponse struct {
	MatchID      string  `json:"matchId"`
	TournamentID *string `json:"tournamentId,omitempty"`
	P1ID         string  `json:"p1Id"`
	P2ID         string  `json:"p2Id"`
	P1Score      int     `json:"p1Score"`
	P2Score      int     `json:"p2Score"`
	WinnerID     *string `json:"winnerId,omitempty"`
	State        string  `json:"state"`
}

func newMatchResponse(m *store.Match) matchResponse {
	return matchResponse{
		MatchID:      m.ID,
		TournamentID: m.TournamentID,
		P1ID:         m.P1ID,
		P2ID:         m.P2ID,
		P1Score:      m.P1Score,
		P2Score:      m.P2Score,
		WinnerID:     m.WinnerID,
		State:        string(m.State),
	}
}

// CreatePongMatch handles `POST /matches/pong {opponentId}`: direct match
// creation outside the invitation flow.
func CreatePongMatch(a *app.App) http.HandlerFunc {
	type body struct {
		OpponentID string `json:"opponentId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authenticate(r, a)
		if err != nil {
			writeError(w, apperr.Authorization(apperr.CodeUnauthorized, "unauthorized"))
			return
		}
		var b body
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil || b.OpponentID == "" {
			writeError(w, apperr.Validation(apperr.CodeInvalidInput, "opponentId is required"))
			return
		}
		if b.OpponentID == userID {
			writeError(w, apperr.Validation(apperr.CodeInviteToSelf, "cannot match yourself"))
			return
		}

		matchID, err := a.MatchReg.CreateMatch(r.Context(), userID, b.OpponentID)
		if err != nil {
			writeError(w, apperr.Internal(apperr.CodeInternal, "create match failed", err))
			return
		}
		writeJSON(w, http.StatusCreated, matchResponse{
			MatchID: matchID,
			P1ID:    userID,
			P2ID:    b.OpponentID,
			State:   string(store.MatchWaiting),
		})
	}
}

// GetPongMatch handles `GET /matches/pong/:matchId`.
func GetPongMatch(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authenticate(r, a); err != nil {
			writeError(w, apperr.Authorization(apperr.CodeUnauthorized, "unauthorized"))
			return
		}
		matchID := mux.Vars(r)["matchId"]
		m, err := a.MatchRepo.Get(r.Context(), matchID)
		if err != nil {
			writeError(w, apperr.NotFound(apperr.CodeNotFound, "match not found"))
			return
		}
		writeJSON(w, http.StatusOK, newMatchResponse(m))
	}
}

// PatchPongMatch handles `PATCH /matches/pong/:matchId {winnerId, p1Score,
// p2Score}`: the idempotent result write.
func PatchPongMatch(a *app.App) http.HandlerFunc {
	type body struct {
		WinnerID string `json:"winnerId"`
		P1Score  int    `json:"p1Score"`
		P2Score  int    `json:"p2Score"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authenticate(r, a); err != nil {
			writeError(w, apperr.Authorization(apperr.CodeUnauthorized, "unauthorized"))
			return
		}
		matchID := mux.Vars(r)["matchId"]
		var b body
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil || b.WinnerID == "" {
			writeError(w, apperr.Validation(apperr.CodeInvalidInput, "winnerId is required"))
			return
		}
		existing, err := a.MatchRepo.Get(r.Context(), matchID)
		if err != nil {
			writeError(w, apperr.NotFound(apperr.CodeNotFound, "match not found"))
			return
		}
		if b.WinnerID != existing.P1ID && b.WinnerID != existing.P2ID {
			writeError(w, apperr.Conflict(apperr.CodeInvalidWinner, "winnerId must be a participant of the match"))
			return
		}
		m, err := a.MatchRepo.RecordResult(r.Context(), matchID, b.WinnerID, b.P1Score, b.P2Score, store.MatchEnded, time.Now())
		if err != nil {
			writeError(w, apperr.NotFound(apperr.CodeNotFound, "match not found"))
			return
		}
		if m.TournamentID != nil {
			a.TournReg.NotifyMatchResult(*m.TournamentID, m.ID, b.WinnerID, b.P1Score, b.P2Score)
		}
		a.Stats.Recompute(r.Context(), m.P1ID)
		a.Stats.Recompute(r.Context(), m.P2ID)
		writeJSON(w, http.StatusOK, newMatchResponse(m))
	}
}

type tournamentResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"createdAt"`
	StartedAt   *int64 `json:"startedAt,omitempty"`
	CompletedAt *int64 `json:"completedAt,omitempty"`
}

func newTournamentResponse(t *store.Tournament) tournamentResponse {
	out := tournamentResponse{
		ID:        t.ID,
		Name:      t.Name,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt.Unix(),
	}
	if t.StartedAt != nil {
		ts := t.StartedAt.Unix()
		out.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := t.CompletedAt.Unix()
		out.CompletedAt = &ts
	}
	return out
}

// CreateTournament handles `POST /tournament {name}`.
func CreateTournament(a *app.App) http.HandlerFunc {
	type body struct {
		Name string `json:"name"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authenticate(r, a); err != nil {
			writeError(w, apperr.Authorization(apperr.CodeUnauthorized, "unauthorized"))
			return
		}
		var b body
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil || b.Name == "" {
			writeError(w, apperr.Validation(apperr.CodeInvalidInput, "name is required"))
			return
		}
		t := &store.Tournament{
			ID:        uuid.NewString(),
			Name:      b.Name,
			Status:    store.TournamentPending,
			CreatedAt: time.Now(),
		}
		if err := a.TournamentRepo.CreateTournament(r.Context(), t); err != nil {
			writeError(w, apperr.Internal(apperr.CodeInternal, "create tournament failed", err))
			return
		}
		writeJSON(w, http.StatusCreated, newTournamentResponse(t))
	}
}

// RegisterTournamentPlayer handles `POST /tournament/register
// {tournamentId, alias, userId?}`.
func RegisterTournamentPlayer(a *app.App) http.HandlerFunc {
	type body struct {
		TournamentID string  `json:"tournamentId"`
		Alias        string  `json:"alias"`
		UserID       *string `json:"userId,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authenticate(r, a); err != nil {
			writeError(w, apperr.Authorization(apperr.CodeUnauthorized, "unauthorized"))
			return
		}
		var b body
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil || b.TournamentID == "" || b.Alias == "" {
			writeError(w, apperr.Validation(apperr.CodeInvalidInput, "tournamentId and alias are required"))
			return
		}
		p := &store.TournamentPlayer{
			ID:           uuid.NewString(),
			TournamentID: b.TournamentID,
			Alias:        b.Alias,
			UserID:       b.UserID,
			CreatedAt:    time.Now(),
		}
		if err := a.TournamentRepo.RegisterPlayer(r.Context(), p); err != nil {
			writeError(w, apperr.Internal(apperr.CodeInternal, "register player failed", err))
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

// joinLeaveBody is shared by the queue join/leave endpoints.
type joinLeaveBody struct {
	TournamentID string `json:"tournamentId"`
	PlayerID     string `json:"playerId"`
}

// QueueJoin handles `POST /tournament/queue/join`.
func QueueJoin(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authenticate(r, a); err != nil {
			writeError(w, apperr.Authorization(apperr.CodeUnauthorized, "unauthorized"))
			return
		}
		var b joinLeaveBody
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil || b.TournamentID == "" || b.PlayerID == "" {
			writeError(w, apperr.Validation(apperr.CodeInvalidInput, "tournamentId and playerId are required"))
			return
		}
		a.TournReg.Enqueue(b.TournamentID, b.PlayerID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// QueueLeave handles `POST /tournament/queue/leave`.
func QueueLeave(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authenticate(r, a); err != nil {
			writeError(w, apperr.Authorization(apperr.CodeUnauthorized, "unauthorized"))
			return
		}
		var b joinLeaveBody
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil || b.TournamentID == "" || b.PlayerID == "" {
			writeError(w, apperr.Validation(apperr.CodeInvalidInput, "tournamentId and playerId are required"))
			return
		}
		a.TournReg.Dequeue(b.TournamentID, b.PlayerID)
		w.WriteHeader(http.StatusNoContent)
	}
}

// AnnounceNext handles `POST /tournament/announce-next {tournamentId}`.
func AnnounceNext(a *app.App) http.HandlerFunc {
	type reqBody struct {
		TournamentID string `json:"tournamentId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authenticate(r, a); err != nil {
			writeError(w, apperr.Authorization(apperr.CodeUnauthorized, "unauthorized"))
			return
		}
		var b reqBody
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil || b.TournamentID == "" {
			writeError(w, apperr.Validation(apperr.CodeInvalidInput, "tournamentId is required"))
			return
		}
		tm, err := a.TournReg.AnnounceNext(r.Context(), b.TournamentID)
		if err != nil {
			writeError(w, apperr.Internal(apperr.CodeInternal, "announce-next failed", err))
			return
		}
		if tm == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, tm)
	}
}

// RecordTournamentResult handles `POST /tournament/result {tournamentId,
// matchId, winnerId, p1Score, p2Score}`.
func RecordTournamentResult(a *app.App) http.HandlerFunc {
	type reqBody struct {
		TournamentID string `json:"tournamentId"`
		MatchID      string `json:"matchId"`
		WinnerID     string `json:"winnerId"`
		P1Score      int    `json:"p1Score"`
		P2Score      int    `json:"p2Score"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authenticate(r, a); err != nil {
			writeError(w, apperr.Authorization(apperr.CodeUnauthorized, "unauthorized"))
			return
		}
		var b reqBody
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil || b.TournamentID == "" || b.MatchID == "" || b.WinnerID == "" {
			writeError(w, apperr.Validation(apperr.CodeInvalidInput, "tournamentId, matchId and winnerId are required"))
			return
		}
		existing, err := a.TournamentRepo.GetTournamentMatch(r.Context(), b.MatchID)
		if err != nil {
			writeError(w, apperr.NotFound(apperr.CodeNotFound, "tournament match not found"))
			return
		}
		if b.WinnerID != existing.P1ID && b.WinnerID != existing.P2ID {
			writeError(w, apperr.Conflict(apperr.CodeInvalidWinner, "winnerId must be a participant of the match"))
			return
		}
		tm, err := a.TournReg.RecordResult(r.Context(), b.TournamentID, b.MatchID, b.WinnerID, b.P1Score, b.P2Score)
		if err != nil {
			writeError(w, err)
			return
		}
		if tm == nil {
			writeError(w, apperr.Internal(apperr.CodeInternal, "record result failed", nil))
			return
		}
		writeJSON(w, http.StatusOK, tm)
	}
}

// GetTournament handles `GET /tournament/:id`.
func GetTournament(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authenticate(r, a); err != nil {
			writeError(w, apperr.Authorization(apperr.CodeUnauthorized, "unauthorized"))
			return
		}
		id := mux.Vars(r)["id"]
		t, err := a.TournamentRepo.GetTournament(r.Context(), id)
		if err != nil {
			writeError(w, apperr.NotFound(apperr.CodeNotFound, "tournament not found"))
			return
		}
		writeJSON(w, http.StatusOK, newTournamentResponse(t))
	}
}

// TournamentBoard handles `GET /tournament/:id/board`: current standings.
func TournamentBoard(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authenticate(r, a); err != nil {
			writeError(w, apperr.Authorization(apperr.CodeUnauthorized, "unauthorized"))
			return
		}
		id := mux.Vars(r)["id"]
		standings, err := a.TournamentRepo.Standings(r.Context(), id)
		if err != nil {
			writeError(w, apperr.Internal(apperr.CodeInternal, "standings failed", err))
			return
		}
		writeJSON(w, http.StatusOK, standings)
	}
}
