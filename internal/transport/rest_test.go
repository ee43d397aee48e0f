package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lguibr/pongrt/internal/app"
	"github.com/lguibr/pongrt/internal/config"
	"github.com/lguibr/pongrt/internal/logging"
	"github.com/lguibr/pongrt/internal/physics"
	"github.com/lguibr/pongrt/internal/session"
	"github.com/lguibr/pongrt/internal/store"
)

func testApp(t *testing.T) (*app.App, *httptest.Server, string) {
	t.Helper()
	cfg := config.Config{
		AccessTokenSecret:        "test-secret",
		Physics:                  physics.DefaultConfig(),
		TickInterval:             5 * time.Millisecond,
		CountdownDuration:        30 * time.Millisecond,
		RematchTTL:               50 * time.Millisecond,
		PostTerminalCleanup:      50 * time.Millisecond,
		RateLimitInputsPerSecond: 60,
	}
	sessionStore := session.NewMemStore()
	a := app.New(cfg, logging.Nop(), sessionStore,
		newFakeMatchRepo(), newFakeTournamentRepo(), newFakeChatRepo(), newFakeBlockRepo(), newFakeStatsRepo())

	token, err := a.Session.Issue("user-1", "sess-1", time.Hour)
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(a))
	t.Cleanup(srv.Close)
	return a, srv, token
}

func authedRequest(t *testing.T, method, url, token string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateAndGetPongMatch(t *testing.T) {
	_, srv, token := testApp(t)

	req := authedRequest(t, http.MethodPost, srv.URL+"/matches/pong", token, map[string]string{"opponentId": "user-2"})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created matchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "user-1", created.P1ID)
	assert.Equal(t, "user-2", created.P2ID)
	assert.Equal(t, "waiting", created.State)
	assert.NotEmpty(t, created.MatchID)

	getReq := authedRequest(t, http.MethodGet, srv.URL+"/matches/pong/"+created.MatchID, token, nil)
	getResp, err := http.DefaultClient.Do(getReq)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var fetched matchResponse
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&fetched))
	assert.Equal(t, created.MatchID, fetched.MatchID)
}

func TestCreatePongMatchRejectsSelfMatch(t *testing.T) {
	_, srv, token := testApp(t)

	req := authedRequest(t, http.MethodPost, srv.URL+"/matches/pong", token, map[string]string{"opponentId": "user-1"})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRestRequiresAuthentication(t *testing.T) {
	_, srv, _ := testApp(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/matches/pong/unknown", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPatchPongMatchRecordsResult(t *testing.T) {
	_, srv, token := testApp(t)

	createReq := authedRequest(t, http.MethodPost, srv.URL+"/matches/pong", token, map[string]string{"opponentId": "user-2"})
	createResp, err := http.DefaultClient.Do(createReq)
	require.NoError(t, err)
	var created matchResponse
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))
	createResp.Body.Close()

	patchReq := authedRequest(t, http.MethodPatch, srv.URL+"/matches/pong/"+created.MatchID, token, map[string]interface{}{
		"winnerId": "user-1", "p1Score": 11, "p2Score": 7,
	})
	patchResp, err := http.DefaultClient.Do(patchReq)
	require.NoError(t, err)
	defer patchResp.Body.Close()
	require.Equal(t, http.StatusOK, patchResp.StatusCode)

	var result matchResponse
	require.NoError(t, json.NewDecoder(patchResp.Body).Decode(&result))
	assert.Equal(t, "ended", result.State)
	require.NotNil(t, result.WinnerID)
	assert.Equal(t, "user-1", *result.WinnerID)
	assert.Equal(t, 11, result.P1Score)
}

func TestTournamentCreateRegisterAnnounceResult(t *testing.T) {
	a, srv, token := testApp(t)

	createReq := authedRequest(t, http.MethodPost, srv.URL+"/tournament", token, map[string]string{"name": "Spring Open"})
	createResp, err := http.DefaultClient.Do(createReq)
	require.NoError(t, err)
	var tr tournamentResponse
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&tr))
	createResp.Body.Close()
	require.NotEmpty(t, tr.ID)

	p1 := &store.TournamentPlayer{ID: "p1", TournamentID: tr.ID, Alias: "alice"}
	p2 := &store.TournamentPlayer{ID: "p2", TournamentID: tr.ID, Alias: "bob"}
	require.NoError(t, a.TournamentRepo.RegisterPlayer(context.Background(), p1))
	require.NoError(t, a.TournamentRepo.RegisterPlayer(context.Background(), p2))

	joinReq := authedRequest(t, http.MethodPost, srv.URL+"/tournament/queue/join", token, map[string]string{"tournamentId": tr.ID, "playerId": "p1"})
	joinResp, err := http.DefaultClient.Do(joinReq)
	require.NoError(t, err)
	joinResp.Body.Close()
	require.Equal(t, http.StatusNoContent, joinResp.StatusCode)

	joinReq2 := authedRequest(t, http.MethodPost, srv.URL+"/tournament/queue/join", token, map[string]string{"tournamentId": tr.ID, "playerId": "p2"})
	joinResp2, err := http.DefaultClient.Do(joinReq2)
	require.NoError(t, err)
	joinResp2.Body.Close()

	var announced *store.TournamentMatch
	require.Eventually(t, func() bool {
		announceReq := authedRequest(t, http.MethodPost, srv.URL+"/tournament/announce-next", token, map[string]string{"tournamentId": tr.ID})
		announceResp, err := http.DefaultClient.Do(announceReq)
		require.NoError(t, err)
		defer announceResp.Body.Close()
		if announceResp.StatusCode == http.StatusNoContent {
			return false
		}
		require.NoError(t, json.NewDecoder(announceResp.Body).Decode(&announced))
		return announced != nil
	}, time.Second, 10*time.Millisecond)

	resultReq := authedRequest(t, http.MethodPost, srv.URL+"/tournament/result", token, map[string]interface{}{
		"tournamentId": tr.ID, "matchId": announced.ID, "winnerId": announced.P1ID, "p1Score": 11, "p2Score": 3,
	})
	resultResp, err := http.DefaultClient.Do(resultReq)
	require.NoError(t, err)
	defer resultResp.Body.Close()
	require.Equal(t, http.StatusOK, resultResp.StatusCode)

	var completed store.TournamentMatch
	require.NoError(t, json.NewDecoder(resultResp.Body).Decode(&completed))
	assert.Equal(t, store.TournamentMatchCompleted, completed.Status)
}
