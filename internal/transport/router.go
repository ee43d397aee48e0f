package transport

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lguibr/pongrt/internal/app"
)

// NewRouter builds the full HTTP surface: the three WebSocket upgrade
// routes plus the REST endpoints, all dispatching into the same *App, with
// one logging middleware wrapping every route.
func NewRouter(a *app.App) *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(a))

	r.HandleFunc("/ws/chat", ChatWS(a))
	r.HandleFunc("/ws/pong/{matchId}", PongWS(a))
	r.HandleFunc("/ws/tournament", TournamentWS(a))

	r.HandleFunc("/matches/pong", CreatePongMatch(a)).Methods(http.MethodPost)
	r.HandleFunc("/matches/pong/{matchId}", GetPongMatch(a)).Methods(http.MethodGet)
	r.HandleFunc("/matches/pong/{matchId}", PatchPongMatch(a)).Methods(http.MethodPatch)

	r.HandleFunc("/tournament", CreateTournament(a)).Methods(http.MethodPost)
	r.HandleFunc("/tournament/register", RegisterTournamentPlayer(a)).Methods(http.MethodPost)
	r.HandleFunc("/tournament/queue/join", QueueJoin(a)).Methods(http.MethodPost)
	r.HandleFunc("/tournament/queue/leave", QueueLeave(a)).Methods(http.MethodPost)
	r.HandleFunc("/tournament/announce-next", AnnounceNext(a)).Methods(http.MethodPost)
	r.HandleFunc("/tournament/result", RecordTournamentResult(a)).Methods(http.MethodPost)
	r.HandleFunc("/tournament/{id}/board", TournamentBoard(a)).Methods(http.MethodGet)
	r.HandleFunc("/tournament/{id}", GetTournament(a)).Methods(http.MethodGet)

	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	return r
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// loggingMiddleware logs method, path, status, and latency, one line per
// request.
func loggingMiddleware(a *app.App) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			a.Log.Infow("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack forwards to the wrapped ResponseWriter so WebSocket upgrades keep
// working through this middleware; http.ResponseWriter embedding does not
// promote Hijack since it is not part of that interface.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying ResponseWriter does not support hijacking")
	}
	return hj.Hijack()
}
