package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lguibr/pongrt/internal/app"
	"github.com/lguibr/pongrt/internal/apperr"
	"github.com/lguibr/pongrt/internal/tournament"
)

var tournamentUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type tournamentEnvelope struct {
	Type         string `json:"type"`
	TournamentID string `json:"tournamentId"`
}

// TournamentWS upgrades to /ws/tournament: a single long-lived socket a
// client can subscribe/unsubscribe from many tournaments over.
func TournamentWS(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authenticate(r, a)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ws, err := tournamentUpgrader.Upgrade(w, r, nil)
		if err != nil {
			a.Log.Debugw("tournament upgrade failed", "err", err)
			return
		}

		conn := NewConn(ws, a.Log)
		conn.Send(welcomeMsg{Type: "welcome", UserID: userID})

		subscribed := make(map[string]bool)
		defer func() {
			for tournamentID := range subscribed {
				if pid, ok := a.TournReg.Get(tournamentID); ok {
					a.Engine.Send(pid, tournament.Unsubscribe{UserID: userID}, nil)
				}
			}
		}()

		conn.ReadLoop(func(raw []byte) {
			var env tournamentEnvelope
			if err := json.Unmarshal(raw, &env); err != nil {
				conn.Send(errMsg(apperr.CodeInvalidInput, "malformed payload"))
				return
			}
			switch env.Type {
			case "subscribe":
				if env.TournamentID == "" {
					conn.Send(errMsg(apperr.CodeInvalidInput, "tournamentId is required"))
					return
				}
				pid := a.TournReg.GetOrCreate(env.TournamentID)
				a.Engine.Send(pid, tournament.Subscribe{UserID: userID, Conn: conn}, nil)
				subscribed[env.TournamentID] = true
			case "unsubscribe":
				if env.TournamentID == "" {
					conn.Send(errMsg(apperr.CodeInvalidInput, "tournamentId is required"))
					return
				}
				if pid, ok := a.TournReg.Get(env.TournamentID); ok {
					a.Engine.Send(pid, tournament.Unsubscribe{UserID: userID}, nil)
				}
				delete(subscribed, env.TournamentID)
			case "ping":
				conn.Send(pongMsg{Type: "pong", TS: time.Now().UnixMilli()})
			default:
				conn.Send(errMsg(apperr.CodeInvalidInput, "unrecognized message type"))
			}
		})
	}
}
