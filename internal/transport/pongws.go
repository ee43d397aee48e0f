package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/lguibr/pongrt/internal/app"
	"github.com/lguibr/pongrt/internal/apperr"
	"github.com/lguibr/pongrt/internal/match"
	"github.com/lguibr/pongrt/internal/physics"
)

var pongUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type connectionOKMsg struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	MatchID string `json:"matchId"`
}

type pongEnvelope struct {
	Type       string `json:"type"`
	Direction  string `json:"direction"`
	Seq        int64  `json:"seq"`
	ClientTime int64  `json:"clientTime"`
}

func parseDirection(s string) physics.Direction {
	switch s {
	case "up":
		return physics.DirUp
	case "down":
		return physics.DirDown
	default:
		return physics.DirStop
	}
}

// PongWS upgrades to /ws/pong/:matchId, the match runtime's ingress.
func PongWS(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := mux.Vars(r)["matchId"]

		ws, err := pongUpgrader.Upgrade(w, r, nil)
		if err != nil {
			a.Log.Debugw("pong upgrade failed", "err", err)
			return
		}
		conn := NewConn(ws, a.Log)

		// Admission happens on the socket so browser clients observe the
		// close code rather than an opaque failed handshake.
		userID, err := authenticate(r, a)
		if err != nil {
			conn.CloseWithCode(CloseAuth, "unauthorized")
			return
		}

		m, err := a.MatchRepo.Get(r.Context(), matchID)
		if err != nil {
			conn.CloseWithCode(CloseNotFound, "match not found")
			return
		}
		if userID != m.P1ID && userID != m.P2ID {
			conn.CloseWithCode(CloseAuth, "not a participant")
			return
		}

		conn.Send(connectionOKMsg{Type: "connection_ok", UserID: userID, MatchID: matchID})

		pid, err := a.MatchReg.GetOrCreate(r.Context(), matchID, m.P1ID, m.P2ID, m.TournamentID)
		if err != nil {
			conn.CloseWithCode(CloseBadRequest, "match unavailable")
			return
		}

		a.Engine.Send(pid, match.Connect{UserID: userID, Conn: conn}, nil)

		leftClean := false
		defer func() {
			if leftClean {
				return
			}
			a.Engine.Send(pid, match.Disconnect{UserID: userID}, nil)
		}()

		conn.ReadLoop(func(raw []byte) {
			var env pongEnvelope
			if err := json.Unmarshal(raw, &env); err != nil {
				conn.Send(errMsg(apperr.CodeInvalidInput, "malformed payload"))
				return
			}
			switch env.Type {
			case "join_match":
				a.Engine.Send(pid, match.Connect{UserID: userID, Conn: conn}, nil)
			case "leave_match":
				leftClean = true
				a.Engine.Send(pid, match.LeaveMatch{UserID: userID}, nil)
			case "ready":
				a.Engine.Send(pid, match.Ready{UserID: userID}, nil)
			case "input":
				a.Engine.Send(pid, match.Input{
					UserID:     userID,
					Direction:  parseDirection(env.Direction),
					Seq:        env.Seq,
					ClientTime: env.ClientTime,
				}, nil)
			case "pause":
				a.Engine.Send(pid, match.Pause{UserID: userID}, nil)
			case "resume":
				a.Engine.Send(pid, match.Resume{UserID: userID}, nil)
			case "request_state":
				a.Engine.Send(pid, match.RequestState{UserID: userID}, nil)
			case "rematch_request":
				a.Engine.Send(pid, match.RematchRequest{UserID: userID}, nil)
			case "rematch_accept":
				a.Engine.Send(pid, match.RematchAccept{UserID: userID}, nil)
			case "rematch_decline":
				a.Engine.Send(pid, match.RematchDecline{UserID: userID}, nil)
			case "forfeit":
				a.Engine.Send(pid, match.Forfeit{UserID: userID}, nil)
			case "ping":
				conn.Send(pongMsg{Type: "pong", TS: time.Now().UnixMilli()})
			default:
				conn.Send(errMsg(apperr.CodeInvalidInput, "unrecognized message type"))
			}
		})
	}
}
