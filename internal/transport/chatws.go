package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lguibr/pongrt/internal/app"
	"github.com/lguibr/pongrt/internal/apperr"
	"github.com/lguibr/pongrt/internal/invite"
)

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// chatEnvelope is the tagged-union shape every inbound chat frame is
// decoded into; fields unused by a given Type are simply left zero.
type chatEnvelope struct {
	Type     string  `json:"type"`
	Room     string  `json:"room"`
	Body     string  `json:"body"`
	To       string  `json:"to"`
	MatchID  string  `json:"matchId"`
	InviteID string  `json:"inviteId"`
	Accepted bool    `json:"accepted"`
	UserID   string  `json:"userId"`
	Reason   *string `json:"reason"`
}

type welcomeMsg struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type pongMsg struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
}

// inviteLimiter is a per-connection rolling-second counter guarding
// match_invite floods: inline RATE_LIMIT errors first, close 4429 once the
// sender keeps exceeding the threshold.
type inviteLimiter struct {
	limit       int
	windowStart time.Time
	count       int
}

func (l *inviteLimiter) allow(now time.Time) bool {
	if now.Sub(l.windowStart) >= time.Second {
		l.windowStart = now
		l.count = 0
	}
	l.count++
	return l.count <= l.limit
}

// ChatWS upgrades to the /ws/chat endpoint, fronted by the session gate.
func ChatWS(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authenticate(r, a)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ws, err := chatUpgrader.Upgrade(w, r, nil)
		if err != nil {
			a.Log.Debugw("chat upgrade failed", "err", err)
			return
		}

		limit := a.Config.RateLimitInviteFlood
		if limit <= 0 {
			limit = 5
		}
		invites := &inviteLimiter{limit: limit}
		floodStrikes := 0

		conn := NewConn(ws, a.Log)
		conn.Send(welcomeMsg{Type: "welcome", UserID: userID})
		a.Chat.Connect(userID, conn)

		joined := make(map[string]bool)
		defer func() {
			for room := range joined {
				a.Chat.LeaveChannel(room, userID, conn)
			}
			a.Chat.Disconnect(userID, conn)
			a.Engine.Send(a.InvitePID, invite.UserDisconnected{UserID: userID}, nil)
		}()

		conn.ReadLoop(func(raw []byte) {
			var env chatEnvelope
			if err := json.Unmarshal(raw, &env); err != nil {
				conn.Send(errMsg(apperr.CodeInvalidInput, "malformed payload"))
				return
			}
			switch env.Type {
			case "join":
				if env.Room == "" {
					conn.Send(errMsg(apperr.CodeInvalidInput, "room is required"))
					return
				}
				if err := a.Chat.JoinChannel(r.Context(), env.Room, env.Room, "public", userID, conn); err != nil {
					conn.Send(errMsg(apperr.CodeInternal, "join failed"))
					return
				}
				joined[env.Room] = true
			case "channel":
				a.Chat.PostChannel(env.Room, userID, env.Body)
			case "dm":
				if err := a.Chat.SendDM(r.Context(), userID, env.To, env.Body); err != nil {
					sendAppErr(conn, err)
				}
			case "match":
				a.Chat.PostMatch(env.MatchID, userID, env.Body)
			case "match_invite":
				if env.To == "" {
					conn.Send(errMsg(apperr.CodeInvalidInput, "to is required"))
					return
				}
				if !invites.allow(time.Now()) {
					conn.Send(errMsg(apperr.CodeRateLimit, "too many invites"))
					floodStrikes++
					if floodStrikes > invites.limit {
						conn.CloseWithCode(CloseRateLimit, "invite flood")
					}
					return
				}
				a.Engine.Send(a.InvitePID, invite.RequestInvite{From: userID, To: env.To}, nil)
			case "match_invite_response":
				if env.InviteID == "" {
					conn.Send(errMsg(apperr.CodeInvalidInput, "inviteId is required"))
					return
				}
				a.Engine.Send(a.InvitePID, invite.RespondInvite{InviteID: env.InviteID, Recipient: userID, Accepted: env.Accepted}, nil)
			case "block":
				if err := a.Chat.Block(r.Context(), userID, env.UserID, env.Reason); err != nil {
					sendAppErr(conn, err)
				}
			case "unblock":
				if err := a.Chat.Unblock(r.Context(), userID, env.UserID); err != nil {
					sendAppErr(conn, err)
				}
			case "ping":
				conn.Send(pongMsg{Type: "pong", TS: time.Now().UnixMilli()})
			default:
				conn.Send(errMsg(apperr.CodeInvalidInput, "unrecognized message type"))
			}
		})
	}
}

func errMsg(code, msg string) map[string]string {
	return map[string]string{"type": "error", "code": code, "message": msg}
}

func sendAppErr(conn *Conn, err error) {
	if ae, ok := apperr.As(err); ok {
		conn.Send(errMsg(ae.Code, ae.Message))
		return
	}
	conn.Send(errMsg(apperr.CodeInternal, "internal error"))
}
