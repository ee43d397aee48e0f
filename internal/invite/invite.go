// Package invite implements the invitation broker: a single actor holding
// every in-flight match invite, keyed by invite id, with a 30-second TTL
// and removal on accept/decline/cancel/disconnect. Same actor/command-queue
// shape as the match runtime, but one process-wide instance indexing many
// invites rather than one actor per invite.
package invite

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lguibr/pongrt/internal/actor"
	"github.com/lguibr/pongrt/internal/apperr"
)

// Notifier delivers a wire message to every live chat connection of a user;
// implemented by the Chat Hub. Calling it for a user with no live
// connection is a silent no-op.
type Notifier interface {
	Notify(userID string, v interface{})
}

// MatchCreator creates a Match from an accepted invite.
type MatchCreator interface {
	CreateMatch(ctx context.Context, p1ID, p2ID string) (matchID string, err error)
}

type record struct {
	id          string
	senderID    string
	recipientID string
	expiresAt   time.Time
	timer       *time.Timer
}

// RequestInvite is the client's `match_invite{to}` message.
type RequestInvite struct {
	From string
	To   string
}

// RespondInvite is the client's `match_invite_response{inviteId, accepted}`.
type RespondInvite struct {
	InviteID  string
	Recipient string
	Accepted  bool
}

// UserDisconnected cancels every invite touching userID.
type UserDisconnected struct {
	UserID string
}

type expireMsg struct{ id string }

// Broker is the invitation actor.
type Broker struct {
	ttl      time.Duration
	notifier Notifier
	creator  MatchCreator
	log      *zap.SugaredLogger

	invites map[string]*record
	pending map[string]string // "from|to" -> inviteID, unresolved only
}

// NewProducer returns an actor.Producer for the single Broker instance.
func NewProducer(ttl time.Duration, notifier Notifier, creator MatchCreator, log *zap.SugaredLogger) actor.Producer {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return func() actor.Actor {
		return &Broker{
			ttl:      ttl,
			notifier: notifier,
			creator:  creator,
			log:      log.With("component", "invite_broker"),
			invites:  make(map[string]*record),
			pending:  make(map[string]string),
		}
	}
}

func (b *Broker) Receive(ctx actor.Context) {
	switch m := ctx.Message().(type) {
	case actor.Started, actor.Stopping, actor.Stopped:
	case RequestInvite:
		b.handleRequest(ctx, m)
	case RespondInvite:
		b.handleRespond(ctx, m)
	case UserDisconnected:
		b.handleDisconnect(m.UserID)
	case expireMsg:
		b.handleExpire(m.id)
	}
}

func pairKey(from, to string) string { return from + "|" + to }

func (b *Broker) handleRequest(ctx actor.Context, m RequestInvite) {
	if m.From == m.To {
		b.notifier.Notify(m.From, outError{Type: "match_invite_error", Code: apperr.CodeInviteToSelf})
		return
	}
	key := pairKey(m.From, m.To)
	if _, exists := b.pending[key]; exists {
		b.notifier.Notify(m.From, outError{Type: "match_invite_error", Code: apperr.CodeDuplicateInvite})
		return
	}

	id := uuid.NewString()
	expiresAt := time.Now().Add(b.ttl)
	engine, self := ctx.Engine(), ctx.Self()
	timer := time.AfterFunc(b.ttl, func() {
		engine.Send(self, expireMsg{id: id}, nil)
	})

	b.invites[id] = &record{id: id, senderID: m.From, recipientID: m.To, expiresAt: expiresAt, timer: timer}
	b.pending[key] = id

	b.notifier.Notify(m.From, outInviteSent{Type: "match_invite_sent", InviteID: id, To: m.To, ExpiresAt: expiresAt.UnixMilli()})
	b.notifier.Notify(m.To, outInviteReceived{Type: "match_invite", InviteID: id, From: m.From, ExpiresAt: expiresAt.UnixMilli()})
}

func (b *Broker) handleRespond(ctx actor.Context, m RespondInvite) {
	rec, ok := b.invites[m.InviteID]
	if !ok {
		b.notifier.Notify(m.Recipient, outError{Type: "match_invite_error", Code: apperr.CodeNotFound})
		return
	}
	if rec.recipientID != m.Recipient {
		b.notifier.Notify(m.Recipient, outError{Type: "match_invite_error", Code: apperr.CodeUnauthorized})
		return
	}
	b.remove(rec)

	if !m.Accepted {
		b.notifier.Notify(rec.senderID, outInviteDeclined{Type: "match_invite_declined", InviteID: rec.id})
		b.notifier.Notify(rec.recipientID, outInviteCancelled{Type: "match_invite_cancelled", InviteID: rec.id})
		return
	}

	matchID, err := b.creator.CreateMatch(context.Background(), rec.senderID, rec.recipientID)
	if err != nil {
		b.log.Errorw("create match from accepted invite failed", "err", err)
		b.notifier.Notify(rec.senderID, outError{Type: "match_invite_error", Code: apperr.CodeInternal})
		b.notifier.Notify(rec.recipientID, outError{Type: "match_invite_error", Code: apperr.CodeInternal})
		return
	}
	b.notifier.Notify(rec.senderID, outInviteAccepted{Type: "match_invite_accepted", InviteID: rec.id, MatchID: matchID})
	b.notifier.Notify(rec.recipientID, outInviteConfirmed{Type: "match_invite_confirmed", InviteID: rec.id, MatchID: matchID})
}

func (b *Broker) handleExpire(id string) {
	rec, ok := b.invites[id]
	if !ok {
		return
	}
	b.remove(rec)
	b.notifier.Notify(rec.senderID, outInviteExpired{Type: "match_invite_expired", InviteID: rec.id, Reason: "timeout"})
	b.notifier.Notify(rec.recipientID, outInviteExpired{Type: "match_invite_expired", InviteID: rec.id, Reason: "timeout"})
}

func (b *Broker) handleDisconnect(userID string) {
	for _, rec := range b.invites {
		if rec.senderID != userID && rec.recipientID != userID {
			continue
		}
		b.remove(rec)
		b.notifier.Notify(rec.senderID, outInviteExpired{Type: "match_invite_expired", InviteID: rec.id, Reason: "disconnect"})
		b.notifier.Notify(rec.recipientID, outInviteExpired{Type: "match_invite_expired", InviteID: rec.id, Reason: "disconnect"})
	}
}

func (b *Broker) remove(rec *record) {
	rec.timer.Stop()
	delete(b.invites, rec.id)
	delete(b.pending, pairKey(rec.senderID, rec.recipientID))
}
