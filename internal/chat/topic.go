package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lguibr/pongrt/internal/actor"
	"github.com/lguibr/pongrt/internal/apperr"
	"github.com/lguibr/pongrt/internal/store"
)

const maxMessageContentLen = 2000

// Topic is the per-channel actor: it serializes join/leave/post for one
// channel slug so every observer sees presence and messages in the same
// order. Cross-channel activity is independent, one actor per topic.
type Topic struct {
	slug      string
	channelID string
	repo      store.ChatRepository
	blocks    store.BlockRepository
	log       *zap.SugaredLogger

	subscribers map[string][]Conn // userID -> live conns on this channel
}

// NewTopicProducer returns an actor.Producer for one channel's Topic.
func NewTopicProducer(slug, channelID string, repo store.ChatRepository, blocks store.BlockRepository, log *zap.SugaredLogger) actor.Producer {
	return func() actor.Actor {
		return &Topic{
			slug:        slug,
			channelID:   channelID,
			repo:        repo,
			blocks:      blocks,
			log:         log.With("channelId", channelID),
			subscribers: make(map[string][]Conn),
		}
	}
}

func (t *Topic) Receive(ctx actor.Context) {
	switch m := ctx.Message().(type) {
	case actor.Started, actor.Stopping, actor.Stopped:
	case Join:
		t.handleJoin(ctx, m)
	case Leave:
		t.handleLeave(ctx, m)
	case Post:
		t.handlePost(ctx, m)
	}
}

func (t *Topic) handleJoin(ctx actor.Context, m Join) {
	bg := context.Background()
	if err := t.repo.AddMembership(bg, t.channelID, m.UserID, "member"); err != nil {
		t.log.Errorw("add membership failed", "userId", m.UserID, "err", err)
		m.Conn.Send(outError{Type: "error", Code: apperr.CodeInternal})
		return
	}

	firstConnection := len(t.subscribers[m.UserID]) == 0
	t.subscribers[m.UserID] = append(t.subscribers[m.UserID], m.Conn)

	t.sendTo(m.UserID, outJoined{Type: "joined", Room: t.slug})
	if firstConnection {
		t.broadcast(outPresence{Type: "presence", Room: t.slug, UserID: m.UserID, Online: true})
	}
}

func (t *Topic) handleLeave(ctx actor.Context, m Leave) {
	conns := t.subscribers[m.UserID]
	remaining := conns[:0]
	for _, c := range conns {
		if c != m.Conn {
			remaining = append(remaining, c)
		}
	}

	if len(remaining) == 0 {
		delete(t.subscribers, m.UserID)
		t.broadcast(outPresence{Type: "presence", Room: t.slug, UserID: m.UserID, Online: false})
		return
	}
	t.subscribers[m.UserID] = remaining
}

func (t *Topic) handlePost(ctx actor.Context, m Post) {
	conns, joined := t.subscribers[m.UserID]
	if !joined || len(conns) == 0 {
		t.sendTo(m.UserID, outError{Type: "error", Code: apperr.CodeNotMember})
		return
	}
	if len(m.Content) == 0 || len(m.Content) > maxMessageContentLen {
		t.sendTo(m.UserID, outError{Type: "error", Code: apperr.CodeInvalidInput})
		return
	}

	bg := context.Background()
	now := time.Now()
	msg := &store.ChatMessage{
		ID:        uuid.NewString(),
		ChannelID: &t.channelID,
		SenderID:  m.UserID,
		Content:   m.Content,
		Type:      store.ChatMessageChannel,
		CreatedAt: now,
	}
	if err := t.repo.SaveMessage(bg, msg); err != nil {
		t.log.Errorw("save message failed", "userId", m.UserID, "err", err)
		t.sendTo(m.UserID, outError{Type: "error", Code: apperr.CodeInternal})
		return
	}

	out := outChannelMessage{
		Type:      "channel",
		From:      m.UserID,
		Room:      t.slug,
		Content:   m.Content,
		Timestamp: now.Unix(),
	}

	for userID := range t.subscribers {
		if userID == m.UserID {
			t.sendTo(userID, out)
			continue
		}
		blocked, err := t.blocks.IsBlocked(bg, m.UserID, userID)
		if err != nil {
			t.log.Errorw("block lookup failed", "userId", userID, "err", err)
			continue
		}
		if blocked {
			continue
		}
		t.sendTo(userID, out)
	}
}

func (t *Topic) sendTo(userID string, v interface{}) {
	for _, c := range t.subscribers[userID] {
		if err := c.Send(v); err != nil {
			t.log.Debugw("send failed", "userId", userID, "err", err)
		}
	}
}

func (t *Topic) broadcast(v interface{}) {
	for userID := range t.subscribers {
		t.sendTo(userID, v)
	}
}
