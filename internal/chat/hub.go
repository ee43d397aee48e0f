package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lguibr/pongrt/internal/actor"
	"github.com/lguibr/pongrt/internal/apperr"
	"github.com/lguibr/pongrt/internal/store"
)

// Hub is the top-level chat hub: it owns the lazily-spawned per-channel
// Topic actors and the connection registry used for DM fan-out, presence
// lookups from outside a channel, and relaying invite-lifecycle events (it
// satisfies invite.Notifier so the Invitation Broker can reach a user's
// socket without importing this package).
type Hub struct {
	engine    *actor.Engine
	chatRepo  store.ChatRepository
	blockRepo store.BlockRepository
	log       *zap.SugaredLogger

	mu        sync.Mutex
	topics    map[string]*actor.PID     // channel slug -> Topic PID
	conns     map[string][]Conn         // userID -> every live socket (chat + invite relay)
	matchSubs map[string]map[string]bool // matchId -> userIds relaying match chat for it
}

// NewHub builds a Chat Hub.
func NewHub(engine *actor.Engine, chatRepo store.ChatRepository, blockRepo store.BlockRepository, log *zap.SugaredLogger) *Hub {
	return &Hub{
		engine:    engine,
		chatRepo:  chatRepo,
		blockRepo: blockRepo,
		log:       log,
		topics:    make(map[string]*actor.PID),
		conns:     make(map[string][]Conn),
		matchSubs: make(map[string]map[string]bool),
	}
}

// PostMatch relays a sideband chat message tagged with a pong match id (the
// `match{matchId, body}` client message). The sender is implicitly added to
// that match's relay set; there is no separate join message for match chat.
func (h *Hub) PostMatch(matchID, userID, body string) {
	if len(body) == 0 || len(body) > maxMessageContentLen {
		return
	}
	h.mu.Lock()
	subs, ok := h.matchSubs[matchID]
	if !ok {
		subs = make(map[string]bool)
		h.matchSubs[matchID] = subs
	}
	subs[userID] = true
	recipients := make([]string, 0, len(subs))
	for u := range subs {
		recipients = append(recipients, u)
	}
	h.mu.Unlock()

	out := outMatchChat{Type: "match_chat", MatchID: matchID, From: userID, Body: body, TS: time.Now().Unix()}
	for _, u := range recipients {
		h.Notify(u, out)
	}
}

// Connect registers a live socket for userID, used for DM delivery and
// invite-lifecycle relay regardless of which channels the socket later joins.
func (h *Hub) Connect(userID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[userID] = append(h.conns[userID], conn)
}

// Disconnect removes a socket from the connection registry. Callers are
// responsible for also sending Leave to any channel Topics the socket had
// joined.
func (h *Hub) Disconnect(userID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.conns[userID]
	remaining := conns[:0]
	for _, c := range conns {
		if c != conn {
			remaining = append(remaining, c)
		}
	}
	if len(remaining) == 0 {
		delete(h.conns, userID)
		for matchID, subs := range h.matchSubs {
			delete(subs, userID)
			if len(subs) == 0 {
				delete(h.matchSubs, matchID)
			}
		}
		return
	}
	h.conns[userID] = remaining
}

// Notify satisfies invite.Notifier: fan out v to every live socket of
// userID, chat or otherwise.
func (h *Hub) Notify(userID string, v interface{}) {
	h.mu.Lock()
	conns := append([]Conn(nil), h.conns[userID]...)
	h.mu.Unlock()
	for _, c := range conns {
		if err := c.Send(v); err != nil {
			h.log.Debugw("notify send failed", "userId", userID, "err", err)
		}
	}
}

func (h *Hub) topicFor(ctx context.Context, slug, title, visibility, createdBy string) (*actor.PID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if pid, ok := h.topics[slug]; ok {
		return pid, nil
	}
	channel, err := h.chatRepo.EnsureChannel(ctx, slug, title, visibility, createdBy)
	if err != nil {
		return nil, err
	}
	pid := h.engine.Spawn(actor.NewProps(NewTopicProducer(slug, channel.ID, h.chatRepo, h.blockRepo, h.log)))
	h.topics[slug] = pid
	return pid, nil
}

// JoinChannel resolves or creates the channel row and subscribes conn to its
// Topic actor.
func (h *Hub) JoinChannel(ctx context.Context, slug, title, visibility, userID string, conn Conn) error {
	pid, err := h.topicFor(ctx, slug, title, visibility, userID)
	if err != nil {
		return err
	}
	h.engine.Send(pid, Join{UserID: userID, Conn: conn, ChannelID: slug}, nil)
	return nil
}

// LeaveChannel unsubscribes conn from slug's Topic, if the channel exists.
func (h *Hub) LeaveChannel(slug, userID string, conn Conn) {
	h.mu.Lock()
	pid, ok := h.topics[slug]
	h.mu.Unlock()
	if !ok {
		return
	}
	h.engine.Send(pid, Leave{UserID: userID, Conn: conn}, nil)
}

// PostChannel posts a channel message, if the channel exists.
func (h *Hub) PostChannel(slug, userID, content string) {
	h.mu.Lock()
	pid, ok := h.topics[slug]
	h.mu.Unlock()
	if !ok {
		return
	}
	h.engine.Send(pid, Post{UserID: userID, Content: content}, nil)
}

// SendDM delivers a direct message to every live socket of recipientID and
// echoes it to every live socket of senderID, unless the pair is blocked in
// either direction.
func (h *Hub) SendDM(ctx context.Context, senderID, recipientID, content string) error {
	if len(content) == 0 || len(content) > maxMessageContentLen {
		return apperr.Validation(apperr.CodeInvalidInput, "dm content must be 1-2000 characters")
	}
	blocked, err := h.blockRepo.IsBlocked(ctx, senderID, recipientID)
	if err != nil {
		return apperr.Internal(apperr.CodeInternal, "block lookup failed", err)
	}
	if blocked {
		return apperr.Authorization(apperr.CodeBlocked, "recipient is blocked")
	}

	now := time.Now()
	msg := &store.ChatMessage{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		Content:    content,
		Type:       store.ChatMessageDM,
		DMTargetID: &recipientID,
		CreatedAt:  now,
	}
	if err := h.chatRepo.SaveMessage(ctx, msg); err != nil {
		return apperr.Internal(apperr.CodeInternal, "save dm failed", err)
	}

	out := outDirectMessage{
		Type:      "dm",
		From:      senderID,
		UserID:    recipientID,
		Content:   content,
		Timestamp: now.Unix(),
	}
	h.Notify(recipientID, out)
	h.Notify(senderID, out)
	return nil
}

// Block records blockerID blocking blockedID and acknowledges the caller.
func (h *Hub) Block(ctx context.Context, blockerID, blockedID string, reason *string) error {
	if err := h.blockRepo.Block(ctx, blockerID, blockedID, reason); err != nil {
		return apperr.Internal(apperr.CodeInternal, "block failed", err)
	}
	h.Notify(blockerID, outBlocked{Type: "blocked", UserID: blockedID})
	return nil
}

// Unblock removes a block and acknowledges the caller.
func (h *Hub) Unblock(ctx context.Context, blockerID, blockedID string) error {
	if err := h.blockRepo.Unblock(ctx, blockerID, blockedID); err != nil {
		return apperr.Internal(apperr.CodeInternal, "unblock failed", err)
	}
	h.Notify(blockerID, outUnblocked{Type: "unblocked", UserID: blockedID})
	return nil
}
