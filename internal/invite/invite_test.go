package invite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lguibr/pongrt/internal/actor"
	"github.com/lguibr/pongrt/internal/logging"
)

type fakeNotifier struct {
	mu  sync.Mutex
	out map[string][]interface{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{out: make(map[string][]interface{})}
}

func (f *fakeNotifier) Notify(userID string, v interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out[userID] = append(f.out[userID], v)
}

func (f *fakeNotifier) messagesFor(userID string) []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]interface{}, len(f.out[userID]))
	copy(out, f.out[userID])
	return out
}

type fakeCreator struct {
	matchID string
}

func (f *fakeCreator) CreateMatch(_ context.Context, _, _ string) (string, error) {
	return f.matchID, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func hasType(msgs []interface{}, t string) bool {
	for _, m := range msgs {
		switch v := m.(type) {
		case outInviteSent:
			if v.Type == t {
				return true
			}
		case outInviteReceived:
			if v.Type == t {
				return true
			}
		case outInviteAccepted:
			if v.Type == t {
				return true
			}
		case outInviteConfirmed:
			if v.Type == t {
				return true
			}
		case outInviteDeclined:
			if v.Type == t {
				return true
			}
		case outInviteCancelled:
			if v.Type == t {
				return true
			}
		case outInviteExpired:
			if v.Type == t {
				return true
			}
		case outError:
			if v.Type == t {
				return true
			}
		}
	}
	return false
}

func TestAcceptCreatesMatchAndNotifiesBothSides(t *testing.T) {
	engine := actor.NewEngine(nil)
	notifier := newFakeNotifier()
	creator := &fakeCreator{matchID: "m-xyz"}
	pid := engine.Spawn(actor.NewProps(NewProducer(30*time.Second, notifier, creator, logging.Nop())))

	engine.Send(pid, RequestInvite{From: "a", To: "b"}, nil)
	waitFor(t, func() bool { return hasType(notifier.messagesFor("b"), "match_invite") })

	var inviteID string
	for _, m := range notifier.messagesFor("b") {
		if v, ok := m.(outInviteReceived); ok {
			inviteID = v.InviteID
		}
	}
	require.NotEmpty(t, inviteID)

	engine.Send(pid, RespondInvite{InviteID: inviteID, Recipient: "b", Accepted: true}, nil)

	waitFor(t, func() bool { return hasType(notifier.messagesFor("a"), "match_invite_accepted") })
	waitFor(t, func() bool { return hasType(notifier.messagesFor("b"), "match_invite_confirmed") })
}

func TestDuplicateInviteRejected(t *testing.T) {
	engine := actor.NewEngine(nil)
	notifier := newFakeNotifier()
	creator := &fakeCreator{matchID: "m"}
	pid := engine.Spawn(actor.NewProps(NewProducer(30*time.Second, notifier, creator, logging.Nop())))

	engine.Send(pid, RequestInvite{From: "a", To: "b"}, nil)
	waitFor(t, func() bool { return hasType(notifier.messagesFor("b"), "match_invite") })

	engine.Send(pid, RequestInvite{From: "a", To: "b"}, nil)
	waitFor(t, func() bool { return hasType(notifier.messagesFor("a"), "match_invite_error") })
}

func TestInviteToSelfRejected(t *testing.T) {
	engine := actor.NewEngine(nil)
	notifier := newFakeNotifier()
	creator := &fakeCreator{matchID: "m"}
	pid := engine.Spawn(actor.NewProps(NewProducer(30*time.Second, notifier, creator, logging.Nop())))

	engine.Send(pid, RequestInvite{From: "a", To: "a"}, nil)
	waitFor(t, func() bool { return hasType(notifier.messagesFor("a"), "match_invite_error") })
}

func TestExpiryNotifiesBothSides(t *testing.T) {
	engine := actor.NewEngine(nil)
	notifier := newFakeNotifier()
	creator := &fakeCreator{matchID: "m"}
	pid := engine.Spawn(actor.NewProps(NewProducer(20*time.Millisecond, notifier, creator, logging.Nop())))

	engine.Send(pid, RequestInvite{From: "a", To: "b"}, nil)
	waitFor(t, func() bool { return hasType(notifier.messagesFor("a"), "match_invite_sent") })

	waitFor(t, func() bool { return hasType(notifier.messagesFor("a"), "match_invite_expired") })
	waitFor(t, func() bool { return hasType(notifier.messagesFor("b"), "match_invite_expired") })
}

func TestDisconnectCancelsInvite(t *testing.T) {
	engine := actor.NewEngine(nil)
	notifier := newFakeNotifier()
	creator := &fakeCreator{matchID: "m"}
	pid := engine.Spawn(actor.NewProps(NewProducer(30*time.Second, notifier, creator, logging.Nop())))

	engine.Send(pid, RequestInvite{From: "a", To: "b"}, nil)
	waitFor(t, func() bool { return hasType(notifier.messagesFor("b"), "match_invite") })

	engine.Send(pid, UserDisconnected{UserID: "a"}, nil)
	waitFor(t, func() bool { return hasType(notifier.messagesFor("b"), "match_invite_expired") })

	assert.True(t, hasType(notifier.messagesFor("a"), "match_invite_expired"))
}
