package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	live map[string]bool
}

func (f *fakeStore) IsLive(_ context.Context, sessionID string) (bool, error) {
	return f.live[sessionID], nil
}

func TestAuthenticateAcceptsLiveSession(t *testing.T) {
	store := &fakeStore{live: map[string]bool{"sess-1": true}}
	gate := New([]byte("secret"), store)

	token, err := gate.Issue("user-1", "sess-1", time.Minute)
	require.NoError(t, err)

	subject, err := gate.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestAuthenticateRejectsRevokedSession(t *testing.T) {
	store := &fakeStore{live: map[string]bool{}}
	gate := New([]byte("secret"), store)

	token, err := gate.Issue("user-1", "sess-dead", time.Minute)
	require.NoError(t, err)

	_, err = gate.Authenticate(context.Background(), token)
	require.Error(t, err)
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	store := &fakeStore{live: map[string]bool{"sess-1": true}}
	gate := New([]byte("secret"), store)

	token, err := gate.Issue("user-1", "sess-1", -time.Minute)
	require.NoError(t, err)

	_, err = gate.Authenticate(context.Background(), token)
	require.Error(t, err)
}

func TestAuthenticateRejectsWrongSecret(t *testing.T) {
	store := &fakeStore{live: map[string]bool{"sess-1": true}}
	issuer := New([]byte("secret-a"), store)
	verifier := New([]byte("secret-b"), store)

	token, err := issuer.Issue("user-1", "sess-1", time.Minute)
	require.NoError(t, err)

	_, err = verifier.Authenticate(context.Background(), token)
	require.Error(t, err)
}

func TestAuthenticateRejectsEmptyToken(t *testing.T) {
	gate := New([]byte("secret"), &fakeStore{})
	_, err := gate.Authenticate(context.Background(), "")
	require.Error(t, err)
}
