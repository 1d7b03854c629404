// internal/auth/session_test.go
package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerTokenRoundTrip(t *testing.T) {
	Init()
	playerID := uuid.Must(uuid.NewV7())

	token, err := CreatePlayerToken(playerID)
	require.NoError(t, err)

	got, err := AuthenticatePlayerToken(token)
	require.NoError(t, err)
	assert.Equal(t, playerID, got)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	Init()

	_, err := AuthenticatePlayerToken("not-a-token")
	assert.Error(t, err)
}

func TestPlayerIDFromRequest(t *testing.T) {
	Init()
	playerID := uuid.Must(uuid.NewV7())
	token, err := CreatePlayerToken(playerID)
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/player/answer", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	got, err := PlayerIDFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, playerID, got)

	// Websocket clients pass the token as a query parameter instead.
	r = httptest.NewRequest("GET", "/presence/ws?token="+token, nil)
	got, err = PlayerIDFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, playerID, got)

	r = httptest.NewRequest("GET", "/player/answer", nil)
	_, err = PlayerIDFromRequest(r)
	assert.Error(t, err)
}
