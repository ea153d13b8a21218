package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResumeToken(t *testing.T) {
	clock := newFakeClock()
	svc := NewAuthService("secret", time.Hour)
	svc.now = clock.Now

	token, err := svc.IssueResumeToken("room-1", "player-1")
	require.NoError(t, err)

	claims, err := svc.ValidateResumeToken(token)
	require.NoError(t, err)
	assert.Equal(t, "room-1", claims.RoomID)
	assert.Equal(t, "player-1", claims.PlayerID)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewAuthService("other", time.Hour)
		other.now = clock.Now
		_, err := other.ValidateResumeToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unexpected signing method", func(t *testing.T) {
		forged := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"roomId": "room-1", "playerId": "player-1"})
		s, err := forged.SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = svc.ValidateResumeToken(s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		clock.Advance(2 * time.Hour)
		_, err := svc.ValidateResumeToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
