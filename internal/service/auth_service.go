package service

import (
	"quizroom/internal/model"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService issues and checks resume tokens. A resume token proves that its
// bearer was given a player seat in a room, so a new connection can take the
// seat over without knowing anything else.
type AuthService struct {
	jwtSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(secret string, ttl time.Duration) *AuthService {
	return &AuthService{
		jwtSecret: []byte(secret),
		ttl:       ttl,
		now:       time.Now,
	}
}

// IssueResumeToken creates a room-scoped token for a player
func (s *AuthService) IssueResumeToken(roomID, playerID string) (string, error) {
	now := s.now()
	claims := &model.ResumeClaims{
		RoomID:   roomID,
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateResumeToken validates a resume token and returns its claims
func (s *AuthService) ValidateResumeToken(tokenString string) (*model.ResumeClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.ResumeClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.ResumeClaims)
	if !ok || !token.Valid || claims.RoomID == "" || claims.PlayerID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
