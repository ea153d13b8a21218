package model

import "github.com/golang-jwt/jwt/v5"

// ResumeClaims are JWT claims binding a player to a room, used to resume a
// session on a new connection
type ResumeClaims struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	jwt.RegisteredClaims
}
