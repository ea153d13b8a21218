package model

import "time"

// PlayerRole distinguishes the room host from everyone else
type PlayerRole string

const (
	RoleHost  PlayerRole = "host"
	RoleGuest PlayerRole = "guest"
)

// Player represents a participant in a room. Players are embedded in the
// room document and never stored on their own.
type Player struct {
	ID                 string         `json:"playerId" bson:"playerId"`
	ConnectionID       string         `json:"connectionId,omitempty" bson:"connectionId"` // empty while disconnected
	Nickname           string         `json:"nickname" bson:"nickname"`
	Role               PlayerRole     `json:"role" bson:"role"`
	Points             int            `json:"points" bson:"points"`
	CorrectCount       int            `json:"correctCount" bson:"correctCount"`
	HasAnsweredCurrent bool           `json:"hasAnsweredCurrent" bson:"hasAnsweredCurrent"`
	Answers            []AnswerRecord `json:"answers" bson:"answers"`
	IsConnected        bool           `json:"isConnected" bson:"isConnected"`
	LastDisconnectAt   *time.Time     `json:"lastDisconnectAt,omitempty" bson:"lastDisconnectAt,omitempty"`
	LastActivityAt     time.Time      `json:"lastActivityAt" bson:"lastActivityAt"`
	JoinedAt           time.Time      `json:"joinedAt" bson:"joinedAt"`
	Platform           string         `json:"platform,omitempty" bson:"platform,omitempty"`
	DeviceInfo         string         `json:"deviceInfo,omitempty" bson:"deviceInfo,omitempty"`

	// ProcessedRequestIDs is a bounded FIFO of answer request ids, oldest first
	ProcessedRequestIDs []string `json:"-" bson:"processedRequestIds"`
}

// HasProcessed reports whether requestID was already applied for this player
func (p *Player) HasProcessed(requestID string) bool {
	for _, id := range p.ProcessedRequestIDs {
		if id == requestID {
			return true
		}
	}
	return false
}

// RememberRequest records requestID, evicting the oldest ids beyond limit
func (p *Player) RememberRequest(requestID string, limit int) {
	p.ProcessedRequestIDs = append(p.ProcessedRequestIDs, requestID)
	if limit > 0 && len(p.ProcessedRequestIDs) > limit {
		p.ProcessedRequestIDs = append([]string(nil), p.ProcessedRequestIDs[len(p.ProcessedRequestIDs)-limit:]...)
	}
}

// Bind attaches a live connection to the player
func (p *Player) Bind(connID string, now time.Time) {
	p.ConnectionID = connID
	p.IsConnected = true
	p.LastDisconnectAt = nil
	p.LastActivityAt = now
}

// Unbind marks the player disconnected without removing them
func (p *Player) Unbind(now time.Time) {
	p.ConnectionID = ""
	p.IsConnected = false
	p.LastDisconnectAt = &now
}

// DisconnectedSince reports whether the player has been offline since before cutoff
func (p *Player) DisconnectedSince(cutoff time.Time) bool {
	return !p.IsConnected && p.LastDisconnectAt != nil && p.LastDisconnectAt.Before(cutoff)
}

func (p Player) clone() Player {
	if p.Answers != nil {
		p.Answers = append([]AnswerRecord(nil), p.Answers...)
	}
	if p.ProcessedRequestIDs != nil {
		p.ProcessedRequestIDs = append([]string(nil), p.ProcessedRequestIDs...)
	}
	if p.LastDisconnectAt != nil {
		t := *p.LastDisconnectAt
		p.LastDisconnectAt = &t
	}
	return p
}
