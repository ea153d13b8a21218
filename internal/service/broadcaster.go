package service

import "quizroom/internal/model"

// Broadcaster interface for WebSocket broadcasting (avoids import cycle).
// Delivery is best-effort; implementations must not block the caller.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgType string, payload interface{})
	SendToConnection(connID string, msgType string, payload interface{})
	Subscribe(connID, roomID string)
	Unsubscribe(connID, roomID string)
}

// Server to client event types
const (
	EventRoomCreated      = "roomCreated"
	EventJoinedRoom       = "joinedRoom"
	EventRoomUpdated      = "roomUpdated"
	EventRoomState        = "roomState"
	EventGameStarting     = "gameStarting"
	EventNextQuestion     = "nextQuestion"
	EventGameCompleted    = "gameCompleted"
	EventGameEnded        = "gameEnded"
	EventGameAutoEnded    = "gameAutoEnded"
	EventAnswerProcessed  = "answerProcessed"
	EventReconnectSuccess = "reconnectSuccess"
	EventServerTime       = "serverTime"
	EventError            = "error"
)

// RoomUpdatedPayload is published after every committed mutation and by the resync heartbeat
type RoomUpdatedPayload struct {
	Room       *model.Room `json:"room"`
	Version    int64       `json:"version"`
	ServerTime int64       `json:"serverTime"`
}

type SessionPayload struct {
	Room        *model.Room `json:"room"`
	PlayerID    string      `json:"playerId"`
	ResumeToken string      `json:"resumeToken,omitempty"`
	ServerTime  int64       `json:"serverTime"`
}

type ReconnectPayload struct {
	Room       *model.Room   `json:"room"`
	Player     *model.Player `json:"player"`
	ServerTime int64         `json:"serverTime"`
}

type GameStartingPayload struct {
	Room       *model.Room `json:"room"`
	ServerTime int64       `json:"serverTime"`
	StartTime  int64       `json:"startTime"`
}

type NextQuestionPayload struct {
	Room              *model.Room `json:"room"`
	CurrentQuestion   int         `json:"currentQuestion"`
	QuestionStartTime int64       `json:"questionStartTime"`
	QuestionEndTime   int64       `json:"questionEndTime"`
	ServerTime        int64       `json:"serverTime"`
}

type GameOverPayload struct {
	Room       *model.Room `json:"room"`
	Reason     string      `json:"reason,omitempty"`
	ServerTime int64       `json:"serverTime"`
}

type AnswerProcessedPayload struct {
	RequestID     string `json:"requestId"`
	QuestionIndex int    `json:"questionIndex"`
	Points        int    `json:"points"` // running total
	Awarded       int    `json:"awarded"`
	Duplicate     bool   `json:"duplicate,omitempty"`
}

type ServerTimePayload struct {
	Timestamp int64 `json:"timestamp"`
}

// ErrorPayload is sent only to the connection whose request failed
type ErrorPayload struct {
	Action    string `json:"action"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}
