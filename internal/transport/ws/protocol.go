package ws

import "quizroom/internal/model"

// Client to server events
const (
	EventRegisterClient    = "registerClient"
	EventCreateRoom        = "createRoom"
	EventJoinRoom          = "joinRoom"
	EventStartGame         = "startGame"
	EventSubmitAnswer      = "submitAnswer"
	EventAdvanceQuestion   = "advanceQuestion"
	EventRequestRoomState  = "requestRoomState"
	EventReconnectAttempt  = "reconnectAttempt"
	EventRequestServerTime = "requestServerTime"
	EventEndGame           = "endGame"
)

type RegisterClientRequest struct {
	Platform   string `json:"platform"`
	DeviceInfo string `json:"deviceInfo"`
}

type CreateRoomRequest struct {
	Nickname               string           `json:"nickname"`
	Questions              []model.Question `json:"questions"`
	PerQuestionTimeSeconds int              `json:"perQuestionTimeSeconds"`
}

type JoinRoomRequest struct {
	Nickname string `json:"nickname"`
	RoomID   string `json:"roomId"`
}

// RoomRequest is the payload of events that only name a room
type RoomRequest struct {
	RoomID string `json:"roomId"`
}

type SubmitAnswerRequest struct {
	RoomID          string  `json:"roomId"`
	PlayerID        string  `json:"playerId"`
	RequestID       string  `json:"requestId"`
	QuestionIndex   *int    `json:"questionIndex"`
	SubmittedAnswer string  `json:"submittedAnswer"`
	CorrectAnswer   string  `json:"correctAnswer"`
	Correct         bool    `json:"correct"`
	Points          float64 `json:"points"`
}

type AdvanceQuestionRequest struct {
	RoomID        string `json:"roomId"`
	QuestionIndex *int   `json:"questionIndex"`
}

type ReconnectRequest struct {
	RoomID           string `json:"roomId"`
	PreviousPlayerID string `json:"previousPlayerId"`
	ResumeToken      string `json:"resumeToken,omitempty"`
}
