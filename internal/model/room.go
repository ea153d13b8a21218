package model

import "time"

// RoomState is the lifecycle state persisted on a room
type RoomState string

const (
	RoomLobby     RoomState = "lobby"
	RoomRunning   RoomState = "running"
	RoomCompleted RoomState = "completed"
	// RoomStale is never stored; Status() reports it for rooms completed by the stale sweep
	RoomStale RoomState = "stale"
)

// EndReason records why a room reached RoomCompleted
type EndReason string

const (
	EndQuestionsExhausted EndReason = "questions_exhausted"
	EndHostEnded          EndReason = "host_ended"
	EndInactivity         EndReason = "inactivity"
)

type Room struct {
	ID                     string     `json:"id" bson:"_id"`
	State                  RoomState  `json:"state" bson:"state"`
	Players                []Player   `json:"players" bson:"players"`
	Questions              []Question `json:"questions" bson:"questions"`
	PerQuestionTimeSeconds int        `json:"perQuestionTimeSeconds" bson:"perQuestionTimeSeconds"`
	CurrentQuestionIndex   int        `json:"currentQuestionIndex" bson:"currentQuestionIndex"`
	QuestionStartTimes     []int64    `json:"questionStartTimes" bson:"questionStartTimes"` // epoch ms
	QuestionEndTime        int64      `json:"questionEndTime" bson:"questionEndTime"`       // epoch ms
	GameStartTime          int64      `json:"gameStartTime" bson:"gameStartTime"`           // epoch ms
	Version                int64      `json:"version" bson:"version"`
	IsStaleGame            bool       `json:"isStaleGame" bson:"isStaleGame"`
	EndReason              EndReason  `json:"endReason,omitempty" bson:"endReason,omitempty"`
	CreatedAt              time.Time  `json:"createdAt" bson:"createdAt"`
	LastActivity           time.Time  `json:"lastActivity" bson:"lastActivity"`
	CompletedAt            *time.Time `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}

// Status is State with stale completions reported separately
func (r *Room) Status() RoomState {
	if r.State == RoomCompleted && r.IsStaleGame {
		return RoomStale
	}
	return r.State
}

// IsJoinable reports whether new players may still join
func (r *Room) IsJoinable() bool {
	return r.State == RoomLobby
}

func (r *Room) IsCompleted() bool {
	return r.State == RoomCompleted
}

func (r *Room) IsRunning() bool {
	return r.State == RoomRunning
}

// Touch records user-driven activity
func (r *Room) Touch(now time.Time) {
	r.LastActivity = now
}

// Complete moves the room to its terminal state
func (r *Room) Complete(now time.Time, reason EndReason) {
	r.State = RoomCompleted
	r.EndReason = reason
	r.CompletedAt = &now
	r.IsStaleGame = reason == EndInactivity
}

// Player returns the player with the given id, or nil
func (r *Room) Player(playerID string) *Player {
	for i := range r.Players {
		if r.Players[i].ID == playerID {
			return &r.Players[i]
		}
	}
	return nil
}

// PlayerByConnection returns the player bound to connID, or nil
func (r *Room) PlayerByConnection(connID string) *Player {
	if connID == "" {
		return nil
	}
	for i := range r.Players {
		if r.Players[i].ConnectionID == connID {
			return &r.Players[i]
		}
	}
	return nil
}

// Host returns the current host, or nil for an empty room
func (r *Room) Host() *Player {
	for i := range r.Players {
		if r.Players[i].Role == RoleHost {
			return &r.Players[i]
		}
	}
	return nil
}

// QuestionBudget returns the answer window of question i in seconds
func (r *Room) QuestionBudget(i int) int {
	if i < 0 || i >= len(r.Questions) {
		return 0
	}
	if b := r.Questions[i].TimeBudgetSeconds; b > 0 {
		return b
	}
	return r.PerQuestionTimeSeconds
}

// CurrentQuestion returns the question being answered, or nil outside a running game
func (r *Room) CurrentQuestion() *Question {
	if r.State != RoomRunning || r.CurrentQuestionIndex >= len(r.Questions) {
		return nil
	}
	return &r.Questions[r.CurrentQuestionIndex]
}

// ResetAnswered clears the per-question answered flag on every player
func (r *Room) ResetAnswered() {
	for i := range r.Players {
		r.Players[i].HasAnsweredCurrent = false
	}
}

// ConnectedCount returns the number of players with a live connection
func (r *Room) ConnectedCount() int {
	n := 0
	for i := range r.Players {
		if r.Players[i].IsConnected {
			n++
		}
	}
	return n
}

// Clone returns a deep copy that shares no slices or pointers with r
func (r *Room) Clone() *Room {
	c := *r
	if r.Players != nil {
		c.Players = make([]Player, len(r.Players))
		for i := range r.Players {
			c.Players[i] = r.Players[i].clone()
		}
	}
	c.Questions = CopyQuestions(r.Questions)
	if r.QuestionStartTimes != nil {
		c.QuestionStartTimes = append([]int64(nil), r.QuestionStartTimes...)
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Redacted hides correct answers of questions that are still open. Completed
// rooms are returned unchanged.
func (r *Room) Redacted() *Room {
	c := r.Clone()
	if c.State == RoomCompleted {
		return c
	}
	open := 0
	if c.State == RoomRunning {
		open = c.CurrentQuestionIndex
	}
	for i := open; i < len(c.Questions); i++ {
		c.Questions[i].CorrectOptionIndex = HiddenOption
	}
	for i := range c.Players {
		for j := range c.Players[i].Answers {
			if c.Players[i].Answers[j].QuestionIndex >= open {
				c.Players[i].Answers[j].CorrectAnswer = ""
			}
		}
	}
	return c
}
