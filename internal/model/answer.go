package model

import "time"

// AnswerRecord is one entry of a player's append-only answer log
type AnswerRecord struct {
	QuestionIndex   int       `json:"questionIndex" bson:"questionIndex"`
	Question        string    `json:"question" bson:"question"` // prompt at the time of answering
	SubmittedAnswer string    `json:"submittedAnswer" bson:"submittedAnswer"`
	WasCorrect      bool      `json:"wasCorrect" bson:"wasCorrect"`
	CorrectAnswer   string    `json:"correctAnswer,omitempty" bson:"correctAnswer"`
	Points          int       `json:"points" bson:"points"`
	RequestID       string    `json:"requestId" bson:"requestId"`
	AnsweredAt      time.Time `json:"answeredAt" bson:"answeredAt"`
}
