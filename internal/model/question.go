package model

import (
	"errors"
	"strings"
)

// HiddenOption replaces CorrectOptionIndex in snapshots that must not reveal the answer
const HiddenOption = -1

// Question is immutable once the room is created
type Question struct {
	Prompt             string   `json:"prompt" bson:"prompt"`
	Options            []string `json:"options" bson:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex" bson:"correctOptionIndex"`
	TimeBudgetSeconds  int      `json:"timeBudgetSeconds" bson:"timeBudgetSeconds"` // 0 means the room default
	Points             int      `json:"points,omitempty" bson:"points,omitempty"`   // cap for server-side scoring, 0 means uncapped
}

// Validate checks the question shape. A zero budget is allowed here and
// resolved against the room default by the caller.
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if len(q.Options) < 2 {
		return errors.New("at least two options are required")
	}
	if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
		return errors.New("correct option index out of range")
	}
	if q.TimeBudgetSeconds < 0 {
		return errors.New("time budget must not be negative")
	}
	if q.Points < 0 {
		return errors.New("points must not be negative")
	}
	return nil
}

// CorrectOption returns the text of the correct option
func (q *Question) CorrectOption() string {
	if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
		return ""
	}
	return q.Options[q.CorrectOptionIndex]
}

// CopyQuestions deep copies a question list
func CopyQuestions(qs []Question) []Question {
	if qs == nil {
		return nil
	}
	out := make([]Question, len(qs))
	for i := range qs {
		out[i] = qs[i].clone()
	}
	return out
}

func (q Question) clone() Question {
	if q.Options != nil {
		q.Options = append([]string(nil), q.Options...)
	}
	return q
}
