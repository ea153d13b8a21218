package service

import (
	"context"
	"math"
	"quizroom/internal/model"
	"strings"
)

// AnswerService records answers
type AnswerService struct {
	core
}

// NewAnswerService creates a new answer service
func NewAnswerService(deps Deps) *AnswerService {
	return &AnswerService{core: core{deps}}
}

// SubmitAnswerInput carries one answer. Correct and Points are the client's
// claim; they are only trusted in ScoringTrusted mode.
type SubmitAnswerInput struct {
	ConnID          string
	RoomID          string  `validate:"required"`
	PlayerID        string  `validate:"required"`
	RequestID       string  `validate:"required"`
	QuestionIndex   *int    `validate:"required"`
	SubmittedAnswer string  `validate:"max=1024"`
	CorrectAnswer   string  `validate:"max=1024"`
	Correct         bool
	Points          float64 `validate:"gte=0,lte=1000000"`
}

type AnswerResult struct {
	Room      *model.Room
	Awarded   int // points this answer earned
	Total     int // the player's points after the answer
	Duplicate bool
}

// SubmitAnswer appends an answer to the player's log. Replaying a request id
// is a no-op that acknowledges the original outcome again.
//
// Only the current question takes answers, once per player. An answer that
// arrives after the room advanced fails with INVALID_QUESTION_INDEX and is not
// recorded; a second answer to the same question fails with ALREADY_ANSWERED.
func (s *AnswerService) SubmitAnswer(ctx context.Context, in SubmitAnswerInput) (*AnswerResult, error) {
	if err := validateInput(in); err != nil {
		s.Metrics.ObserveOperation("submitAnswer", Code(err))
		return nil, err
	}
	index := *in.QuestionIndex

	result := &AnswerResult{}
	room, err := s.mutate(ctx, "submitAnswer", in.RoomID, func(room *model.Room, t *tx) error {
		player := room.Player(in.PlayerID)
		if player == nil {
			return ErrPlayerNotFound
		}
		if player.HasProcessed(in.RequestID) {
			result.Duplicate = true
			result.Awarded = awardedFor(player, in.RequestID)
			result.Total = player.Points
			t.noCommit()
			s.ack(t, in, index, result)
			return nil
		}
		if !room.IsRunning() {
			return ErrGameNotRunning
		}
		if index != room.CurrentQuestionIndex {
			return ErrInvalidQuestionIndex.With("answer for question %d, current is %d", index, room.CurrentQuestionIndex)
		}
		if player.HasAnsweredCurrent {
			return ErrAlreadyAnswered
		}

		now := s.now()
		q := room.CurrentQuestion()
		correct, points, correctAnswer := s.score(q, in)

		player.Answers = append(player.Answers, model.AnswerRecord{
			QuestionIndex:   index,
			Question:        q.Prompt,
			SubmittedAnswer: in.SubmittedAnswer,
			WasCorrect:      correct,
			CorrectAnswer:   correctAnswer,
			Points:          points,
			RequestID:       in.RequestID,
			AnsweredAt:      now,
		})
		player.HasAnsweredCurrent = true
		if correct {
			player.Points += points
			player.CorrectCount++
		}
		player.RememberRequest(in.RequestID, s.Settings.MaxProcessedRequests)
		player.LastActivityAt = now
		room.Touch(now)

		result.Awarded = points
		result.Total = player.Points
		s.ack(t, in, index, result)
		t.onCommit(func(ctx context.Context) { s.syncLeaderboard(ctx, room.ID, player) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Room = room
	return result, nil
}

// score decides correctness and awarded points for the configured mode
func (s *AnswerService) score(q *model.Question, in SubmitAnswerInput) (bool, int, string) {
	claimed := int(math.Round(in.Points))
	if s.Settings.ScoringMode != ScoringServer {
		if !in.Correct {
			return false, 0, in.CorrectAnswer
		}
		return true, claimed, in.CorrectAnswer
	}

	answer := q.CorrectOption()
	if !strings.EqualFold(strings.TrimSpace(in.SubmittedAnswer), strings.TrimSpace(answer)) {
		return false, 0, answer
	}
	if q.Points > 0 && claimed > q.Points {
		claimed = q.Points
	}
	return true, claimed, answer
}

func (s *AnswerService) ack(t *tx, in SubmitAnswerInput, index int, result *AnswerResult) {
	if in.ConnID == "" {
		return
	}
	t.send(in.ConnID, EventAnswerProcessed, AnswerProcessedPayload{
		RequestID:     in.RequestID,
		QuestionIndex: index,
		Points:        result.Total,
		Awarded:       result.Awarded,
		Duplicate:     result.Duplicate,
	})
}

// awardedFor looks up the points recorded for an earlier request, if still in the log
func awardedFor(p *model.Player, requestID string) int {
	for i := len(p.Answers) - 1; i >= 0; i-- {
		if p.Answers[i].RequestID == requestID {
			return p.Answers[i].Points
		}
	}
	return 0
}
