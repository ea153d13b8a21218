package service

import (
	"context"
	"errors"
	"quizroom/internal/model"
	"sync"
	"time"
)

// RoundService starts games and moves them from question to question
type RoundService struct {
	core

	mu     sync.Mutex
	timers map[string]*time.Timer // roomID -> pending auto-advance
	closed bool
}

// NewRoundService creates a new round service
func NewRoundService(deps Deps) *RoundService {
	return &RoundService{core: core{deps}, timers: make(map[string]*time.Timer)}
}

// ServerTime returns the authoritative clock in epoch milliseconds
func (s *RoundService) ServerTime() int64 {
	return s.now().UnixMilli()
}

// StartGame moves a lobby to running and fixes the whole question timeline
func (s *RoundService) StartGame(ctx context.Context, roomID string) (*model.Room, error) {
	return s.mutate(ctx, "startGame", roomID, func(room *model.Room, t *tx) error {
		if room.State != model.RoomLobby {
			return ErrGameAlreadyStarted
		}

		now := s.now()
		sched := BuildSchedule(now, len(room.Questions), room.QuestionBudget, s.Settings.StartDelay, s.Settings.TransitionGap)
		room.State = model.RoomRunning
		room.CurrentQuestionIndex = 0
		room.ResetAnswered()
		room.GameStartTime = sched.GameStartTime
		room.QuestionStartTimes = sched.QuestionStartTimes
		room.QuestionEndTime = sched.FirstQuestionEnd
		room.Touch(now)

		t.broadcast(EventGameStarting, GameStartingPayload{
			Room:       s.view(room),
			ServerTime: now.UnixMilli(),
			StartTime:  room.GameStartTime,
		})
		t.onCommit(func(ctx context.Context) {
			s.scheduleAdvance(room)
			s.roomLog(room.ID).WithField("questions", len(room.Questions)).Info("game started")
		})
		return nil
	})
}

// AdvanceQuestion moves past expectedIndex. A stale or repeated advance for an
// index that is no longer current fails with INVALID_QUESTION_INDEX, which
// makes concurrent advances from several clients and the deadline timer safe.
func (s *RoundService) AdvanceQuestion(ctx context.Context, roomID string, expectedIndex int) (*model.Room, error) {
	return s.mutate(ctx, "advanceQuestion", roomID, func(room *model.Room, t *tx) error {
		if !room.IsRunning() {
			return ErrGameNotRunning
		}
		if expectedIndex != room.CurrentQuestionIndex {
			return ErrInvalidQuestionIndex.With("expected question %d, current is %d", expectedIndex, room.CurrentQuestionIndex)
		}

		now := s.now()
		room.CurrentQuestionIndex++
		room.ResetAnswered()
		room.Touch(now)

		if room.CurrentQuestionIndex >= len(room.Questions) {
			// the index is left one past the last question
			room.Complete(now, model.EndQuestionsExhausted)
			t.broadcast(EventGameCompleted, GameOverPayload{
				Room:       s.view(room),
				Reason:     string(model.EndQuestionsExhausted),
				ServerTime: now.UnixMilli(),
			})
			t.onCommit(func(ctx context.Context) {
				s.scheduleAdvance(room)
				s.Metrics.RoomsCompleted.WithLabelValues(string(model.EndQuestionsExhausted)).Inc()
				s.roomLog(room.ID).Info("game completed")
			})
			return nil
		}

		room.QuestionEndTime = questionEnd(room, room.CurrentQuestionIndex)
		t.broadcast(EventNextQuestion, NextQuestionPayload{
			Room:              s.view(room),
			CurrentQuestion:   room.CurrentQuestionIndex,
			QuestionStartTime: room.QuestionStartTimes[room.CurrentQuestionIndex],
			QuestionEndTime:   room.QuestionEndTime,
			ServerTime:        now.UnixMilli(),
		})
		t.onCommit(func(ctx context.Context) { s.scheduleAdvance(room) })
		return nil
	})
}

// scheduleAdvance arms the deadline timer for the room's current question
// when server-enforced deadlines are on. It runs under the room lock, so
// timers are replaced in commit order.
func (s *RoundService) scheduleAdvance(room *model.Room) {
	if !s.Settings.AutoAdvance {
		return
	}
	s.Cancel(room.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !room.IsRunning() {
		return
	}

	roomID, index := room.ID, room.CurrentQuestionIndex
	wait := time.Duration(room.QuestionEndTime-s.now().UnixMilli()) * time.Millisecond
	var timer *time.Timer
	timer = time.AfterFunc(wait, func() {
		s.mu.Lock()
		if s.timers[roomID] == timer {
			delete(s.timers, roomID)
		}
		s.mu.Unlock()

		_, err := s.AdvanceQuestion(context.Background(), roomID, index)
		if err != nil && !errors.Is(err, ErrInvalidQuestionIndex) && !errors.Is(err, ErrGameNotRunning) {
			s.roomLog(roomID).WithError(err).Warn("auto advance failed")
		}
	})
	s.timers[roomID] = timer
}

// Cancel drops the pending deadline timer of a room, if any
func (s *RoundService) Cancel(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[roomID]; ok {
		t.Stop()
		delete(s.timers, roomID)
	}
}

// Pending returns the number of armed deadline timers
func (s *RoundService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending deadline timer
func (s *RoundService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
