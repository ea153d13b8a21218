package service

import (
	"quizroom/internal/model"
	"time"
)

// Schedule holds the absolute timeline of a game in epoch milliseconds
type Schedule struct {
	GameStartTime      int64
	QuestionStartTimes []int64
	FirstQuestionEnd   int64
}

// BuildSchedule lays out every question back to back after startDelay, with
// gap between the end of one question and the start of the next. budget(i)
// is the answer window of question i in seconds.
func BuildSchedule(now time.Time, count int, budget func(i int) int, startDelay, gap time.Duration) Schedule {
	start := now.UnixMilli() + startDelay.Milliseconds()
	s := Schedule{
		GameStartTime:      start,
		QuestionStartTimes: make([]int64, count),
	}
	at := start
	for i := 0; i < count; i++ {
		s.QuestionStartTimes[i] = at
		at += int64(budget(i))*1000 + gap.Milliseconds()
	}
	if count > 0 {
		s.FirstQuestionEnd = s.QuestionStartTimes[0] + int64(budget(0))*1000
	}
	return s
}

// questionEnd is the deadline of question i of a scheduled room
func questionEnd(room *model.Room, i int) int64 {
	if i < 0 || i >= len(room.QuestionStartTimes) {
		return 0
	}
	return room.QuestionStartTimes[i] + int64(room.QuestionBudget(i))*1000
}
