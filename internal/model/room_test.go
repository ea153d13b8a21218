package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRoom() *Room {
	disc := time.Unix(100, 0)
	return &Room{
		ID:                     "65f1c0de0000000000000001",
		State:                  RoomRunning,
		PerQuestionTimeSeconds: 20,
		Questions: []Question{
			{Prompt: "2+2", Options: []string{"3", "4"}, CorrectOptionIndex: 1, TimeBudgetSeconds: 10},
			{Prompt: "capital of France", Options: []string{"Paris", "Rome"}, CorrectOptionIndex: 0},
		},
		Players: []Player{
			{ID: "p1", Role: RoleHost, ConnectionID: "c1", IsConnected: true,
				Answers:             []AnswerRecord{{QuestionIndex: 0, CorrectAnswer: "4"}},
				ProcessedRequestIDs: []string{"r1"}},
			{ID: "p2", Role: RoleGuest, LastDisconnectAt: &disc},
		},
		QuestionStartTimes: []int64{1, 2},
	}
}

func TestRoomClone(t *testing.T) {
	r := sampleRoom()
	c := r.Clone()

	c.Players[0].Points = 10
	c.Players[0].Answers[0].Points = 5
	c.Players[0].ProcessedRequestIDs[0] = "changed"
	c.Questions[0].Options[0] = "changed"
	c.QuestionStartTimes[0] = 99
	*c.Players[1].LastDisconnectAt = time.Unix(200, 0)

	assert.Equal(t, 0, r.Players[0].Points)
	assert.Equal(t, 0, r.Players[0].Answers[0].Points)
	assert.Equal(t, "r1", r.Players[0].ProcessedRequestIDs[0])
	assert.Equal(t, "3", r.Questions[0].Options[0])
	assert.Equal(t, int64(1), r.QuestionStartTimes[0])
	assert.Equal(t, time.Unix(100, 0), *r.Players[1].LastDisconnectAt)
}

func TestRoomLookups(t *testing.T) {
	r := sampleRoom()

	require.NotNil(t, r.Player("p2"))
	assert.Nil(t, r.Player("missing"))
	require.NotNil(t, r.PlayerByConnection("c1"))
	assert.Nil(t, r.PlayerByConnection(""))
	assert.Equal(t, "p1", r.Host().ID)
	assert.Equal(t, 1, r.ConnectedCount())
}

func TestRoomQuestionBudget(t *testing.T) {
	r := sampleRoom()
	assert.Equal(t, 10, r.QuestionBudget(0))
	assert.Equal(t, 20, r.QuestionBudget(1))
	assert.Equal(t, 0, r.QuestionBudget(2))
}

func TestRoomStatus(t *testing.T) {
	r := sampleRoom()
	now := time.Unix(500, 0)

	r.Complete(now, EndInactivity)
	assert.Equal(t, RoomStale, r.Status())
	assert.True(t, r.IsStaleGame)
	require.NotNil(t, r.CompletedAt)

	r = sampleRoom()
	r.Complete(now, EndHostEnded)
	assert.Equal(t, RoomCompleted, r.Status())
	assert.False(t, r.IsStaleGame)
}

func TestRoomRedacted(t *testing.T) {
	t.Run("running hides the open question", func(t *testing.T) {
		r := sampleRoom()
		red := r.Redacted()
		assert.Equal(t, HiddenOption, red.Questions[0].CorrectOptionIndex)
		assert.Equal(t, HiddenOption, red.Questions[1].CorrectOptionIndex)
		assert.Empty(t, red.Players[0].Answers[0].CorrectAnswer)
		assert.Equal(t, 1, r.Questions[0].CorrectOptionIndex)
	})

	t.Run("past questions are revealed", func(t *testing.T) {
		r := sampleRoom()
		r.CurrentQuestionIndex = 1
		red := r.Redacted()
		assert.Equal(t, 1, red.Questions[0].CorrectOptionIndex)
		assert.Equal(t, "4", red.Players[0].Answers[0].CorrectAnswer)
		assert.Equal(t, HiddenOption, red.Questions[1].CorrectOptionIndex)
	})

	t.Run("completed rooms reveal everything", func(t *testing.T) {
		r := sampleRoom()
		r.Complete(time.Now(), EndQuestionsExhausted)
		red := r.Redacted()
		assert.Equal(t, 0, red.Questions[1].CorrectOptionIndex)
	})
}

func TestPlayerRememberRequest(t *testing.T) {
	p := &Player{}
	for _, id := range []string{"a", "b", "c", "d"} {
		p.RememberRequest(id, 3)
	}
	assert.Equal(t, []string{"b", "c", "d"}, p.ProcessedRequestIDs)
	assert.False(t, p.HasProcessed("a"))
	assert.True(t, p.HasProcessed("d"))
}

func TestPlayerBindUnbind(t *testing.T) {
	p := &Player{ID: "p"}
	now := time.Unix(1000, 0)

	p.Unbind(now)
	assert.False(t, p.IsConnected)
	assert.Empty(t, p.ConnectionID)
	assert.True(t, p.DisconnectedSince(now.Add(time.Second)))
	assert.False(t, p.DisconnectedSince(now))

	p.Bind("c2", now)
	assert.True(t, p.IsConnected)
	assert.Equal(t, "c2", p.ConnectionID)
	assert.Nil(t, p.LastDisconnectAt)
}

func TestQuestionValidate(t *testing.T) {
	tests := []struct {
		name    string
		q       Question
		wantErr bool
	}{
		{"valid", Question{Prompt: "q", Options: []string{"a", "b"}, CorrectOptionIndex: 1}, false},
		{"empty prompt", Question{Prompt: " ", Options: []string{"a", "b"}}, true},
		{"one option", Question{Prompt: "q", Options: []string{"a"}}, true},
		{"index out of range", Question{Prompt: "q", Options: []string{"a", "b"}, CorrectOptionIndex: 2}, true},
		{"negative budget", Question{Prompt: "q", Options: []string{"a", "b"}, TimeBudgetSeconds: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
