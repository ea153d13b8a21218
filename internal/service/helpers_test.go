package service

import (
	"context"
	"fmt"
	"quizroom/internal/cache"
	"quizroom/internal/metrics"
	"quizroom/internal/model"
	"quizroom/internal/repository"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	RoomID  string // set for room broadcasts
	ConnID  string // set for direct sends
	Type    string
	Payload interface{}
}

// fakeBroadcaster records everything instead of delivering it
type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []sentMessage
	subs     map[string]map[string]bool // roomID -> connID set
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{subs: make(map[string]map[string]bool)}
}

func (b *fakeBroadcaster) BroadcastToRoom(roomID, msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, sentMessage{RoomID: roomID, Type: msgType, Payload: payload})
}

func (b *fakeBroadcaster) SendToConnection(connID, msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, sentMessage{ConnID: connID, Type: msgType, Payload: payload})
}

func (b *fakeBroadcaster) Subscribe(connID, roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[string]bool)
	}
	b.subs[roomID][connID] = true
}

func (b *fakeBroadcaster) Unsubscribe(connID, roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[roomID], connID)
}

func (b *fakeBroadcaster) subscribed(connID, roomID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs[roomID][connID]
}

func (b *fakeBroadcaster) ofType(msgType string) []sentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sentMessage
	for _, m := range b.messages {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (b *fakeBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

func (b *fakeBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	deps     Deps
	repo     repository.RoomRepo
	bc       *fakeBroadcaster
	clock    *fakeClock
	redis    *miniredis.Miniredis
	auth     *AuthService
	rooms    *RoomService
	rounds   *RoundService
	answers  *AnswerService
	sessions *SessionService
	sync     *SyncService
	sweeper  *Sweeper
	monitor  *Monitor
}

func newTestEnv(t *testing.T, tweak ...func(*Settings)) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log, _ := test.NewNullLogger()
	m := metrics.New(prometheus.NewRegistry())
	clock := newFakeClock()
	bc := newFakeBroadcaster()
	repo := repository.NewMemoryRoomRepo()

	settings := DefaultSettings()
	for _, f := range tweak {
		f(&settings)
	}

	deps := Deps{
		Rooms:       repo,
		Snapshots:   cache.NewRoomCache(rdb),
		Sessions:    cache.NewSessionCache(rdb),
		Leaderboard: cache.NewLeaderboardCache(rdb),
		Locker:      NewRoomLocker(log, m.ObserveLockWait),
		Broadcaster: bc,
		Clients:     NewClientRegistry(),
		Metrics:     m,
		Log:         log,
		Now:         clock.Now,
		Settings:    settings,
	}
	syncSvc := NewSyncService(deps, time.Second)
	deps.Tracker = syncSvc
	rounds := NewRoundService(deps)
	deps.Deadlines = rounds

	auth := NewAuthService("test-secret", time.Hour)
	auth.now = clock.Now

	env := &testEnv{
		deps:     deps,
		repo:     repo,
		bc:       bc,
		clock:    clock,
		redis:    mr,
		auth:     auth,
		rooms:    NewRoomService(deps, auth),
		rounds:   rounds,
		answers:  NewAnswerService(deps),
		sessions: NewSessionService(deps, auth),
		sync:     syncSvc,
		sweeper:  NewSweeper(deps, time.Minute, time.Minute),
		monitor:  NewMonitor(deps, time.Minute),
	}
	t.Cleanup(env.rounds.Stop)
	return env
}

func sampleQuestions(n, budget int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			Prompt:             fmt.Sprintf("question %d", i),
			Options:            []string{"red", "green", "blue"},
			CorrectOptionIndex: i % 3,
			TimeBudgetSeconds:  budget,
			Points:             100,
		}
	}
	return qs
}

// createRoom creates a room hosted on conn "host" with n questions of 10s
func (e *testEnv) createRoom(t *testing.T, n int) *SessionResult {
	t.Helper()
	res, err := e.rooms.CreateRoom(context.Background(), CreateRoomInput{
		ConnID:    "host",
		Nickname:  "Host",
		Questions: sampleQuestions(n, 10),
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) join(t *testing.T, roomID, connID, nickname string) *SessionResult {
	t.Helper()
	res, err := e.rooms.JoinRoom(context.Background(), JoinRoomInput{ConnID: connID, RoomID: roomID, Nickname: nickname})
	require.NoError(t, err)
	return res
}

func (e *testEnv) stored(t *testing.T, roomID string) *model.Room {
	t.Helper()
	room, err := e.repo.GetByID(context.Background(), roomID)
	require.NoError(t, err)
	require.NotNil(t, room)
	return room
}

func intPtr(i int) *int { return &i }
