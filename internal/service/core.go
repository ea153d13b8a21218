package service

import (
	"context"
	"errors"
	"quizroom/internal/cache"
	"quizroom/internal/metrics"
	"quizroom/internal/model"
	"quizroom/internal/repository"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ScoringMode decides who is trusted with answer correctness
type ScoringMode string

const (
	// ScoringTrusted records the client's correctness and points claim as-is
	ScoringTrusted ScoringMode = "trusted"
	// ScoringServer recomputes correctness from the question and hides open answers
	ScoringServer ScoringMode = "server"
)

// Settings are the tunables shared by every room operation
type Settings struct {
	StartDelay           time.Duration
	TransitionGap        time.Duration
	DefaultBudget        int // seconds
	ScoringMode          ScoringMode
	AutoAdvance          bool
	MaxProcessedRequests int
	StaleAfter           time.Duration
	PlayerGrace          time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		StartDelay:           3 * time.Second,
		TransitionGap:        3 * time.Second,
		DefaultBudget:        20,
		ScoringMode:          ScoringTrusted,
		MaxProcessedRequests: 64,
		StaleAfter:           30 * time.Minute,
		PlayerGrace:          5 * time.Minute,
	}
}

// finishedLeaderboardTTL is how long a completed room's leaderboard stays readable
const finishedLeaderboardTTL = time.Hour

// RoomTracker is told about rooms that should receive heartbeat resyncs
type RoomTracker interface {
	Track(roomID string)
}

// DeadlineCanceler drops a room's pending question deadline
type DeadlineCanceler interface {
	Cancel(roomID string)
}

// Deps is everything a room service needs
type Deps struct {
	Rooms       repository.RoomRepo
	Snapshots   cache.RoomCache
	Sessions    cache.SessionCache
	Leaderboard cache.LeaderboardCache
	Locker      *RoomLocker
	Broadcaster Broadcaster
	Clients     *ClientRegistry
	Tracker     RoomTracker
	Deadlines   DeadlineCanceler
	Metrics     *metrics.Metrics
	Log         logrus.FieldLogger
	Now         func() time.Time
	Settings    Settings
}

// ClientInfo is what a connection reported about itself through registerClient
type ClientInfo struct {
	Platform   string `json:"platform"`
	DeviceInfo string `json:"deviceInfo"`
}

// ClientRegistry remembers client info per connection until it disconnects
type ClientRegistry struct {
	clients sync.Map // connID -> ClientInfo
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{}
}

func (r *ClientRegistry) Set(connID string, info ClientInfo) {
	r.clients.Store(connID, info)
}

func (r *ClientRegistry) Get(connID string) ClientInfo {
	if v, ok := r.clients.Load(connID); ok {
		return v.(ClientInfo)
	}
	return ClientInfo{}
}

func (r *ClientRegistry) Forget(connID string) {
	r.clients.Delete(connID)
}

// core holds the load, mutate and publish path shared by the services
type core struct {
	Deps
}

// tx collects the side effects of one mutation. They run only after the room
// is saved, still under the room lock, so broadcasts keep commit order.
type tx struct {
	skip        bool
	completed   bool // the commit moved the room to completed
	subscribe   []string
	unsubscribe []string
	events      []event
	hooks       []func(ctx context.Context)
}

type event struct {
	connID  string // empty means the whole room
	typ     string
	payload interface{}
}

// noCommit leaves the room untouched: no save, no version bump, no broadcast
func (t *tx) noCommit() { t.skip = true }

func (t *tx) send(connID, typ string, payload interface{}) {
	t.events = append(t.events, event{connID: connID, typ: typ, payload: payload})
}

func (t *tx) broadcast(typ string, payload interface{}) {
	t.events = append(t.events, event{typ: typ, payload: payload})
}

func (t *tx) onCommit(fn func(ctx context.Context)) {
	t.hooks = append(t.hooks, fn)
}

func (c *core) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *core) roomLog(roomID string) logrus.FieldLogger {
	return c.Log.WithField("room_id", roomID)
}

// view is the room as clients may see it
func (c *core) view(room *model.Room) *model.Room {
	if c.Settings.ScoringMode == ScoringServer {
		return room.Redacted()
	}
	return room.Clone()
}

func validateRoomID(roomID string) error {
	if !primitive.IsValidObjectID(roomID) {
		return ErrInvalidRoomID.With("invalid room id %q", roomID)
	}
	return nil
}

func (c *core) load(ctx context.Context, roomID string) (*model.Room, error) {
	room, err := c.Rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, internalError("failed to load room", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// read loads the room under its lock. check may reject the read.
func (c *core) read(ctx context.Context, op, roomID string, check func(room *model.Room) error) (*model.Room, error) {
	if err := validateRoomID(roomID); err != nil {
		c.Metrics.ObserveOperation(op, Code(err))
		return nil, err
	}
	var out *model.Room
	err := c.Locker.WithLock(ctx, roomID, func(ctx context.Context) error {
		room, err := c.load(ctx, roomID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(room); err != nil {
				return err
			}
		}
		out = room
		return nil
	})
	c.Metrics.ObserveOperation(op, Code(err))
	return out, err
}

// mutate runs fn on a private copy of the room under its lock. The version is
// bumped before fn runs so payloads built inside fn carry the new version.
// Nothing is visible to anyone until the save succeeds.
func (c *core) mutate(ctx context.Context, op, roomID string, fn func(room *model.Room, t *tx) error) (*model.Room, error) {
	if err := validateRoomID(roomID); err != nil {
		c.Metrics.ObserveOperation(op, Code(err))
		return nil, err
	}
	var out *model.Room
	err := c.Locker.WithLock(ctx, roomID, func(ctx context.Context) error {
		room, err := c.load(ctx, roomID)
		if err != nil {
			return err
		}
		wasCompleted := room.IsCompleted()
		room.Version++
		t := &tx{}
		if err := fn(room, t); err != nil {
			return err
		}
		t.completed = !wasCompleted && room.IsCompleted()
		if t.skip {
			room.Version--
			out = room
			c.publish(ctx, room, t, false)
			return nil
		}
		if err := c.Rooms.Update(ctx, room); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return ErrVersionConflict
			}
			return internalError("failed to save room", err)
		}
		c.publish(ctx, room, t, true)
		out = room
		return nil
	})
	c.Metrics.ObserveOperation(op, Code(err))
	return out, err
}

// publish applies the side effects of a transaction. For committed changes it
// refreshes the snapshot cache and finishes with a roomUpdated broadcast.
func (c *core) publish(ctx context.Context, room *model.Room, t *tx, committed bool) {
	log := c.roomLog(room.ID)
	if committed {
		if err := c.Snapshots.SetSnapshot(ctx, c.view(room)); err != nil {
			log.WithError(err).Warn("failed to cache room snapshot")
		}
	}
	for _, connID := range t.subscribe {
		c.Broadcaster.Subscribe(connID, room.ID)
		if err := c.Sessions.Bind(ctx, connID, room.ID); err != nil {
			log.WithError(err).Warn("failed to index connection")
		}
	}
	for _, connID := range t.unsubscribe {
		c.Broadcaster.Unsubscribe(connID, room.ID)
		if err := c.Sessions.Unbind(ctx, connID, room.ID); err != nil {
			log.WithError(err).Warn("failed to unindex connection")
		}
	}
	for _, hook := range t.hooks {
		hook(ctx)
	}
	if committed && t.completed {
		c.finish(ctx, room)
	}
	for _, e := range t.events {
		if e.connID != "" {
			c.Broadcaster.SendToConnection(e.connID, e.typ, e.payload)
		} else {
			c.Broadcaster.BroadcastToRoom(room.ID, e.typ, e.payload)
		}
	}
	if committed {
		c.Broadcaster.BroadcastToRoom(room.ID, EventRoomUpdated, c.roomUpdated(room))
	}
}

// finish releases what a room holds only while a game can still change
func (c *core) finish(ctx context.Context, room *model.Room) {
	if c.Deadlines != nil {
		c.Deadlines.Cancel(room.ID)
	}
	if err := c.Leaderboard.Expire(ctx, room.ID, finishedLeaderboardTTL); err != nil {
		c.roomLog(room.ID).WithError(err).Warn("failed to expire leaderboard")
	}
}

func (c *core) roomUpdated(room *model.Room) RoomUpdatedPayload {
	return RoomUpdatedPayload{
		Room:       c.view(room),
		Version:    room.Version,
		ServerTime: c.now().UnixMilli(),
	}
}

func (c *core) syncLeaderboard(ctx context.Context, roomID string, p *model.Player) {
	if err := c.Leaderboard.UpdateScore(ctx, roomID, p.ID, p.Nickname, p.Points); err != nil {
		c.roomLog(roomID).WithError(err).Warn("failed to update leaderboard")
	}
}
