package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RoomLocker serializes work per room. Each room gets a one-slot semaphore;
// goroutines blocked on the same channel send are admitted in arrival order,
// so waiters on a room are served FIFO. Unrelated rooms never contend.
type RoomLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry

	log     logrus.FieldLogger
	observe func(time.Duration)
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// NewRoomLocker creates a locker. observe, if set, receives lock wait times.
func NewRoomLocker(log logrus.FieldLogger, observe func(time.Duration)) *RoomLocker {
	return &RoomLocker{
		entries: make(map[string]*lockEntry),
		log:     log,
		observe: observe,
	}
}

// WithLock runs fn while holding the lock for roomID. The lock is released on
// every exit path; a panic in fn is recovered and reported as INTERNAL_ERROR.
// If ctx ends while waiting, ctx.Err() is returned and fn never runs.
func (l *RoomLocker) WithLock(ctx context.Context, roomID string, fn func(ctx context.Context) error) (err error) {
	entry := l.acquireEntry(roomID)
	defer l.releaseEntry(roomID, entry)

	start := time.Now()
	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if l.observe != nil {
		l.observe(time.Since(start))
	}

	defer func() {
		<-entry.sem
		if r := recover(); r != nil {
			l.log.WithFields(logrus.Fields{"room_id": roomID, "panic": r}).Error("recovered panic in room operation")
			err = internalError("room operation failed", fmt.Errorf("panic: %v", r))
		}
	}()

	return fn(ctx)
}

// Size returns the number of rooms with a holder or waiter
func (l *RoomLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *RoomLocker) acquireEntry(roomID string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[roomID]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[roomID] = e
	}
	e.refs++
	return e
}

func (l *RoomLocker) releaseEntry(roomID string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, roomID)
	}
}
