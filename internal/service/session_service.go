package service

import (
	"context"
	"quizroom/internal/model"
)

// SessionService binds connections to player seats: reconnects, disconnects
// and client registration
type SessionService struct {
	core
	authSvc *AuthService
}

// NewSessionService creates a new session service
func NewSessionService(deps Deps, authSvc *AuthService) *SessionService {
	return &SessionService{core: core{deps}, authSvc: authSvc}
}

// ReconnectInput identifies the seat to resume, either directly or through a
// resume token. A token wins over RoomID/PlayerID.
type ReconnectInput struct {
	ConnID      string `validate:"required"`
	RoomID      string
	PlayerID    string
	ResumeToken string
}

// RegisterClient remembers what a connection reported about itself
func (s *SessionService) RegisterClient(connID string, info ClientInfo) {
	s.Clients.Set(connID, info)
}

// Reconnect rebinds an existing player to a new connection. Score, answers
// and progress are untouched. Completed rooms only get the read-only snapshot.
func (s *SessionService) Reconnect(ctx context.Context, in ReconnectInput) (*SessionResult, error) {
	if err := s.resolveSeat(&in); err != nil {
		s.Metrics.ObserveOperation("reconnect", Code(err))
		return nil, err
	}

	var player model.Player
	room, err := s.mutate(ctx, "reconnect", in.RoomID, func(room *model.Room, t *tx) error {
		p := room.Player(in.PlayerID)
		if p == nil {
			return ErrPlayerNotFound
		}
		now := s.now()
		if room.IsCompleted() {
			t.noCommit()
		} else {
			if p.ConnectionID != "" && p.ConnectionID != in.ConnID {
				t.unsubscribe = append(t.unsubscribe, p.ConnectionID)
			}
			p.Bind(in.ConnID, now)
			if info := s.Clients.Get(in.ConnID); info.Platform != "" {
				p.Platform, p.DeviceInfo = info.Platform, info.DeviceInfo
			}
			room.Touch(now)
		}
		t.subscribe = append(t.subscribe, in.ConnID)
		player = *p
		t.send(in.ConnID, EventReconnectSuccess, ReconnectPayload{
			Room:       s.view(room),
			Player:     &player,
			ServerTime: now.UnixMilli(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !room.IsCompleted() {
		s.Tracker.Track(room.ID)
	}
	s.roomLog(room.ID).WithField("player_id", player.ID).Info("player reconnected")
	return &SessionResult{Room: room, PlayerID: player.ID}, nil
}

func (s *SessionService) resolveSeat(in *ReconnectInput) error {
	if err := validateInput(*in); err != nil {
		return err
	}
	if in.ResumeToken != "" {
		claims, err := s.authSvc.ValidateResumeToken(in.ResumeToken)
		if err != nil {
			return err
		}
		if (in.RoomID != "" && in.RoomID != claims.RoomID) || (in.PlayerID != "" && in.PlayerID != claims.PlayerID) {
			return ErrInvalidToken.With("token does not match the requested seat")
		}
		in.RoomID, in.PlayerID = claims.RoomID, claims.PlayerID
	}
	if in.RoomID == "" || in.PlayerID == "" {
		return ErrValidation.With("roomId and playerId or a resume token are required")
	}
	return nil
}

// Disconnect marks every player bound to connID as disconnected. Players are
// kept so they can reconnect; completed rooms are left as they are.
// It returns the ids of the rooms that changed.
func (s *SessionService) Disconnect(ctx context.Context, connID string) []string {
	log := s.Log.WithField("conn_id", connID)
	defer s.Clients.Forget(connID)

	var changed []string
	for _, roomID := range s.roomsOf(ctx, connID) {
		committed := false
		_, err := s.mutate(ctx, "disconnect", roomID, func(room *model.Room, t *tx) error {
			t.unsubscribe = append(t.unsubscribe, connID)
			if room.IsCompleted() {
				t.noCommit()
				return nil
			}
			now := s.now()
			for p := room.PlayerByConnection(connID); p != nil; p = room.PlayerByConnection(connID) {
				p.Unbind(now)
				committed = true
			}
			if !committed {
				t.noCommit()
			}
			return nil
		})
		if err != nil {
			log.WithError(err).WithField("room_id", roomID).Warn("failed to mark player disconnected")
			continue
		}
		if committed {
			changed = append(changed, roomID)
		}
	}

	if err := s.Sessions.Clear(ctx, connID); err != nil {
		log.WithError(err).Warn("failed to clear connection index")
	}
	if len(changed) > 0 {
		log.WithField("rooms", changed).Info("connection closed")
	}
	return changed
}

// roomsOf lists candidate rooms for a connection, preferring the cache index
func (s *SessionService) roomsOf(ctx context.Context, connID string) []string {
	ids, err := s.Sessions.Rooms(ctx, connID)
	if err == nil && len(ids) > 0 {
		return ids
	}
	if err != nil {
		s.Log.WithError(err).Warn("connection index unavailable, scanning store")
	}
	rooms, err := s.Rooms.FindByConnection(ctx, connID)
	if err != nil {
		s.Log.WithError(err).Error("failed to find rooms for connection")
		return nil
	}
	ids = make([]string, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	return ids
}
