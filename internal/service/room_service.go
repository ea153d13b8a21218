package service

import (
	"context"
	"quizroom/internal/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RoomService handles room creation, joining and host-driven ending
type RoomService struct {
	core
	authSvc *AuthService
}

// NewRoomService creates a new room service
func NewRoomService(deps Deps, authSvc *AuthService) *RoomService {
	return &RoomService{core: core{deps}, authSvc: authSvc}
}

type CreateRoomInput struct {
	ConnID                 string           `validate:"required"`
	Nickname               string           `validate:"required,max=32"`
	Questions              []model.Question `validate:"required,min=1,dive"`
	PerQuestionTimeSeconds int              `validate:"gte=0"`
}

type JoinRoomInput struct {
	ConnID   string `validate:"required"`
	RoomID   string `validate:"required"`
	Nickname string `validate:"required,max=32"`
}

// SessionResult is returned to the connection that created, joined or resumed a seat
type SessionResult struct {
	Room        *model.Room
	PlayerID    string
	ResumeToken string
}

// CreateRoom creates a lobby with the caller as host
func (s *RoomService) CreateRoom(ctx context.Context, in CreateRoomInput) (*SessionResult, error) {
	budget, err := s.checkCreate(in)
	if err != nil {
		s.Metrics.ObserveOperation("createRoom", Code(err))
		return nil, err
	}

	now := s.now()
	host := s.newPlayer(in.ConnID, in.Nickname, model.RoleHost)
	room := &model.Room{
		ID:                     primitive.NewObjectID().Hex(),
		State:                  model.RoomLobby,
		Players:                []model.Player{host},
		Questions:              model.CopyQuestions(in.Questions),
		PerQuestionTimeSeconds: budget,
		QuestionStartTimes:     []int64{},
		Version:                1,
		CreatedAt:              now,
		LastActivity:           now,
	}

	var result *SessionResult
	err = s.Locker.WithLock(ctx, room.ID, func(ctx context.Context) error {
		token, err := s.authSvc.IssueResumeToken(room.ID, host.ID)
		if err != nil {
			return internalError("failed to issue resume token", err)
		}
		if err := s.Rooms.Create(ctx, room); err != nil {
			return internalError("failed to create room", err)
		}

		t := &tx{subscribe: []string{in.ConnID}}
		t.send(in.ConnID, EventRoomCreated, SessionPayload{
			Room:        s.view(room),
			PlayerID:    host.ID,
			ResumeToken: token,
			ServerTime:  now.UnixMilli(),
		})
		t.onCommit(func(ctx context.Context) { s.syncLeaderboard(ctx, room.ID, &room.Players[0]) })
		s.publish(ctx, room, t, true)

		result = &SessionResult{Room: room, PlayerID: host.ID, ResumeToken: token}
		return nil
	})
	s.Metrics.ObserveOperation("createRoom", Code(err))
	if err != nil {
		return nil, err
	}
	s.Tracker.Track(room.ID)
	s.roomLog(room.ID).WithField("player_id", host.ID).Info("room created")
	return result, nil
}

// JoinRoom adds the caller to a lobby as a guest
func (s *RoomService) JoinRoom(ctx context.Context, in JoinRoomInput) (*SessionResult, error) {
	if err := validateInput(in); err != nil {
		s.Metrics.ObserveOperation("joinRoom", Code(err))
		return nil, err
	}

	var result *SessionResult
	_, err := s.mutate(ctx, "joinRoom", in.RoomID, func(room *model.Room, t *tx) error {
		if !room.IsJoinable() {
			return ErrGameAlreadyStarted
		}
		if room.PlayerByConnection(in.ConnID) != nil {
			return ErrDuplicatePlayer
		}

		now := s.now()
		room.Players = append(room.Players, s.newPlayer(in.ConnID, in.Nickname, model.RoleGuest))
		player := &room.Players[len(room.Players)-1]
		room.Touch(now)

		token, err := s.authSvc.IssueResumeToken(room.ID, player.ID)
		if err != nil {
			return internalError("failed to issue resume token", err)
		}

		t.subscribe = append(t.subscribe, in.ConnID)
		t.send(in.ConnID, EventJoinedRoom, SessionPayload{
			Room:        s.view(room),
			PlayerID:    player.ID,
			ResumeToken: token,
			ServerTime:  now.UnixMilli(),
		})
		t.onCommit(func(ctx context.Context) { s.syncLeaderboard(ctx, room.ID, player) })

		result = &SessionResult{Room: room, PlayerID: player.ID, ResumeToken: token}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Tracker.Track(in.RoomID)
	s.roomLog(in.RoomID).WithField("player_id", result.PlayerID).Info("player joined")
	return result, nil
}

// RoomState sends the current snapshot to a connection that is part of the room
func (s *RoomService) RoomState(ctx context.Context, connID, roomID string) (*SessionResult, error) {
	var playerID string
	room, err := s.read(ctx, "requestRoomState", roomID, func(room *model.Room) error {
		p := room.PlayerByConnection(connID)
		if p == nil {
			return ErrNotInRoom
		}
		playerID = p.ID
		s.Broadcaster.SendToConnection(connID, EventRoomState, SessionPayload{
			Room:       s.view(room),
			PlayerID:   p.ID,
			ServerTime: s.now().UnixMilli(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &SessionResult{Room: room, PlayerID: playerID}, nil
}

// GetRoom returns the authoritative room as clients may see it
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*model.Room, error) {
	room, err := s.read(ctx, "getRoom", roomID, nil)
	if err != nil {
		return nil, err
	}
	return s.view(room), nil
}

// CachedRoom serves the last committed snapshot from the cache, falling back
// to a locked read on a miss
func (s *RoomService) CachedRoom(ctx context.Context, roomID string) (*model.Room, error) {
	if err := validateRoomID(roomID); err != nil {
		return nil, err
	}
	room, err := s.Snapshots.GetSnapshot(ctx, roomID)
	if err != nil {
		s.roomLog(roomID).WithError(err).Warn("snapshot cache read failed")
	}
	if room != nil {
		return room, nil
	}
	return s.GetRoom(ctx, roomID)
}

// EndGame lets the host finish a lobby or running game early
func (s *RoomService) EndGame(ctx context.Context, roomID, connID string) (*model.Room, error) {
	return s.mutate(ctx, "endGame", roomID, func(room *model.Room, t *tx) error {
		p := room.PlayerByConnection(connID)
		if p == nil {
			return ErrNotInRoom
		}
		if p.Role != model.RoleHost {
			return ErrNotHost
		}
		if room.IsCompleted() {
			return ErrGameCompleted
		}

		now := s.now()
		room.Complete(now, model.EndHostEnded)
		room.Touch(now)
		t.broadcast(EventGameEnded, GameOverPayload{
			Room:       s.view(room),
			Reason:     string(model.EndHostEnded),
			ServerTime: now.UnixMilli(),
		})
		t.onCommit(func(ctx context.Context) {
			s.Metrics.RoomsCompleted.WithLabelValues(string(model.EndHostEnded)).Inc()
			s.roomLog(room.ID).Info("game ended by host")
		})
		return nil
	})
}

// checkCreate validates the request and resolves the room default budget
func (s *RoomService) checkCreate(in CreateRoomInput) (int, error) {
	if err := validateInput(in); err != nil {
		return 0, err
	}
	budget := in.PerQuestionTimeSeconds
	if budget == 0 {
		budget = s.Settings.DefaultBudget
	}
	if budget <= 0 {
		return 0, ErrValidation.With("question time must be positive")
	}
	for i := range in.Questions {
		if err := in.Questions[i].Validate(); err != nil {
			return 0, ErrValidation.With("question %d: %v", i, err)
		}
	}
	return budget, nil
}

func (s *RoomService) newPlayer(connID, nickname string, role model.PlayerRole) model.Player {
	now := s.now()
	info := s.Clients.Get(connID)
	p := model.Player{
		ID:         uuid.NewString(),
		Nickname:   nickname,
		Role:       role,
		Answers:    []model.AnswerRecord{},
		JoinedAt:   now,
		Platform:   info.Platform,
		DeviceInfo: info.DeviceInfo,
	}
	p.Bind(connID, now)
	return p
}
