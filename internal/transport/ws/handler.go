package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"quizroom/internal/service"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Services are the room operations reachable over the socket
type Services struct {
	Rooms    *service.RoomService
	Rounds   *service.RoundService
	Answers  *service.AnswerService
	Sessions *service.SessionService
}

// Handler handles WebSocket connections
type Handler struct {
	ctx      context.Context
	hub      *Hub
	svc      Services
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. ctx bounds the work done for
// every connection; allowedOrigins is the CORS origin list, "*" allows all.
func NewHandler(ctx context.Context, hub *Hub, svc Services, log logrus.FieldLogger, allowedOrigins string) *Handler {
	return &Handler{
		ctx: ctx,
		hub: hub,
		svc: svc,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

func checkOrigin(allowed string) func(r *http.Request) bool {
	if allowed == "" || allowed == "*" {
		return func(r *http.Request) bool { return true }
	}
	origins := make(map[string]bool)
	for _, o := range strings.Split(allowed, ",") {
		origins[strings.TrimSpace(o)] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origins[origin]
	}
}

// ServeWS handles GET /v1/ws
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := h.hub.NewClient(uuid.NewString())
	h.hub.Register(client)
	h.log.WithField("conn_id", client.ID).Info("websocket connected")

	go h.writePump(wsConn, client)
	go h.readPump(wsConn, client)
}

func (h *Handler) readPump(wsConn *websocket.Conn, client *Client) {
	log := h.log.WithField("conn_id", client.ID)
	defer func() {
		h.hub.Unregister(client)
		wsConn.Close()
		h.svc.Sessions.Disconnect(context.WithoutCancel(h.ctx), client.ID)
		log.Info("websocket disconnected")
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).Warn("websocket read failed")
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.replyError(client.ID, "", service.ErrValidation.With("malformed message"))
			continue
		}
		if err := h.dispatch(h.ctx, client.ID, msg); err != nil {
			h.replyError(client.ID, msg.Type, err)
		}
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch runs one client event. Replies and broadcasts are published by
// the services themselves; only failures come back here.
func (h *Handler) dispatch(ctx context.Context, connID string, msg Message) error {
	switch msg.Type {
	case EventRegisterClient:
		var req RegisterClientRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		h.svc.Sessions.RegisterClient(connID, service.ClientInfo{Platform: req.Platform, DeviceInfo: req.DeviceInfo})
		return nil

	case EventCreateRoom:
		var req CreateRoomRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		_, err := h.svc.Rooms.CreateRoom(ctx, service.CreateRoomInput{
			ConnID:                 connID,
			Nickname:               req.Nickname,
			Questions:              req.Questions,
			PerQuestionTimeSeconds: req.PerQuestionTimeSeconds,
		})
		return err

	case EventJoinRoom:
		var req JoinRoomRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		_, err := h.svc.Rooms.JoinRoom(ctx, service.JoinRoomInput{ConnID: connID, RoomID: req.RoomID, Nickname: req.Nickname})
		return err

	case EventStartGame:
		var req RoomRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		_, err := h.svc.Rounds.StartGame(ctx, req.RoomID)
		return err

	case EventSubmitAnswer:
		var req SubmitAnswerRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		_, err := h.svc.Answers.SubmitAnswer(ctx, service.SubmitAnswerInput{
			ConnID:          connID,
			RoomID:          req.RoomID,
			PlayerID:        req.PlayerID,
			RequestID:       req.RequestID,
			QuestionIndex:   req.QuestionIndex,
			SubmittedAnswer: req.SubmittedAnswer,
			CorrectAnswer:   req.CorrectAnswer,
			Correct:         req.Correct,
			Points:          req.Points,
		})
		return err

	case EventAdvanceQuestion:
		var req AdvanceQuestionRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		if req.QuestionIndex == nil {
			return service.ErrValidation.With("questionIndex is required")
		}
		_, err := h.svc.Rounds.AdvanceQuestion(ctx, req.RoomID, *req.QuestionIndex)
		return err

	case EventRequestRoomState:
		var req RoomRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		_, err := h.svc.Rooms.RoomState(ctx, connID, req.RoomID)
		return err

	case EventReconnectAttempt:
		var req ReconnectRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		_, err := h.svc.Sessions.Reconnect(ctx, service.ReconnectInput{
			ConnID:      connID,
			RoomID:      req.RoomID,
			PlayerID:    req.PreviousPlayerID,
			ResumeToken: req.ResumeToken,
		})
		return err

	case EventRequestServerTime:
		h.hub.SendToConnection(connID, service.EventServerTime, service.ServerTimePayload{
			Timestamp: h.svc.Rounds.ServerTime(),
		})
		return nil

	case EventEndGame:
		var req RoomRequest
		if err := decode(msg.Payload, &req); err != nil {
			return err
		}
		_, err := h.svc.Rooms.EndGame(ctx, req.RoomID, connID)
		return err

	default:
		return service.ErrValidation.With("unknown event %q", msg.Type)
	}
}

// replyError reports a failure to the originating connection only
func (h *Handler) replyError(connID, action string, err error) {
	e := service.AsError(err)
	message := e.Message
	if e.Kind == service.KindInternal {
		h.log.WithError(err).WithFields(logrus.Fields{"conn_id": connID, "action": action}).Error("request failed")
		message = "internal error"
	}
	h.hub.SendToConnection(connID, service.EventError, service.ErrorPayload{
		Action:    action,
		ErrorCode: e.Code,
		Message:   message,
	})
}

func decode(payload json.RawMessage, v interface{}) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return service.ErrValidation.With("invalid payload: %v", err)
	}
	return nil
}
