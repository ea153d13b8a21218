package handler

import (
	"net/http"
	"quizroom/internal/cache"
	"quizroom/internal/service"
	"quizroom/internal/transport/rest/middleware"
	"strconv"

	"github.com/gorilla/mux"
)

const (
	defaultTop = 20
	maxTop     = 100
)

// RoomHandler handles room endpoints
type RoomHandler struct {
	roomSvc     *service.RoomService
	leaderboard cache.LeaderboardCache
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(roomSvc *service.RoomService, leaderboard cache.LeaderboardCache) *RoomHandler {
	return &RoomHandler{
		roomSvc:     roomSvc,
		leaderboard: leaderboard,
	}
}

// Get handles GET /v1/rooms/{roomId}. The resume token must belong to the room.
// The response carries the caller's leaderboard rank when known.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	if middleware.GetRoomID(r.Context()) != roomID {
		writeError(w, http.StatusForbidden, "token not valid for this room")
		return
	}

	room, err := h.roomSvc.CachedRoom(r.Context(), roomID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	playerID := middleware.GetPlayerID(r.Context())
	resp := map[string]interface{}{
		"room":     room,
		"status":   room.Status(),
		"playerId": playerID,
	}
	// rank is omitted while the player has no leaderboard entry
	if rank, err := h.leaderboard.GetRank(r.Context(), roomID, playerID); err == nil && rank > 0 {
		resp["rank"] = rank
	}
	writeJSON(w, http.StatusOK, resp)
}

// Leaderboard handles GET /v1/rooms/{roomId}/leaderboard
func (h *RoomHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	top := defaultTop
	if topStr := r.URL.Query().Get("top"); topStr != "" {
		n, err := strconv.Atoi(topStr)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		top = min(n, maxTop)
	}

	if _, err := h.roomSvc.CachedRoom(r.Context(), roomID); err != nil {
		writeServiceError(w, err)
		return
	}

	entries, err := h.leaderboard.GetTop(r.Context(), roomID, top)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "leaderboard unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": entries})
}
