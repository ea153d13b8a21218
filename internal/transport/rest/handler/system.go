package handler

import (
	"net/http"
	"quizroom/internal/service"
)

// SystemHandler serves health and clock endpoints
type SystemHandler struct {
	rounds *service.RoundService
}

func NewSystemHandler(rounds *service.RoundService) *SystemHandler {
	return &SystemHandler{rounds: rounds}
}

// Health handles GET /health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Time handles GET /v1/time
func (h *SystemHandler) Time(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, service.ServerTimePayload{Timestamp: h.rounds.ServerTime()})
}
