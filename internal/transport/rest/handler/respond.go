package handler

import (
	"encoding/json"
	"net/http"
	"quizroom/internal/service"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode,omitempty"`
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps a room error to its HTTP status
func writeServiceError(w http.ResponseWriter, err error) {
	e := service.AsError(err)
	message := e.Message
	if e.Kind == service.KindInternal {
		message = "internal error"
	}
	writeJSON(w, StatusFor(e), ErrorResponse{Error: message, ErrorCode: e.Code})
}

// StatusFor returns the HTTP status for an error kind
func StatusFor(e *service.Error) int {
	if e.Code == service.ErrInvalidToken.Code {
		return http.StatusUnauthorized
	}
	switch e.Kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict, service.KindState:
		return http.StatusConflict
	case service.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
