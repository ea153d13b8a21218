package service

import (
	"errors"
	"fmt"
)

// ErrorKind groups error codes by how a client should react
type ErrorKind string

const (
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindValidation ErrorKind = "validation"
	KindState      ErrorKind = "state"
	KindInternal   ErrorKind = "internal"
)

// Error is the typed error returned by every room operation. Two errors match
// under errors.Is when their codes are equal.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// With returns a copy of e carrying a more specific message
func (e *Error) With(format string, args ...interface{}) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

var (
	ErrInvalidRoomID        = &Error{Kind: KindValidation, Code: "INVALID_ROOM_ID", Message: "invalid room id"}
	ErrValidation           = &Error{Kind: KindValidation, Code: "VALIDATION_ERROR", Message: "invalid request"}
	ErrInvalidQuestionIndex = &Error{Kind: KindValidation, Code: "INVALID_QUESTION_INDEX", Message: "question index does not match the current question"}
	ErrRoomNotFound         = &Error{Kind: KindNotFound, Code: "ROOM_NOT_FOUND", Message: "room not found"}
	ErrPlayerNotFound       = &Error{Kind: KindNotFound, Code: "PLAYER_NOT_FOUND", Message: "player not found"}
	ErrNotInRoom            = &Error{Kind: KindNotFound, Code: "NOT_IN_ROOM", Message: "connection is not part of this room"}
	ErrDuplicatePlayer      = &Error{Kind: KindConflict, Code: "DUPLICATE_PLAYER", Message: "connection already joined this room"}
	ErrAlreadyAnswered      = &Error{Kind: KindConflict, Code: "ALREADY_ANSWERED", Message: "question already answered"}
	ErrVersionConflict      = &Error{Kind: KindConflict, Code: "VERSION_CONFLICT", Message: "room was modified concurrently"}
	ErrGameAlreadyStarted   = &Error{Kind: KindState, Code: "GAME_ALREADY_STARTED", Message: "game already started"}
	ErrGameNotRunning       = &Error{Kind: KindState, Code: "GAME_NOT_RUNNING", Message: "game is not running"}
	ErrGameCompleted        = &Error{Kind: KindState, Code: "GAME_COMPLETED", Message: "game is completed"}
	ErrNotHost              = &Error{Kind: KindState, Code: "NOT_HOST", Message: "only the host can do this"}
	ErrInternal             = &Error{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: "internal error"}
	ErrInvalidToken         = &Error{Kind: KindValidation, Code: "INVALID_TOKEN", Message: "invalid or expired token"}
)

// internalError wraps an unexpected failure
func internalError(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Code: ErrInternal.Code, Message: msg, Err: err}
}

// AsError returns the typed error behind err, mapping anything unknown to INTERNAL_ERROR
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return internalError(ErrInternal.Message, err)
}

// Code returns the error code for metrics and client payloads, "ok" for nil
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	return AsError(err).Code
}
