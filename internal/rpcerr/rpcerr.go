// Package rpcerr gives every API error a closed, machine-readable tag so
// callers can switch on it instead of parsing messages.
package rpcerr

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

type Tag string

const (
	Unauthorized        Tag = "UNAUTHORIZED"
	Forbidden           Tag = "FORBIDDEN"
	BadRequest          Tag = "BAD_REQUEST"
	NotFound            Tag = "NOT_FOUND"
	Conflict            Tag = "CONFLICT"
	InternalServerError Tag = "INTERNAL_SERVER_ERROR"
)

// Error is the body of every failed call.
type Error struct {
	Status  int    `json:"-"`
	Tag     Tag    `json:"_tag" enum:"UNAUTHORIZED,FORBIDDEN,BAD_REQUEST,NOT_FOUND,CONFLICT,INTERNAL_SERVER_ERROR"`
	Message string `json:"message,omitempty"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Tag)
	}
	return string(e.Tag) + ": " + e.Message
}

func (e *Error) GetStatus() int {
	return e.Status
}

// TagFor maps an HTTP status onto the closed tag set. Anything unexpected
// collapses to INTERNAL_SERVER_ERROR or BAD_REQUEST.
func TagFor(status int) Tag {
	switch status {
	case http.StatusUnauthorized:
		return Unauthorized
	case http.StatusForbidden:
		return Forbidden
	case http.StatusNotFound:
		return NotFound
	case http.StatusConflict:
		return Conflict
	}
	if status >= 500 {
		return InternalServerError
	}
	return BadRequest
}

// New builds a tagged error. Detail errors from huma's validation are folded
// into the message.
func New(status int, msg string, errs ...error) huma.StatusError {
	if len(errs) > 0 {
		detail := errors.Join(errs...).Error()
		if msg == "" {
			msg = detail
		} else {
			msg = msg + ": " + detail
		}
	}
	return &Error{Status: status, Tag: TagFor(status), Message: msg}
}

// Install makes huma.ErrorNNN helpers and huma's validation errors produce
// tagged errors.
func Install() {
	huma.NewError = New
}

// TagOf extracts the tag from any error returned by a handler.
func TagOf(err error) Tag {
	var e *Error
	if errors.As(err, &e) {
		return e.Tag
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return TagFor(se.GetStatus())
	}
	return InternalServerError
}
