package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

var (
	// ErrTurnInProgress is returned by Stream.Send while the previous turn
	// has not ended with a done or error frame.
	ErrTurnInProgress = errors.New("stream: previous turn still in progress")

	// ErrStreamClosed is returned by Stream.Send after the channel closed.
	ErrStreamClosed = errors.New("stream: closed")
)

// RequestError reports a non-2xx response.
type RequestError struct {
	Op         string // e.g. "chat", "create event"
	StatusCode int
	Status     string // e.g. "500 Internal Server Error"
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.StatusText())
}

// StatusText returns the status line, deriving it from the code when the
// transport did not provide one.
func (e *RequestError) StatusText() string {
	if e.Status != "" {
		return e.Status
	}
	return strings.TrimSpace(strconv.Itoa(e.StatusCode) + " " + http.StatusText(e.StatusCode))
}

// StreamError reports a failure on the streaming channel: either a
// transport/decode error (Err set) or an error frame sent by the server
// (Message set).
type StreamError struct {
	Message string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Err != nil {
		return "stream: " + e.Err.Error()
	}
	return "stream: server error: " + e.Message
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err is a RequestError with the given code.
func IsStatus(err error, code int) bool {
	var re *RequestError
	return errors.As(err, &re) && re.StatusCode == code
}
