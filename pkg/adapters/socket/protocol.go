package socket

import (
	"fmt"
	"net/http"
)

// Response is the engine's reply to a run request.
type Response struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
}

// StatusError is a non-200 engine response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("engine responded %d: %s", e.Status, msg)
}

// maxMessageSize bounds requests and responses.
const maxMessageSize = 4096
