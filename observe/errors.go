package observe

import (
	"errors"
	"fmt"
)

var (
	// ErrNoExecutionContext is returned when an observation is sent without
	// an ambient execution handle and without an explicit one.
	ErrNoExecutionContext = errors.New("observe: no execution context")

	// ErrMissingPayload is returned when an observation is built without a
	// payload.
	ErrMissingPayload = errors.New("observe: observation has no payload")

	// ErrChannelClosed is returned when the background worker has already
	// stopped and can no longer accept submissions.
	ErrChannelClosed = errors.New("observe: uploader channel closed")

	// ErrInvalidConfig is returned by New for a malformed base URL or API
	// key.
	ErrInvalidConfig = errors.New("observe: invalid configuration")
)

// HTTPError is a non-2xx response from the server, delivered through the
// completion handle of the batch that failed.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("observe: server returned %d: %s", e.Status, e.Body)
}
