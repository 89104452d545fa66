package clients

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// StatusError is a non-2xx response from a collaborator.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

// IsTransient reports whether a collaborator call failed in a way worth
// retrying: transport/timeout errors and 5xx responses. Business responses
// (4xx) are never retried.
func IsTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
