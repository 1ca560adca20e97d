package service

import (
	"errors"
	"fmt"
	"net/url"

	"event-relay/internal/model"
)

// ErrRelayBusy is returned when no outbound slot frees up within the queue timeout.
var ErrRelayBusy = errors.New("too many in-flight relays")

// ValidationError reports an inbound directive that cannot be relayed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func missingField(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("Missing required field: '%s'", field),
	}
}

// StatusError reports a non-2xx answer from the target or the return address.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Request failed with status code %d", e.StatusCode)
}

// ForwardError reports a failed call to the target URL.
type ForwardError struct {
	URL string
	Err error
}

func (e *ForwardError) Error() string {
	return fmt.Sprintf("forward to %s: %v", e.URL, e.Err)
}

func (e *ForwardError) Unwrap() error { return e.Err }

// CallbackError reports a failed call to the return address.
type CallbackError struct {
	URL string
	Err error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback to %s: %v", e.URL, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

// errorDetail extracts what the caller sees for a failed call: the peer's
// error body when it sent one, otherwise a readable transport error.
func errorDetail(err error) any {
	var se *StatusError
	if errors.As(err, &se) {
		if body := model.DecodeBody(se.Body); body != nil {
			return body
		}
		return se.Error()
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Error()
	}
	return err.Error()
}
