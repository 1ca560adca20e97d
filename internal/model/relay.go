// Package model defines shared types for the relay.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// ForwardEventRequest is the inbound body of POST /forwardEvent.
type ForwardEventRequest struct {
	URL              string            `json:"url"`
	UseBody          json.RawMessage   `json:"useBody"`
	UseHeaders       HeaderMap         `json:"useHeaders"`
	UseRequest       string            `json:"useRequest"`
	UseID            json.RawMessage   `json:"useId"` // any JSON value, echoed verbatim
	UseReturnAddress *string           `json:"useReturnAddress"`
}

// HeaderMap holds directive headers. Scalar JSON values are accepted and kept
// in their textual form; null entries are dropped.
type HeaderMap map[string]string

// UnmarshalJSON implements json.Unmarshaler.
func (h *HeaderMap) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		*h = nil
		return nil
	}

	out := make(HeaderMap, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		switch {
		case bytes.Equal(v, []byte("null")):
			continue
		case len(v) > 0 && v[0] == '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			out[k] = s
		case len(v) > 0 && (v[0] == '{' || v[0] == '['):
			return fmt.Errorf("header %q: value must be a string, number or boolean", k)
		default:
			out[k] = string(v)
		}
	}
	*h = out
	return nil
}

// Directive is a validated forwarding request. It is not modified after
// validation.
type Directive struct {
	TargetURL     string
	Method        string
	Body          json.RawMessage // nil when absent
	Headers       map[string]string
	CallerID      json.RawMessage // nil when absent
	ReturnAddress string // empty when absent
}

// ForwardOutcome records the result of the call to the target URL.
type ForwardOutcome struct {
	Succeeded    bool
	StatusCode   int
	ResponseBody any
	ErrorDetail  any
}

// CallbackOutcome records the result of the call to the return address.
type CallbackOutcome struct {
	Attempted    bool
	Succeeded    bool
	StatusCode   int
	ResponseBody any
	ErrorDetail  any
}

// UpstreamResponse is a fully buffered response from an outbound call.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *UpstreamResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Reply is the composed answer to the original caller.
type Reply struct {
	StatusCode int
	Body       any
}

// ForwardEventResponse is the success body returned to the caller.
type ForwardEventResponse struct {
	Message  string          `json:"message"`
	UseID    json.RawMessage `json:"useId"`
	Response any             `json:"response"`
	Callback *CallbackStatus `json:"callback,omitempty"`
}

// CallbackStatus reports the callback result inside ForwardEventResponse.
type CallbackStatus struct {
	Posted bool `json:"posted"`
	Status int  `json:"status,omitempty"`
	Data   any  `json:"data,omitempty"`
	Error  any  `json:"error,omitempty"`
}

// ErrorResponse is the failure body returned to the caller.
type ErrorResponse struct {
	Error   string          `json:"error"`
	UseID   json.RawMessage `json:"useId"`
	Details any             `json:"details,omitempty"`
}

// SignalEnvelope is the default callback payload:
// {"signal":{"useId":…,"returnBody":…}}.
type SignalEnvelope struct {
	Signal SignalBody `json:"signal"`
}

// SignalBody is the inner object of SignalEnvelope.
type SignalBody struct {
	UseID      json.RawMessage `json:"useId"`
	ReturnBody any             `json:"returnBody"`
}

// FlatEnvelope is the alternative callback payload: {"useId":…,"data":…}.
type FlatEnvelope struct {
	UseID json.RawMessage `json:"useId"`
	Data  any             `json:"data"`
}

// DecodeBody turns a raw response body into an opaque JSON value. Valid JSON is
// kept verbatim, any other non-empty payload becomes a JSON string, and an empty
// payload yields nil.
func DecodeBody(b []byte) any {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	return string(b)
}
