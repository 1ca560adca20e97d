package service

import (
	"bytes"
	"encoding/json"
	"maps"
	"net/http"
	"strings"

	"event-relay/internal/model"
)

// Validate turns an inbound request into a Directive. Only url is required;
// the method defaults to POST, headers to an empty map and body to absent.
// Unrecognized methods fall back to POST rather than being rejected.
func Validate(req *model.ForwardEventRequest) (*model.Directive, error) {
	if req == nil || req.URL == "" {
		return nil, missingField("url")
	}

	d := &model.Directive{
		TargetURL: req.URL,
		Method:    normalizeMethod(req.UseRequest),
		Headers:   make(map[string]string, len(req.UseHeaders)),
		CallerID:  optionalJSON(req.UseID),
	}
	maps.Copy(d.Headers, req.UseHeaders)

	d.Body = optionalJSON(req.UseBody)
	if req.UseReturnAddress != nil {
		d.ReturnAddress = *req.UseReturnAddress
	}

	return d, nil
}

// optionalJSON copies a raw JSON value, treating empty input and null as absent.
func optionalJSON(v json.RawMessage) json.RawMessage {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return nil
	}
	return json.RawMessage(bytes.Clone(v))
}

func normalizeMethod(m string) string {
	switch strings.ToUpper(strings.TrimSpace(m)) {
	case http.MethodGet:
		return http.MethodGet
	case http.MethodPut:
		return http.MethodPut
	default:
		return http.MethodPost
	}
}
