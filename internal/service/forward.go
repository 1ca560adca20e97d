package service

import (
	"context"
	"log/slog"
	"net/http"

	"event-relay/internal/metrics"
	"event-relay/internal/model"
)

// Doer performs one buffered outbound HTTP call.
type Doer interface {
	Do(ctx context.Context, kind, method, url string, header http.Header, body []byte) (*model.UpstreamResponse, error)
}

// Forwarder performs the single call to a directive's target URL.
type Forwarder struct {
	client Doer
	logger *slog.Logger
}

// NewForwarder creates a Forwarder.
func NewForwarder(c Doer, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		client: c,
		logger: logger.With("component", "forwarder"),
	}
}

// Forward dispatches d to its target exactly once. GET carries headers only;
// POST and PUT carry the directive body, or nothing when it is absent.
// On failure the outcome holds the error detail and the returned error is a
// *ForwardError.
func (f *Forwarder) Forward(ctx context.Context, d *model.Directive) (model.ForwardOutcome, error) {
	header := directiveHeader(d.Headers)

	var body []byte
	if d.Method != http.MethodGet && len(d.Body) > 0 {
		body = d.Body
		if header.Get("Content-Type") == "" {
			header.Set("Content-Type", "application/json")
		}
	}

	f.logger.Debug("forwarding",
		"method", d.Method,
		"url", d.TargetURL,
		"body_bytes", len(body),
		"header_keys", len(header),
	)

	resp, err := f.client.Do(ctx, metrics.KindForward, d.Method, d.TargetURL, header, body)
	if err == nil && !resp.OK() {
		err = &StatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	if err != nil {
		ferr := &ForwardError{URL: d.TargetURL, Err: err}
		return model.ForwardOutcome{ErrorDetail: errorDetail(err)}, ferr
	}

	return model.ForwardOutcome{
		Succeeded:    true,
		StatusCode:   resp.StatusCode,
		ResponseBody: model.DecodeBody(resp.Body),
	}, nil
}

// directiveHeader copies directive headers into a fresh http.Header.
// Content-Length is dropped; the transport computes it.
func directiveHeader(src map[string]string) http.Header {
	h := make(http.Header, len(src))
	for k, v := range src {
		if http.CanonicalHeaderKey(k) == "Content-Length" {
			continue
		}
		h.Set(k, v)
	}
	return h
}
