package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"event-relay/internal/config"
	"event-relay/internal/metrics"
	"event-relay/internal/model"
)

// CallbackDispatcher posts a successful forward's response to the directive's
// return address.
type CallbackDispatcher struct {
	client   Doer
	envelope string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewCallbackDispatcher creates a CallbackDispatcher using the configured
// envelope shape. The metrics parameter is optional.
func NewCallbackDispatcher(c Doer, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *CallbackDispatcher {
	return &CallbackDispatcher{
		client:   c,
		envelope: cfg.Callback.Envelope,
		logger:   logger.With("component", "callback_dispatcher"),
		metrics:  m,
	}
}

// Dispatch posts the callback when d has a return address and fwd succeeded;
// otherwise it does no I/O and returns an unattempted outcome. A failed
// callback is reported in the outcome and as a *CallbackError, never as a
// failure of the relay itself.
func (c *CallbackDispatcher) Dispatch(ctx context.Context, d *model.Directive, fwd model.ForwardOutcome) (model.CallbackOutcome, error) {
	if d.ReturnAddress == "" || !fwd.Succeeded {
		c.record(metrics.CallbackSkipped)
		return model.CallbackOutcome{}, nil
	}

	out := model.CallbackOutcome{Attempted: true}

	payload, err := json.Marshal(BuildEnvelope(c.envelope, d.CallerID, fwd.ResponseBody))
	if err != nil {
		cerr := &CallbackError{URL: d.ReturnAddress, Err: fmt.Errorf("encode envelope: %w", err)}
		out.ErrorDetail = cerr.Err.Error()
		c.record(metrics.CallbackFailed)
		return out, cerr
	}

	header := directiveHeader(d.Headers)
	header.Set("Content-Type", "application/json")

	c.logger.Debug("posting callback",
		"return_address", d.ReturnAddress,
		"envelope", c.envelope,
		"payload", string(payload),
	)

	resp, err := c.client.Do(ctx, metrics.KindCallback, http.MethodPost, d.ReturnAddress, header, payload)
	if err == nil && !resp.OK() {
		err = &StatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	if err != nil {
		out.ErrorDetail = errorDetail(err)
		c.record(metrics.CallbackFailed)
		return out, &CallbackError{URL: d.ReturnAddress, Err: err}
	}

	out.Succeeded = true
	out.StatusCode = resp.StatusCode
	out.ResponseBody = model.DecodeBody(resp.Body)
	c.record(metrics.CallbackPosted)
	return out, nil
}

func (c *CallbackDispatcher) record(result string) {
	if c.metrics != nil {
		c.metrics.CallbackResults.WithLabelValues(result).Inc()
	}
}

// BuildEnvelope wraps a forward response body for delivery to a return
// address. The flat shape is {"useId":…,"data":…}; anything else yields the
// signal shape {"signal":{"useId":…,"returnBody":…}}.
func BuildEnvelope(shape string, callerID json.RawMessage, body any) any {
	if shape == config.EnvelopeFlat {
		return model.FlatEnvelope{UseID: callerID, Data: body}
	}
	return model.SignalEnvelope{
		Signal: model.SignalBody{UseID: callerID, ReturnBody: body},
	}
}
