// Package service implements the forward-then-callback relay.
package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"event-relay/internal/config"
	"event-relay/internal/metrics"
	"event-relay/internal/model"
)

// RelayService runs the relay pipeline for one inbound request:
// validate, forward, optionally call back, compose the reply.
type RelayService struct {
	limiter   *Limiter
	forwarder *Forwarder
	callbacks *CallbackDispatcher
	logger    *slog.Logger
}

// NewRelayService creates a RelayService. The metrics parameter is optional.
func NewRelayService(c Doer, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *RelayService {
	return &RelayService{
		limiter:   NewLimiter(cfg, m),
		forwarder: NewForwarder(c, logger),
		callbacks: NewCallbackDispatcher(c, cfg, logger, m),
		logger:    logger.With("component", "relay_service"),
	}
}

// Limiter exposes the outbound concurrency limiter for status reporting.
func (s *RelayService) Limiter() *Limiter {
	return s.limiter
}

// Relay validates req and relays it. It returns a *ValidationError when the
// directive is unusable and an error wrapping ErrRelayBusy when no outbound
// slot is available; neither makes an outbound call. Forward and callback
// failures are reported in the returned Reply, not as errors.
//
// Outbound calls are detached from ctx cancellation: a caller that hangs up
// does not abort them. The per-call timeout still applies.
func (s *RelayService) Relay(ctx context.Context, req *model.ForwardEventRequest) (*model.Reply, error) {
	d, err := Validate(req)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		s.logger.Warn("relay rejected", "err", err, "url", d.TargetURL)
		return nil, err
	}
	defer s.limiter.Release()

	ctx = context.WithoutCancel(ctx)
	log := s.logger.With("use_id", callerIDAttr(d.CallerID))

	fwd, err := s.forwarder.Forward(ctx, d)
	if err != nil {
		log.Error("forward failed", "err", err, "method", d.Method)
	} else {
		log.Info("forward succeeded",
			"method", d.Method,
			"url", d.TargetURL,
			"status", fwd.StatusCode,
		)
	}

	cb, err := s.callbacks.Dispatch(ctx, d, fwd)
	switch {
	case err != nil:
		log.Warn("callback failed", "err", err)
	case cb.Attempted:
		log.Info("callback posted", "return_address", d.ReturnAddress, "status", cb.StatusCode)
	case fwd.Succeeded && d.ReturnAddress == "":
		log.Debug("no return address; callback skipped")
	}

	return Compose(d, fwd, cb), nil
}

// callerIDAttr renders a caller id for logging; JSON strings lose their quotes.
func callerIDAttr(id json.RawMessage) any {
	if id == nil {
		return nil
	}
	var s string
	if json.Unmarshal(id, &s) == nil {
		return s
	}
	return string(id)
}
