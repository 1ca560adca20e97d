package handler

import (
	"io"
	"log/slog"

	"event-relay/internal/client"
	"event-relay/internal/config"
	"event-relay/internal/service"
)

func testConfig() *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{TimeoutSeconds: 10, IdleConnections: 10},
		Relay:    config.RelayConfig{MaxConcurrent: 4, QueueTimeoutSeconds: 1},
		Callback: config.CallbackConfig{Envelope: config.EnvelopeSignal},
		Metrics:  config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestRelayService(cfg *config.Config) *service.RelayService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewRelayService(client.NewRelayClient(cfg, logger, nil, nil), cfg, logger, nil)
}
