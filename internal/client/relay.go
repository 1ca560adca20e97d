// Package client provides the outbound HTTP client shared by forward and
// callback calls.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"event-relay/internal/config"
	"event-relay/internal/metrics"
	"event-relay/internal/model"
	"event-relay/internal/telemetry"
)

// maxResponseBytes caps how much of an outbound response is buffered.
const maxResponseBytes = 32 << 20

// ErrResponseTooLarge is returned when an outbound response exceeds maxResponseBytes.
var ErrResponseTooLarge = errors.New("response body exceeds 32 MiB")

const userAgent = "event-relay/1.0"

// RelayClient sends forward and callback requests.
type RelayClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracing    *telemetry.Tracing
}

// NewRelayClient creates a RelayClient with connection pooling and timeouts.
// TLS certificates are verified for every host except those listed in
// upstream.insecure_skip_verify_hosts. The metrics parameter is optional; pass
// nil to disable outbound metrics recording.
func NewRelayClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, tr *telemetry.Tracing) *RelayClient {
	if tr == nil {
		tr = telemetry.Disabled()
	}

	var rt http.RoundTripper = newTransport(cfg, false)
	if len(cfg.Upstream.InsecureSkipVerifyHosts) > 0 {
		rt = &hostTLSTransport{
			verified:   rt,
			unverified: newTransport(cfg, true),
			skip:       cfg.Upstream.SkipVerify,
		}
		logger.Warn("TLS verification disabled for listed hosts",
			"hosts", cfg.Upstream.InsecureSkipVerifyHosts,
		)
	}

	return &RelayClient{
		httpClient: &http.Client{
			Transport: rt,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		},
		logger:  logger.With("component", "relay_client"),
		metrics: m,
		tracing: tr,
	}
}

func newTransport(cfg *config.Config, skipVerify bool) *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: skipVerify, //nolint:gosec // only for hosts explicitly listed in config
		},
	}
}

// hostTLSTransport routes requests for allowlisted hosts through a transport
// that skips certificate verification. Redirects are routed per hop.
type hostTLSTransport struct {
	verified   http.RoundTripper
	unverified http.RoundTripper
	skip       func(host string) bool
}

func (t *hostTLSTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme == "https" && t.skip(req.URL.Hostname()) {
		return t.unverified.RoundTrip(req)
	}
	return t.verified.RoundTrip(req)
}

// Do executes one outbound call of the given kind (forward or callback) and
// buffers the response. A non-2xx status is not an error here; callers decide.
func (c *RelayClient) Do(ctx context.Context, kind, method, url string, header http.Header, body []byte) (*model.UpstreamResponse, error) {
	var reqBody io.Reader = http.NoBody
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", kind, err)
	}
	req.Header = header.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
		req.Header.Del("Host")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	c.logger.Debug("outbound request",
		"kind", kind,
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
	)

	req, span := c.tracing.StartClientSpan(req, kind)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start).Seconds()

	label := metrics.NormalizeMethod(req.Method)
	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(kind, label).Observe(duration)
	}

	if err != nil {
		telemetry.EndClientSpan(span, 0, err)
		if c.metrics != nil {
			c.metrics.UpstreamErrors.WithLabelValues(kind).Inc()
		}
		return nil, fmt.Errorf("%s request: %w", kind, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err == nil && len(data) > maxResponseBytes {
		err = ErrResponseTooLarge
	}
	if err != nil {
		telemetry.EndClientSpan(span, resp.StatusCode, err)
		if c.metrics != nil {
			c.metrics.UpstreamErrors.WithLabelValues(kind).Inc()
		}
		return nil, fmt.Errorf("read %s response: %w", kind, err)
	}

	telemetry.EndClientSpan(span, resp.StatusCode, nil)
	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.UpstreamResponses.WithLabelValues(kind, label, status).Inc()
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
