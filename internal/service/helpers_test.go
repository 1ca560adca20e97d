package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"event-relay/internal/config"
	"event-relay/internal/model"
)

// recordedCall is one call seen by fakeDoer.
type recordedCall struct {
	Kind   string
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// fakeDoer answers outbound calls from a per-kind handler and records them.
type fakeDoer struct {
	mu      sync.Mutex
	calls   []recordedCall
	respond func(kind string) (*model.UpstreamResponse, error)
}

func (f *fakeDoer) Do(_ context.Context, kind, method, url string, header http.Header, body []byte) (*model.UpstreamResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Kind: kind, Method: method, URL: url, Header: header.Clone(), Body: body})
	f.mu.Unlock()
	return f.respond(kind)
}

func (f *fakeDoer) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func okResponse(status int, body string) func(string) (*model.UpstreamResponse, error) {
	return func(string) (*model.UpstreamResponse, error) {
		return &model.UpstreamResponse{StatusCode: status, Body: []byte(body)}, nil
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{TimeoutSeconds: 10, IdleConnections: 10},
		Relay:    config.RelayConfig{MaxConcurrent: 4, QueueTimeoutSeconds: 1},
		Callback: config.CallbackConfig{Envelope: config.EnvelopeSignal},
	}
}
