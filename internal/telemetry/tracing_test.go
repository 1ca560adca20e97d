package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"event-relay/internal/config"
)

func newRecordingTracing() (*Tracing, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return NewWithProvider(tp), sr
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestNew_DisabledIsNoop(t *testing.T) {
	tr, err := New(&config.Config{}, "test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tr.Enabled() {
		t.Error("Enabled() = true, want false")
	}

	req := httptest.NewRequest(http.MethodPost, "http://target.example/a", http.NoBody)
	req, span := tr.StartClientSpan(req, "forward")
	EndClientSpan(span, http.StatusOK, nil)

	if got := req.Header.Get("Traceparent"); got != "" {
		t.Errorf("traceparent = %q, want no header when tracing is disabled", got)
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestStartClientSpan_InjectsTraceContext(t *testing.T) {
	tr, sr := newRecordingTracing()

	req := httptest.NewRequest(http.MethodPut, "http://user:pw@target.example/a?token=secret", http.NoBody)
	req, span := tr.StartClientSpan(req, "callback")
	EndClientSpan(span, http.StatusCreated, nil)

	if req.Header.Get("Traceparent") == "" {
		t.Error("expected traceparent header on outbound request")
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	s := spans[0]
	if s.Name() != "relay.callback" {
		t.Errorf("span name = %q, want %q", s.Name(), "relay.callback")
	}
	if v, ok := attrValue(s.Attributes(), "url.full"); !ok || v.AsString() != "http://target.example/a" {
		t.Errorf("url.full = %q, want credentials and query stripped", v.AsString())
	}
	if v, ok := attrValue(s.Attributes(), "http.response.status_code"); !ok || v.AsInt64() != http.StatusCreated {
		t.Errorf("http.response.status_code = %v, want %d", v.AsInt64(), http.StatusCreated)
	}
	if s.Status().Code == codes.Error {
		t.Errorf("status = %v, want not error for 201", s.Status())
	}
}

func TestEndClientSpan_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
	}{
		{"transport error", 0, errors.New("connection refused")},
		{"server error", http.StatusServiceUnavailable, nil},
		{"client error", http.StatusNotFound, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, sr := newRecordingTracing()
			req := httptest.NewRequest(http.MethodGet, "http://target.example/", http.NoBody)
			_, span := tr.StartClientSpan(req, "forward")
			EndClientSpan(span, tt.status, tt.err)

			spans := sr.Ended()
			if len(spans) != 1 {
				t.Fatalf("ended spans = %d, want 1", len(spans))
			}
			if spans[0].Status().Code != codes.Error {
				t.Errorf("status = %v, want error", spans[0].Status())
			}
		})
	}
}

func TestStartServerSpan_ContinuesIncomingTrace(t *testing.T) {
	tr, sr := newRecordingTracing()

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest(http.MethodPost, "/forwardEvent", http.NoBody)
	req.Header.Set("Traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")

	_, span := tr.StartServerSpan(req, "/forwardEvent")
	EndServerSpan(span, http.StatusInternalServerError)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if got := spans[0].SpanContext().TraceID().String(); got != traceID {
		t.Errorf("trace id = %s, want %s", got, traceID)
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want error for 500", spans[0].Status())
	}
}

func TestRedactURL(t *testing.T) {
	u, _ := url.Parse("https://a:b@host.example:8443/p/q?x=1#frag")
	if got, want := redactURL(u), "https://host.example:8443/p/q"; got != want {
		t.Errorf("redactURL() = %q, want %q", got, want)
	}
	if u.User == nil {
		t.Error("redactURL must not modify its argument")
	}
}
