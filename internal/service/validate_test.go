package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"event-relay/internal/model"
)

func strPtr(s string) *string { return &s }

func callerID(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func TestValidate_MissingURL(t *testing.T) {
	tests := []struct {
		name string
		req  *model.ForwardEventRequest
	}{
		{"nil request", nil},
		{"empty request", &model.ForwardEventRequest{}},
		{"other fields only", &model.ForwardEventRequest{
			UseBody:    json.RawMessage(`{"x":1}`),
			UseRequest: "PUT",
			UseID:      callerID("acct-1"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.req)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if ve.Field != "url" {
				t.Errorf("Field = %q, want %q", ve.Field, "url")
			}
			if ve.Error() != "Missing required field: 'url'" {
				t.Errorf("Error() = %q", ve.Error())
			}
		})
	}
}

func TestValidate_Defaults(t *testing.T) {
	d, err := Validate(&model.ForwardEventRequest{URL: "http://svc/a"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if d.TargetURL != "http://svc/a" {
		t.Errorf("TargetURL = %q", d.TargetURL)
	}
	if d.Method != http.MethodPost {
		t.Errorf("Method = %q, want POST", d.Method)
	}
	if d.Headers == nil || len(d.Headers) != 0 {
		t.Errorf("Headers = %v, want empty non-nil map", d.Headers)
	}
	if d.Body != nil {
		t.Errorf("Body = %s, want absent", d.Body)
	}
	if d.CallerID != nil {
		t.Errorf("CallerID = %s, want nil", d.CallerID)
	}
	if d.ReturnAddress != "" {
		t.Errorf("ReturnAddress = %q, want empty", d.ReturnAddress)
	}
}

func TestValidate_Method(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"GET", http.MethodGet},
		{"get", http.MethodGet},
		{"PUT", http.MethodPut},
		{" put ", http.MethodPut},
		{"POST", http.MethodPost},
		{"", http.MethodPost},
		{"DELETE", http.MethodPost},
		{"PATCH", http.MethodPost},
		{"bogus", http.MethodPost},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := Validate(&model.ForwardEventRequest{URL: "http://svc/a", UseRequest: tt.in})
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if d.Method != tt.want {
				t.Errorf("Method = %q, want %q", d.Method, tt.want)
			}
		})
	}
}

func TestValidate_Body(t *testing.T) {
	tests := []struct {
		name string
		in   json.RawMessage
		want string
	}{
		{"object", json.RawMessage(`{"x":1}`), `{"x":1}`},
		{"empty object", json.RawMessage(`{}`), `{}`},
		{"string", json.RawMessage(`"hello"`), `"hello"`},
		{"null is absent", json.RawMessage(`null`), ""},
		{"missing is absent", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Validate(&model.ForwardEventRequest{URL: "http://svc/a", UseBody: tt.in})
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if string(d.Body) != tt.want {
				t.Errorf("Body = %q, want %q", d.Body, tt.want)
			}
		})
	}
}

func TestValidate_DoesNotAliasInput(t *testing.T) {
	req := &model.ForwardEventRequest{
		URL:              "http://svc/a",
		UseBody:          json.RawMessage(`{"x":1}`),
		UseHeaders:       map[string]string{"X-Trace": "1"},
		UseID:            callerID("acct-1"),
		UseReturnAddress: strPtr("http://cb/x"),
	}

	d, err := Validate(req)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	req.UseHeaders["X-Trace"] = "changed"
	req.UseBody[1] = '!'

	if d.Headers["X-Trace"] != "1" {
		t.Errorf("Headers aliased input: %v", d.Headers)
	}
	if string(d.Body) != `{"x":1}` {
		t.Errorf("Body aliased input: %s", d.Body)
	}
	if d.ReturnAddress != "http://cb/x" {
		t.Errorf("ReturnAddress = %q", d.ReturnAddress)
	}
	if string(d.CallerID) != `"acct-1"` {
		t.Errorf("CallerID = %s, want \"acct-1\"", d.CallerID)
	}
}

func TestValidate_EmptyReturnAddressIsAbsent(t *testing.T) {
	d, err := Validate(&model.ForwardEventRequest{URL: "http://svc/a", UseReturnAddress: strPtr("")})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if d.ReturnAddress != "" {
		t.Errorf("ReturnAddress = %q, want empty", d.ReturnAddress)
	}
}
