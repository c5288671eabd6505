package goClerk

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goClerk/internal/fapitest"
	"github.com/MrEthical07/goClerk/keychain"
	"github.com/MrEthical07/goClerk/resource"
)

func withAudit(sink AuditSink) func(*Config, *Builder) {
	return func(c *Config, b *Builder) {
		c.Audit.Enabled = true
		c.Audit.BufferSize = 256
		b.WithAuditSink(sink)
	}
}

// drainAudit closes the engine so buffered events are flushed, then returns
// everything the sink received.
func drainAudit(e *Engine, sink *ChannelSink) []AuditEvent {
	e.Close()
	var out []AuditEvent
	for {
		select {
		case ev := <-sink.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func findEvent(events []AuditEvent, eventType string) (AuditEvent, bool) {
	for _, ev := range events {
		if ev.EventType == eventType {
			return ev, true
		}
	}
	return AuditEvent{}, false
}

func TestAuditSignUpEvents(t *testing.T) {
	sink := NewChannelSink(256)
	te := newTestEngine(t, fapitest.Options{}, withAudit(sink))
	ctx := WithAuditTag(context.Background(), "request_id", "req-1")

	flow := te.SignUp()
	if _, err := flow.Create(ctx, resource.SignUpCreateParams{EmailAddress: testEmail}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := flow.PrepareVerification(ctx, resource.EmailCode); err != nil {
		t.Fatalf("PrepareVerification: %v", err)
	}
	if _, err := flow.AttemptVerification(ctx, resource.EmailCode, fapitest.DefaultCode); err != nil {
		t.Fatalf("AttemptVerification: %v", err)
	}
	events := drainAudit(te.Engine, sink)

	created, ok := findEvent(events, auditEventSignUpCreate)
	if !ok {
		t.Fatalf("missing %s event in %+v", auditEventSignUpCreate, events)
	}
	if !created.Success || created.ResourceID == "" || created.ClientID == "" {
		t.Fatalf("unexpected create event %+v", created)
	}
	if created.Metadata["request_id"] != "req-1" || created.Metadata["status"] != string(resource.SignUpNeedsVerification) {
		t.Fatalf("unexpected create metadata %v", created.Metadata)
	}

	complete, ok := findEvent(events, auditEventSignUpComplete)
	if !ok {
		t.Fatal("missing sign-up complete event")
	}
	if complete.Metadata["session_id"] == "" {
		t.Fatalf("complete event without session id: %v", complete.Metadata)
	}
	if _, ok := findEvent(events, auditEventDeviceTokenRotated); !ok {
		t.Fatal("missing device token rotation event")
	}
	for _, ev := range events {
		for k, v := range ev.Metadata {
			if v == fapitest.DefaultCode {
				t.Fatalf("event %s leaks the verification code in %q", ev.EventType, k)
			}
		}
	}
}

func TestAuditFailureCarriesErrorCode(t *testing.T) {
	sink := NewChannelSink(256)
	te := newTestEngine(t, fapitest.Options{}, withAudit(sink))
	ctx := context.Background()

	flow := te.SignUp()
	if _, err := flow.Create(ctx, resource.SignUpCreateParams{EmailAddress: testEmail}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := flow.PrepareVerification(ctx, resource.EmailCode); err != nil {
		t.Fatalf("PrepareVerification: %v", err)
	}
	if _, err := flow.AttemptVerification(ctx, resource.EmailCode, "000000"); err == nil {
		t.Fatal("expected an error for the wrong code")
	}
	events := drainAudit(te.Engine, sink)

	attempt, ok := findEvent(events, auditEventSignUpAttempt)
	if !ok {
		t.Fatal("missing attempt event")
	}
	if attempt.Success || attempt.Error != string(auditErrInvalidRequest) {
		t.Fatalf("unexpected attempt event %+v", attempt)
	}
	if attempt.Metadata["api_error_code"] != "form_code_incorrect" {
		t.Fatalf("api error code missing: %v", attempt.Metadata)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	sink := NewChannelSink(16)
	te := newTestEngine(t, fapitest.Options{}, func(_ *Config, b *Builder) {
		b.WithAuditSink(sink)
	})

	if _, err := te.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if events := drainAudit(te.Engine, sink); len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
	if te.AuditDropped() != 0 {
		t.Fatal("disabled audit must not count drops")
	}
}

type failingKeychain struct {
	*keychain.Memory
}

func (failingKeychain) Set(context.Context, string, string) error {
	return errors.New("keychain locked")
}

func TestAuditKeychainWriteFailure(t *testing.T) {
	sink := NewChannelSink(256)
	srv := fapitest.New(fapitest.Options{})
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	e, err := New().
		WithConfig(cfg).
		WithKeychain(failingKeychain{Memory: keychain.NewMemory()}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load must succeed despite keychain failure: %v", err)
	}
	if got := e.MetricsSnapshot().Counters[MetricKeychainWriteFailure]; got == 0 {
		t.Fatal("keychain write failure not counted")
	}

	events := drainAudit(e, sink)
	ev, ok := findEvent(events, auditEventKeychainFailure)
	if !ok {
		t.Fatalf("missing keychain failure event in %+v", events)
	}
	if ev.Success || ev.Error != string(auditErrKeychain) || ev.Metadata["op"] != "write" {
		t.Fatalf("unexpected keychain event %+v", ev)
	}
}

func TestAuditErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want AuditErrorCode
	}{
		{"nil", nil, ""},
		{"precondition", newClientError(ErrSignUpNotStarted, "x"), auditErrPrecondition},
		{"closed", ErrEngineClosed, auditErrEngineClosed},
		{"timeout", ErrTimeout, auditErrTimeout},
		{"circuit", ErrCircuitOpen, auditErrCircuitOpen},
		{"canceled", context.Canceled, auditErrCanceled},
		{"unauthorized", &APIError{Status: 401, Code: "session_not_active"}, auditErrUnauthorized},
		{"invalid", &APIError{Status: 422, Code: "form_code_incorrect"}, auditErrInvalidRequest},
		{"api", &APIError{Status: 429, Code: "too_many_requests"}, auditErrAPI},
		{"status", &StatusError{StatusCode: 502}, auditErrStatus},
		{"keychain", errKeychain, auditErrKeychain},
		{"transport", errors.New("connection refused"), auditErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := auditErrorCode(tt.err); got != tt.want {
				t.Fatalf("auditErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
