package authsession

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
)

func collectAudit(t *testing.T, sink *ChannelSink, env *testEnv) []AuditEvent {
	t.Helper()
	env.engine.Close()

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

func TestAuditLifecycle(t *testing.T) {
	sink := NewChannelSink(64)
	env := newTestEnv(t, func(b *Builder, cfg *Config) {
		cfg.Audit.Enabled = true
		b.WithAuditSink(sink)
	})
	env.api.accept = func(token string) bool { return token == "A2" }
	env.login(t)

	if _, err := env.engine.Do(context.Background(), NewRequest(http.MethodGet, "/items", nil)); err != nil {
		t.Fatal(err)
	}
	env.engine.Terminate(errors.New("logout"))

	events := collectAudit(t, sink, env)
	var types []string
	for _, ev := range events {
		types = append(types, ev.EventType)
	}
	want := "session_started,refresh_success,request_replayed,session_terminated"
	if got := strings.Join(types, ","); got != want {
		t.Fatalf("events = %s, want %s", got, want)
	}

	refresh := events[1]
	if refresh.Trigger != "reactive" || refresh.CycleID == "" || refresh.Epoch != 1 {
		t.Fatalf("unexpected refresh event %+v", refresh)
	}
	if refresh.Metadata["rotated"] != "true" {
		t.Fatalf("expected rotated metadata, got %v", refresh.Metadata)
	}
	if events[2].RequestID == "" {
		t.Fatal("replay event must carry the request ID")
	}
	for i, ev := range events {
		if ev.Seq != uint64(i+1) || !ev.Timestamp.Equal(t0) {
			t.Fatalf("event %d: seq=%d at %v, want seq %d stamped by the engine clock", i, ev.Seq, ev.Timestamp, i+1)
		}
	}
	for _, ev := range events {
		for _, v := range ev.Metadata {
			if strings.HasPrefix(v, "A") || strings.HasPrefix(v, "R") {
				t.Fatalf("audit metadata leaked a token: %v", ev.Metadata)
			}
		}
	}
}

func TestAuditRefreshFailureCode(t *testing.T) {
	sink := NewChannelSink(64)
	env := newTestEnv(t, func(b *Builder, cfg *Config) {
		cfg.Audit.Enabled = true
		b.WithAuditSink(sink)
	})
	env.login(t)
	env.ex.err = errors.New("boom")

	if _, err := env.engine.Refresh(context.Background()); err == nil {
		t.Fatal("expected failure")
	}

	events := collectAudit(t, sink, env)
	var failure *AuditEvent
	for i := range events {
		if events[i].EventType == "refresh_failure" {
			failure = &events[i]
		}
	}
	if failure == nil || failure.Success || failure.Error != "refresh_transport" || failure.Trigger != "manual" {
		t.Fatalf("unexpected failure event %+v", failure)
	}
}

func TestAuditErrorCodes(t *testing.T) {
	cases := map[error]AuditErrorCode{
		ErrNoSession:           "no_session",
		ErrRefreshTokenExpired: "refresh_expired",
		ErrUnauthenticated:     "unauthenticated",
		ErrRequestAuth:         "request_rejected",
		ErrSessionSuperseded:   "superseded",
		errors.New("other"):    "internal_error",
	}
	for err, want := range cases {
		if got := auditErrorCode(err); got != want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", err, got, want)
		}
	}
	if auditErrorCode(nil) != "" {
		t.Fatal("nil error must have no code")
	}
}
