package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"k": "v"}
	evt := Event{
		ID:         " evt ",
		Verb:       " scope.created ",
		ObjectType: " scope ",
		ObjectID:   " 42 ",
		ParentID:   " 41 ",
		ActorID:    " actor ",
		TenantID:   " tenant ",
		Channel:    " opular ",
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != "scope.created" || got.ObjectType != "scope" || got.ObjectID != "42" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ID != "evt" || got.ParentID != "41" || got.ActorID != "actor" || got.TenantID != "tenant" || got.Channel != "opular" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["k"] = "changed"
	if evt.Metadata["k"] != "v" {
		t.Fatalf("expected original metadata untouched: %+v", evt.Metadata)
	}
}

func TestHooksNotifyShortCircuitsMissingRequired(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	if err := hooks.Notify(context.Background(), Event{Verb: "scope.created"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events()) != 0 {
		t.Fatalf("expected no events captured, got %d", len(capture.Events()))
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, _ Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		capture,
		HookFunc(func(context.Context, Event) error { return boom1 }),
		nil,
		HookFunc(func(context.Context, Event) error { return boom2 }),
	}

	//nolint:staticcheck // nil context falls back to Background
	err := hooks.Notify(nil, Event{Verb: "digest.completed", ObjectType: "digest", ObjectID: "1"})
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if len(capture.Events()) != 1 {
		t.Fatalf("expected event to be captured once, got %d", len(capture.Events()))
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatalf("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), Event{Verb: "scope.created", ObjectType: "scope", ObjectID: "1"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events()) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true, ActorID: "cli", TenantID: "t1"})
	if err := enabled.Emit(context.Background(), Event{Verb: "scope.created", ObjectType: "scope", ObjectID: "1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	events := capture.Events()
	if len(events) != 1 {
		t.Fatalf("expected one event captured, got %d", len(events))
	}
	if events[0].Channel != DefaultChannel || events[0].ActorID != "cli" || events[0].TenantID != "t1" {
		t.Fatalf("expected defaults applied, got %+v", events[0])
	}
}

func TestEmitterPreservesExplicitFields(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default", ActorID: "cli"})
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := emitter.Emit(context.Background(), Event{
		Verb:       "scope.created",
		ObjectType: "scope",
		ObjectID:   "1",
		Channel:    "custom",
		ActorID:    "worker",
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	got := capture.Events()[0]
	if got.Channel != "custom" || got.ActorID != "worker" {
		t.Fatalf("expected explicit fields preserved, got %+v", got)
	}
	if !got.OccurredAt.Equal(at) {
		t.Fatalf("expected occurred_at preserved, got %v", got.OccurredAt)
	}
}

func TestBuildDigestEvent(t *testing.T) {
	ok := BuildDigestEvent(ScopeRef{ID: "root"}, DigestStats{Rounds: 2, Elapsed: 3 * time.Millisecond})
	if ok.Verb != VerbDigestCompleted || ok.ObjectType != ObjectDigest || ok.ObjectID != "root" {
		t.Fatalf("unexpected event: %+v", ok)
	}
	if ok.Metadata["rounds"] != 2 || ok.Metadata["duration_ms"] != 3.0 {
		t.Fatalf("unexpected metadata: %+v", ok.Metadata)
	}
	if ok.ID == "" {
		t.Fatalf("expected event id")
	}

	failed := BuildDigestEvent(ScopeRef{ID: "root"}, DigestStats{Err: errors.New("ttl")})
	if failed.Verb != VerbDigestFailed || failed.Metadata["error"] != "ttl" {
		t.Fatalf("unexpected failure event: %+v", failed)
	}
	if _, ok := failed.Metadata["rounds"]; ok {
		t.Fatalf("failed digest should not report rounds")
	}
}

func TestBuildScopeEventsMarkIsolation(t *testing.T) {
	evt := BuildScopeCreatedEvent(ScopeRef{ID: "c", ParentID: "p", Isolated: true})
	if evt.ParentID != "p" || evt.Metadata["isolated"] != true {
		t.Fatalf("unexpected scope event: %+v", evt)
	}
	if plain := BuildScopeDestroyedEvent(ScopeRef{ID: "c"}); plain.Metadata != nil {
		t.Fatalf("expected no metadata, got %+v", plain.Metadata)
	}
}
