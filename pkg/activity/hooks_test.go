package activity

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"k": "v"}
	evt := Event{
		Verb:       " create ",
		ActorID:    " actor ",
		TenantID:   " tenant ",
		ObjectType: " movie ",
		ObjectID:   " 42 ",
		Channel:    " business ",
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != "create" || got.ObjectType != "movie" || got.ObjectID != "42" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "actor" || got.TenantID != "tenant" || got.Channel != "business" {
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

func TestHooksNotifyDropsIncompleteEvents(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	if err := hooks.Notify(context.Background(), Event{Verb: "create", ObjectType: "movie"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events()) != 0 {
		t.Fatalf("expected no events captured, got %d", len(capture.Events()))
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	boom1, boom2 := errors.New("boom1"), errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		capture,
		HookFunc(func(context.Context, Event) error { return boom1 }),
		nil,
		HookFunc(func(context.Context, Event) error { return boom2 }),
	}

	//nolint:staticcheck // nil context falls back to Background.
	err := hooks.Notify(nil, Event{Verb: "update", ObjectType: "movie", ObjectID: "1"})
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
	event := Event{Verb: "create", ObjectType: "movie", ObjectID: "1"}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatalf("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events()) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true})
	if err := enabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	events := capture.Events()
	if len(events) != 1 || events[0].Channel != DefaultChannel {
		t.Fatalf("expected default channel applied, got %+v", events)
	}

	var nilEmitter *Emitter
	if nilEmitter.Enabled() || nilEmitter.Emit(context.Background(), event) != nil {
		t.Fatalf("expected nil emitter to be a no-op")
	}
}

func TestEmitterPreservesExplicitChannel(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default"})
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := emitter.Emit(context.Background(), Event{
		Verb:       "create",
		ObjectType: "movie",
		ObjectID:   "1",
		Channel:    "custom",
		OccurredAt: at,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	events := capture.Events()
	if events[0].Channel != "custom" || !events[0].OccurredAt.Equal(at) {
		t.Fatalf("expected explicit channel and time preserved, got %+v", events[0])
	}
}

func TestBuildRecordEvent(t *testing.T) {
	evt := BuildRecordEvent(VerbDelete, RecordEventInput{
		ActorID:  " actor ",
		Business: "movie",
		ObjectID: 7,
		Slug:     "heat",
		Metadata: map[string]any{"reason": "duplicate"},
	})

	if evt.Verb != VerbDelete || evt.ObjectType != "movie" || evt.ObjectID != "7" || evt.ActorID != "actor" {
		t.Fatalf("unexpected event: %+v", evt)
	}
	if evt.Metadata["slug"] != "heat" || evt.Metadata["business"] != "movie" || evt.Metadata["reason"] != "duplicate" {
		t.Fatalf("unexpected metadata: %+v", evt.Metadata)
	}

	for _, id := range []int64{0, -3} {
		unsaved := BuildRecordEvent(VerbCreate, RecordEventInput{Business: "movie", ObjectID: id})
		if unsaved.Complete() || unsaved.ObjectID != "" {
			t.Fatalf("expected event for id %d to be incomplete, got %+v", id, unsaved)
		}
	}
}

func TestCaptureHookVerbsAndReset(t *testing.T) {
	capture := &CaptureHook{}
	ctx := context.Background()
	for _, verb := range []string{VerbCreate, VerbUpdate} {
		_ = capture.Notify(ctx, Event{Verb: verb, ObjectType: "movie", ObjectID: "1"})
	}
	if got := capture.Verbs(); !slices.Equal(got, []string{"create", "update"}) {
		t.Fatalf("unexpected verbs: %v", got)
	}
	capture.Reset()
	if len(capture.Events()) != 0 {
		t.Fatalf("expected reset to clear events")
	}
}
