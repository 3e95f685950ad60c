package notify

import (
	"errors"
	"testing"
)

func TestRecorderDrain(t *testing.T) {
	rec := &Recorder{}

	Info(rec, "lists loaded")
	Error(rec, "failed to add task", errors.New("boom"))

	events := rec.Drain()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Level != LevelInfo || events[0].Message != "lists loaded" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].Level != LevelError || events[1].Err == nil {
		t.Errorf("unexpected second event: %+v", events[1])
	}

	if got := rec.Drain(); len(got) != 0 {
		t.Errorf("expected empty buffer after drain, got %d events", len(got))
	}
}

func TestNilNotifierIsNoOp(t *testing.T) {
	// Components are allowed to run without a notifier wired.
	Info(nil, "ignored")
	Error(nil, "ignored", errors.New("x"))
}
