// Package notify decouples user-facing notifications from any particular
// presentation. Components emit structured events; the CLI logs them, a
// richer frontend can render them however it likes.
package notify

import (
	"log/slog"
	"sync"
)

// Level classifies a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Event is a single user-facing notification.
type Event struct {
	Level   Level
	Message string
	Err     error
}

// Notifier receives events from components.
type Notifier interface {
	Notify(Event)
}

// Log is a Notifier backed by slog. It is the default sink in the CLI.
type Log struct{}

// Notify logs the event at the matching slog level.
func (Log) Notify(e Event) {
	switch e.Level {
	case LevelError:
		slog.Error(e.Message, "error", e.Err)
	case LevelWarn:
		slog.Warn(e.Message, "error", e.Err)
	default:
		slog.Info(e.Message)
	}
}

// Recorder buffers events in memory. Used by tests and suitable for an
// interactive frontend that drains events on each render.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Notify appends the event to the buffer.
func (r *Recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Drain returns all buffered events and clears the buffer.
func (r *Recorder) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

// Info emits an informational event to n. A nil Notifier is a no-op.
func Info(n Notifier, msg string) {
	if n == nil {
		return
	}
	n.Notify(Event{Level: LevelInfo, Message: msg})
}

// Error emits an error event to n. A nil Notifier is a no-op.
func Error(n Notifier, msg string, err error) {
	if n == nil {
		return
	}
	n.Notify(Event{Level: LevelError, Message: msg, Err: err})
}
