package activity

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"
)

// Event is one runtime occurrence, such as a scope created or a digest
// settled, addressed by verb and object.
type Event struct {
	ID         string
	Verb       string
	ObjectType string
	ObjectID   string
	ParentID   string
	ActorID    string
	TenantID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Valid reports whether the event names a verb and an object.
func (e Event) Valid() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// NormalizeEvent returns a copy of event with trimmed identifiers, its own
// metadata map and a timestamp.
func NormalizeEvent(event Event) Event {
	for _, field := range []*string{
		&event.ID, &event.Verb, &event.ObjectType, &event.ObjectID,
		&event.ParentID, &event.ActorID, &event.TenantID, &event.Channel,
	} {
		*field = strings.TrimSpace(*field)
	}
	if len(event.Metadata) == 0 {
		event.Metadata = nil
	} else {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	return event
}

// Hook receives normalized events.
type Hook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, event Event) error

// Notify calls fn.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks notifies every hook it holds.
type Hooks []Hook

// Notify normalizes event once and hands it to each hook. Invalid events are
// dropped; hook errors are joined.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	event = NormalizeEvent(event)
	if len(h) == 0 || !event.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, hook := range h {
		if hook != nil {
			errs = errors.Join(errs, hook.Notify(ctx, event))
		}
	}
	return errs
}
