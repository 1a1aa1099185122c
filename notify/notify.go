// Package notify fans out change notifications produced after each refresh
// of an OpenSpec snapshot.
package notify

import (
	"context"
	"time"

	"github.com/c360studio/openspec-viewer/openspec"
)

// Notification tells subscribers which slice of the model was refreshed.
type Notification struct {
	AffectedEntity openspec.Entity    `json:"affectedEntity"`
	EntityID       string             `json:"entityId,omitempty"`
	EventType      openspec.EventType `json:"eventType,omitempty"`
	Path           string             `json:"path,omitempty"`
	Generation     uint64             `json:"generation"`
	Timestamp      time.Time          `json:"timestamp"`
}

// FromEvent builds the notification for a classified filesystem event. A nil
// event means the whole tree was reloaded.
func FromEvent(ev *openspec.ChangeEvent, generation uint64) Notification {
	n := Notification{
		AffectedEntity: openspec.EntityAll,
		Generation:     generation,
		Timestamp:      time.Now(),
	}
	if ev != nil {
		n.AffectedEntity = ev.AffectedEntity
		n.EntityID = ev.EntityID
		n.EventType = ev.Type
		n.Path = ev.Path
	}
	return n
}

// Notifier delivers notifications to one destination.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
	Close() error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, n Notification) error

// Notify calls f.
func (f Func) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Close is a no-op.
func (f Func) Close() error {
	return nil
}
