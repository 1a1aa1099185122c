package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/openspec-viewer/openspec"
)

func TestFromEvent(t *testing.T) {
	ev := &openspec.ChangeEvent{
		Type:           openspec.EventChange,
		Path:           "/root/specs/auth/spec.md",
		AffectedEntity: openspec.EntitySpecs,
		EntityID:       "auth",
	}

	n := FromEvent(ev, 7)

	assert.Equal(t, openspec.EntitySpecs, n.AffectedEntity)
	assert.Equal(t, "auth", n.EntityID)
	assert.Equal(t, openspec.EventChange, n.EventType)
	assert.Equal(t, uint64(7), n.Generation)
	assert.False(t, n.Timestamp.IsZero())

	full := FromEvent(nil, 1)
	assert.Equal(t, openspec.EntityAll, full.AffectedEntity)
	assert.Empty(t, full.EntityID)
}

func TestSubject(t *testing.T) {
	tests := []struct {
		name string
		n    Notification
		want string
	}{
		{"project", Notification{AffectedEntity: openspec.EntityProject}, "openspec.changed.project"},
		{"spec", Notification{AffectedEntity: openspec.EntitySpecs, EntityID: "auth"}, "openspec.changed.specs.auth"},
		{"dotted id", Notification{AffectedEntity: openspec.EntityChanges, EntityID: "v1.2 release"}, "openspec.changed.changes.v1_2_release"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Subject(DefaultSubjectPrefix, tt.n))
		})
	}
}

func TestFunc(t *testing.T) {
	var got []Notification
	var n Notifier = Func(func(_ context.Context, n Notification) error {
		got = append(got, n)
		return nil
	})

	require.NoError(t, n.Notify(context.Background(), Notification{AffectedEntity: openspec.EntityProject}))
	require.NoError(t, n.Close())
	assert.Len(t, got, 1)
}

func TestNewNATSNotifier_Unreachable(t *testing.T) {
	_, err := NewNATSNotifier("nats://127.0.0.1:1", "", nil)
	assert.Error(t, err)
}
