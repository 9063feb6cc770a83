package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statekit/statekit/pkg/dispatch"
	"github.com/statekit/statekit/pkg/queue"
)

type storedEntity struct {
	id         string
	entityType string
	variant    string
	state      string
}

func (e *storedEntity) ID() string         { return e.id }
func (e *storedEntity) EntityType() string { return e.entityType }
func (e *storedEntity) Variant() string    { return e.variant }
func (e *storedEntity) State() string      { return e.state }

type mockEntityLoader struct {
	entity  *storedEntity
	getErr  error
	saveErr error
	saved   bool
}

func (m *mockEntityLoader) Get(ctx context.Context, entityType, id string) (dispatch.Entity, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.entity, nil
}

func (m *mockEntityLoader) Save(ctx context.Context, e dispatch.Entity) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = true
	return nil
}

func rawTask(t *testing.T, p dispatch.TaskPayload) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

func TestNewTransitionTaskHandler(t *testing.T) {
	t.Parallel()

	payload := dispatch.TaskPayload{
		EntityType: "order",
		EntityID:   "42",
		Trigger:    "submit",
		ActorID:    "alice",
		Payload:    map[string]any{"note": "rush"},
	}

	t.Run("name matches the enqueued task name", func(t *testing.T) {
		t.Parallel()

		h := queue.NewTransitionTaskHandler(&mockEntityLoader{}, dispatch.NewRegistry())
		assert.Equal(t, "dispatch.TaskPayload", h.Name())
	})

	t.Run("runs the background action and saves", func(t *testing.T) {
		t.Parallel()

		var got dispatch.Event
		registry := dispatch.NewRegistry()
		require.NoError(t, registry.Register("order", "", dispatch.ActionSet{
			Background: map[string]dispatch.BackgroundAction{
				"submit": func(ctx context.Context, e dispatch.Entity, ev dispatch.Event) error {
					got = ev
					return nil
				},
			},
		}))

		loader := &mockEntityLoader{entity: &storedEntity{id: "42", entityType: "order", state: "submitted"}}
		h := queue.NewTransitionTaskHandler(loader, registry)

		require.NoError(t, h.Handle(context.Background(), rawTask(t, payload)))
		assert.True(t, loader.saved)
		assert.Equal(t, "submit", got.Trigger)
		assert.Equal(t, "alice", got.ActorID)
		// The event reflects the entity's persisted state at processing time.
		assert.Equal(t, "submitted", got.Dest)
		assert.Equal(t, map[string]any{"note": "rush"}, got.Payload)
	})

	t.Run("missing action is a no-op", func(t *testing.T) {
		t.Parallel()

		loader := &mockEntityLoader{entity: &storedEntity{id: "42", entityType: "order", state: "submitted"}}
		h := queue.NewTransitionTaskHandler(loader, dispatch.NewRegistry())

		require.NoError(t, h.Handle(context.Background(), rawTask(t, payload)))
		assert.False(t, loader.saved)
	})

	t.Run("load failure propagates", func(t *testing.T) {
		t.Parallel()

		loader := &mockEntityLoader{getErr: errors.New("row not found")}
		h := queue.NewTransitionTaskHandler(loader, dispatch.NewRegistry())
		assert.Error(t, h.Handle(context.Background(), rawTask(t, payload)))
	})

	t.Run("action failure propagates for retry", func(t *testing.T) {
		t.Parallel()

		registry := dispatch.NewRegistry()
		require.NoError(t, registry.Register("order", "", dispatch.ActionSet{
			Background: map[string]dispatch.BackgroundAction{
				"submit": func(ctx context.Context, e dispatch.Entity, ev dispatch.Event) error {
					return errors.New("webhook timeout")
				},
			},
		}))

		loader := &mockEntityLoader{entity: &storedEntity{id: "42", entityType: "order", state: "submitted"}}
		h := queue.NewTransitionTaskHandler(loader, registry)

		assert.Error(t, h.Handle(context.Background(), rawTask(t, payload)))
		assert.False(t, loader.saved)
	})
}
