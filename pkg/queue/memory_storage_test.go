package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statekit/statekit/pkg/queue"
)

func newTask(q string, priority queue.Priority) *queue.Task {
	return &queue.Task{
		ID:          uuid.New(),
		Queue:       q,
		TaskName:    "test.task",
		Payload:     []byte(`{}`),
		Status:      queue.TaskStatusPending,
		Priority:    priority,
		MaxRetries:  2,
		ScheduledAt: time.Now().Add(-time.Second),
		CreatedAt:   time.Now(),
	}
}

func TestMemoryStorage_CreateTask(t *testing.T) {
	t.Parallel()

	ms := queue.NewMemoryStorage()
	ctx := context.Background()

	task := newTask("default", queue.PriorityDefault)
	require.NoError(t, ms.CreateTask(ctx, task))
	assert.Error(t, ms.CreateTask(ctx, task))
	assert.Error(t, ms.CreateTask(ctx, nil))
}

func TestMemoryStorage_ClaimTask(t *testing.T) {
	t.Parallel()

	t.Run("nothing to claim", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		_, err := ms.ClaimTask(context.Background(), uuid.New(), []string{"default"}, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
	})

	t.Run("highest priority first", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()
		low := newTask("default", queue.PriorityLow)
		high := newTask("default", queue.PriorityHigh)
		require.NoError(t, ms.CreateTask(ctx, low))
		require.NoError(t, ms.CreateTask(ctx, high))

		claimed, err := ms.ClaimTask(ctx, uuid.New(), []string{"default"}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, high.ID, claimed.ID)
		assert.Equal(t, queue.TaskStatusProcessing, claimed.Status)
		require.NotNil(t, claimed.LockedUntil)
	})

	t.Run("queue filter", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()
		require.NoError(t, ms.CreateTask(ctx, newTask("other", queue.PriorityDefault)))

		_, err := ms.ClaimTask(ctx, uuid.New(), []string{"default"}, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
	})

	t.Run("future tasks stay hidden", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()
		task := newTask("default", queue.PriorityDefault)
		task.ScheduledAt = time.Now().Add(time.Hour)
		require.NoError(t, ms.CreateTask(ctx, task))

		_, err := ms.ClaimTask(ctx, uuid.New(), []string{"default"}, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
	})

	t.Run("claimed task is locked", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()
		require.NoError(t, ms.CreateTask(ctx, newTask("default", queue.PriorityDefault)))

		_, err := ms.ClaimTask(ctx, uuid.New(), []string{"default"}, time.Minute)
		require.NoError(t, err)
		_, err = ms.ClaimTask(ctx, uuid.New(), []string{"default"}, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
	})

	t.Run("expired lock is reclaimed", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()
		task := newTask("default", queue.PriorityDefault)
		require.NoError(t, ms.CreateTask(ctx, task))

		_, err := ms.ClaimTask(ctx, uuid.New(), []string{"default"}, time.Millisecond)
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		reclaimed, err := ms.ClaimTask(ctx, uuid.New(), []string{"default"}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, task.ID, reclaimed.ID)
	})
}

func TestMemoryStorage_CompleteTask(t *testing.T) {
	t.Parallel()

	ms := queue.NewMemoryStorage()
	ctx := context.Background()
	task := newTask("default", queue.PriorityDefault)
	require.NoError(t, ms.CreateTask(ctx, task))

	require.NoError(t, ms.CompleteTask(ctx, task.ID))

	stored, ok := ms.Task(task.ID)
	require.True(t, ok)
	assert.Equal(t, queue.TaskStatusCompleted, stored.Status)
	assert.NotNil(t, stored.ProcessedAt)

	assert.ErrorIs(t, ms.CompleteTask(ctx, uuid.New()), queue.ErrTaskNotFound)
}

func TestMemoryStorage_FailTask(t *testing.T) {
	t.Parallel()

	t.Run("retries remain, back to pending", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()
		task := newTask("default", queue.PriorityDefault)
		require.NoError(t, ms.CreateTask(ctx, task))

		require.NoError(t, ms.FailTask(ctx, task.ID, "boom"))

		stored, ok := ms.Task(task.ID)
		require.True(t, ok)
		assert.Equal(t, queue.TaskStatusPending, stored.Status)
		assert.Equal(t, int8(1), stored.RetryCount)
		require.NotNil(t, stored.Error)
		assert.Equal(t, "boom", *stored.Error)
		// Backoff pushes the retry into the future.
		assert.True(t, stored.ScheduledAt.After(time.Now()))
	})

	t.Run("retries exhausted", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		ctx := context.Background()
		task := newTask("default", queue.PriorityDefault)
		task.MaxRetries = 1
		require.NoError(t, ms.CreateTask(ctx, task))

		require.NoError(t, ms.FailTask(ctx, task.ID, "boom"))
		require.NoError(t, ms.FailTask(ctx, task.ID, "boom again"))

		stored, ok := ms.Task(task.ID)
		require.True(t, ok)
		assert.Equal(t, queue.TaskStatusFailed, stored.Status)
	})
}

func TestMemoryStorage_MoveToDLQ(t *testing.T) {
	t.Parallel()

	ms := queue.NewMemoryStorage()
	ctx := context.Background()
	task := newTask("default", queue.PriorityDefault)
	require.NoError(t, ms.CreateTask(ctx, task))
	require.NoError(t, ms.FailTask(ctx, task.ID, "boom"))

	require.NoError(t, ms.MoveToDLQ(ctx, task.ID))

	_, ok := ms.Task(task.ID)
	assert.False(t, ok)

	dead := ms.DeadTasks()
	require.Len(t, dead, 1)
	assert.Equal(t, task.ID, dead[0].TaskID)
	assert.Equal(t, "boom", dead[0].Error)

	assert.ErrorIs(t, ms.MoveToDLQ(ctx, uuid.New()), queue.ErrTaskNotFound)
}
