package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/google/uuid"
	"github.com/statekit/statekit/pkg/redis"
)

const (
	redisKeyPrefix = "statekit:queue"

	// completed tasks are kept around briefly for inspection, then expire
	completedTaskTTL = 24 * time.Hour
)

// claimScript atomically requeues expired locks and claims the earliest
// due task from one queue. KEYS[1] is the pending zset, KEYS[2] the
// processing zset; ARGV[1] is now, ARGV[2] the lock deadline, both in
// unix milliseconds. Scores in the pending zset are due times, so claims
// are due-time ordered; priority breaks ties via the score's low bits.
var claimScript = goredis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, id in ipairs(expired) do
  redis.call('ZREM', KEYS[2], id)
  redis.call('ZADD', KEYS[1], ARGV[1], id)
end
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then
  return false
end
redis.call('ZREM', KEYS[1], ids[1])
redis.call('ZADD', KEYS[2], ARGV[2], ids[1])
return ids[1]
`)

// RedisStorage implements the queue repository interfaces on Redis. Tasks
// live as JSON values; per-queue sorted sets order pending work by due
// time and track processing locks by their expiry, which is what makes
// delivery at-least-once: a crashed worker's lock expires and the task is
// requeued by the next claim attempt.
type RedisStorage struct {
	client *goredis.Client
}

// NewRedisStorage connects to Redis using the redis package's retrying
// connector.
func NewRedisStorage(ctx context.Context, cfg redis.Config) (*RedisStorage, error) {
	client, err := redis.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &RedisStorage{client: client}, nil
}

// NewRedisStorageWithClient wraps an existing client.
func NewRedisStorageWithClient(client *goredis.Client) *RedisStorage {
	return &RedisStorage{client: client}
}

// Close releases the underlying client.
func (rs *RedisStorage) Close() error {
	return rs.client.Close()
}

func taskKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:task:%s", redisKeyPrefix, id)
}

func pendingKey(queue string) string {
	return fmt.Sprintf("%s:pending:%s", redisKeyPrefix, queue)
}

func processingKey(queue string) string {
	return fmt.Sprintf("%s:processing:%s", redisKeyPrefix, queue)
}

func dlqKey() string {
	return redisKeyPrefix + ":dlq"
}

// pendingScore orders pending members by due time, with priority breaking
// ties: higher priority sorts lower within the same millisecond.
func pendingScore(scheduledAt time.Time, priority Priority) float64 {
	return float64(scheduledAt.UnixMilli()*1000 + int64(PriorityMax-priority))
}

// CreateTask implements EnqueuerRepository.
func (rs *RedisStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.ID, err)
	}

	pipe := rs.client.TxPipeline()
	pipe.Set(ctx, taskKey(task.ID), raw, 0)
	pipe.ZAdd(ctx, pendingKey(task.Queue), goredis.Z{
		Score:  pendingScore(task.ScheduledAt, task.Priority),
		Member: task.ID.String(),
	})
	_, err = pipe.Exec(ctx)
	return err
}

// ClaimTask implements WorkerRepository. Queues are tried in the given
// order; the first due task wins.
func (rs *RedisStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	now := time.Now()
	until := now.Add(lockDuration)

	for _, queue := range queues {
		res, err := claimScript.Run(ctx, rs.client,
			[]string{pendingKey(queue), processingKey(queue)},
			now.UnixMilli(), until.UnixMilli()).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("claim from queue %q: %w", queue, err)
		}

		id, err := uuid.Parse(res.(string))
		if err != nil {
			return nil, fmt.Errorf("claimed malformed task id %q: %w", res, err)
		}

		task, err := rs.getTask(ctx, id)
		if err != nil {
			return nil, err
		}
		task.Status = TaskStatusProcessing
		task.LockedUntil = &until
		task.LockedBy = &workerID
		if err := rs.putTask(ctx, task, 0); err != nil {
			return nil, err
		}
		return task, nil
	}

	return nil, ErrNoTaskToClaim
}

// CompleteTask implements WorkerRepository.
func (rs *RedisStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	task, err := rs.getTask(ctx, taskID)
	if err != nil {
		return err
	}

	now := time.Now()
	task.Status = TaskStatusCompleted
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil

	pipe := rs.client.TxPipeline()
	pipe.ZRem(ctx, processingKey(task.Queue), taskID.String())
	raw, merr := json.Marshal(task)
	if merr != nil {
		return fmt.Errorf("marshal task %s: %w", taskID, merr)
	}
	pipe.Set(ctx, taskKey(taskID), raw, completedTaskTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// FailTask implements WorkerRepository: records the error, increments the
// retry count and requeues with a linear backoff while retries remain.
func (rs *RedisStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	task, err := rs.getTask(ctx, taskID)
	if err != nil {
		return err
	}

	task.RetryCount++
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	pipe := rs.client.TxPipeline()
	pipe.ZRem(ctx, processingKey(task.Queue), taskID.String())

	if task.RetryCount <= task.MaxRetries {
		task.Status = TaskStatusPending
		task.ScheduledAt = time.Now().Add(time.Duration(task.RetryCount) * time.Second)
		pipe.ZAdd(ctx, pendingKey(task.Queue), goredis.Z{
			Score:  pendingScore(task.ScheduledAt, task.Priority),
			Member: taskID.String(),
		})
	} else {
		task.Status = TaskStatusFailed
	}

	raw, merr := json.Marshal(task)
	if merr != nil {
		return fmt.Errorf("marshal task %s: %w", taskID, merr)
	}
	pipe.Set(ctx, taskKey(taskID), raw, 0)
	_, err = pipe.Exec(ctx)
	return err
}

// MoveToDLQ implements WorkerRepository.
func (rs *RedisStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	task, err := rs.getTask(ctx, taskID)
	if err != nil {
		return err
	}

	errMsg := ""
	if task.Error != nil {
		errMsg = *task.Error
	}
	dead := DeadTask{
		ID:         uuid.New(),
		TaskID:     task.ID,
		Queue:      task.Queue,
		TaskName:   task.TaskName,
		Payload:    task.Payload,
		Priority:   task.Priority,
		Error:      errMsg,
		RetryCount: task.RetryCount,
		FailedAt:   time.Now(),
		CreatedAt:  task.CreatedAt,
	}
	raw, err := json.Marshal(dead)
	if err != nil {
		return fmt.Errorf("marshal dead task %s: %w", taskID, err)
	}

	pipe := rs.client.TxPipeline()
	pipe.LPush(ctx, dlqKey(), raw)
	pipe.ZRem(ctx, pendingKey(task.Queue), taskID.String())
	pipe.ZRem(ctx, processingKey(task.Queue), taskID.String())
	pipe.Del(ctx, taskKey(taskID))
	_, err = pipe.Exec(ctx)
	return err
}

func (rs *RedisStorage) getTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	raw, err := rs.client.Get(ctx, taskKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}

	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", id, err)
	}
	return &task, nil
}

func (rs *RedisStorage) putTask(ctx context.Context, task *Task, ttl time.Duration) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.ID, err)
	}
	return rs.client.Set(ctx, taskKey(task.ID), raw, ttl).Err()
}
