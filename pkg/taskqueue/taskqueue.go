package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/openmaraude/apitaxi/pkg/logger"
)

// Task is one unit of deferred work. The payload is opaque to the queue;
// consumers decode it by Type.
type Task struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Queue is a delayed task queue backed by a Redis sorted set: the score
// is the earliest time a task may run. Claiming removes the member, so
// with several workers polling the same key exactly one wins each task.
type Queue struct {
	rdb *redis.Client
	key string
	log *logger.Logger
}

// NewQueueParams wires the dependencies of Queue.
type NewQueueParams struct {
	Redis  *redis.Client
	Key    string
	Logger *logger.Logger
}

func NewQueue(params NewQueueParams) *Queue {
	key := params.Key
	if key == "" {
		key = "taskqueue"
	}
	return &Queue{
		rdb: params.Redis,
		key: key,
		log: params.Logger,
	}
}

// Enqueue schedules a task to become claimable at runAt.
func (q *Queue) Enqueue(ctx context.Context, taskType string, payload any, runAt time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal task payload: %w", err)
	}
	task := Task{
		ID:      uuid.NewString(),
		Type:    taskType,
		Payload: raw,
	}
	member, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return q.rdb.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(runAt.Unix()),
		Member: string(member),
	}).Err()
}

// Claim returns up to limit tasks due at or before now. A task is only
// returned to the caller that managed to remove it from the set.
func (q *Queue) Claim(ctx context.Context, now time.Time, limit int) ([]Task, error) {
	if limit <= 0 {
		return nil, nil
	}
	members, err := q.rdb.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "0",
		Max:   fmt.Sprintf("%d", now.Unix()),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(members))
	for _, member := range members {
		removed, err := q.rdb.ZRem(ctx, q.key, member).Result()
		if err != nil {
			return tasks, err
		}
		if removed == 0 {
			// Another worker claimed it first.
			continue
		}
		var task Task
		if err := json.Unmarshal([]byte(member), &task); err != nil {
			if q.log != nil {
				q.log.Warn(ctx, "dropping unreadable task")
			}
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Len returns the number of pending tasks, due or not.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, q.key).Result()
}
