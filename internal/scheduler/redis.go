// internal/scheduler/redis.go implements a durable delayed-task scheduler on
// top of Redis. Tasks live in a sorted set scored by their fire time, with the
// serialized payload in a companion hash. Game state transitions survive a
// server restart as long as Redis does.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sixelasacul/friend-blind-test/internal/game"
)

const (
	dueKey     = "blindtest:sched:due"
	payloadKey = "blindtest:sched:tasks"

	pollInterval = 200 * time.Millisecond
)

// Handler receives a task that has come due. It is the engine's transition
// dispatch in production.
type Handler func(ctx context.Context, transition game.Transition, payload game.TaskPayload)

type storedTask struct {
	Transition game.Transition  `json:"transition"`
	Payload    game.TaskPayload `json:"payload"`
}

// redisClient is the slice of the go-redis API the scheduler touches.
type redisClient interface {
	TxPipeline() redis.Pipeliner
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
}

// RedisScheduler satisfies game.Scheduler. A single dispatcher loop (Run)
// claims due tasks; ZREM is the claim, so concurrent dispatchers never fire
// the same task twice.
type RedisScheduler struct {
	rdb     redisClient
	handler Handler
	log     *logrus.Logger
}

// Connect initializes a Redis client and verifies the connection.
func Connect(addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// New constructs a RedisScheduler. The handler is attached later with
// SetHandler because the engine and the scheduler reference each other.
func New(rdb *redis.Client, log *logrus.Logger) *RedisScheduler {
	return &RedisScheduler{rdb: rdb, log: log}
}

// SetHandler wires the dispatch target. Call before Run.
func (s *RedisScheduler) SetHandler(h Handler) {
	s.handler = h
}

// Schedule enqueues a transition to fire after delay and returns an opaque
// handle usable with Cancel.
func (s *RedisScheduler) Schedule(ctx context.Context, delay time.Duration, transition game.Transition, payload game.TaskPayload) (string, error) {
	id := uuid.Must(uuid.NewV7()).String()

	data, err := json.Marshal(storedTask{Transition: transition, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("failed to marshal scheduled task: %w", err)
	}

	fireAt := time.Now().Add(delay).UnixMilli()
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, payloadKey, id, data)
	pipe.ZAdd(ctx, dueKey, redis.Z{Score: float64(fireAt), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to enqueue task %s: %w", id, err)
	}
	return id, nil
}

// Cancel removes a pending task. Canceling a task that already fired or was
// never scheduled is a no-op.
func (s *RedisScheduler) Cancel(ctx context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	pipe := s.rdb.TxPipeline()
	pipe.ZRem(ctx, dueKey, handle)
	pipe.HDel(ctx, payloadKey, handle)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cancel task %s: %w", handle, err)
	}
	return nil
}

// Run polls for due tasks until ctx is canceled. Each claimed task is
// dispatched on its own goroutine so a slow transition cannot delay the rest.
func (s *RedisScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

func (s *RedisScheduler) dispatchDue(ctx context.Context) {
	now := time.Now().UnixMilli()
	ids, err := s.rdb.ZRangeByScore(ctx, dueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now, 10),
	}).Result()
	if err != nil {
		s.log.WithError(err).Warn("scheduler: failed to read due tasks")
		return
	}

	for _, id := range ids {
		removed, err := s.rdb.ZRem(ctx, dueKey, id).Result()
		if err != nil {
			s.log.WithError(err).WithField("task_id", id).Warn("scheduler: failed to claim task")
			continue
		}
		if removed == 0 {
			// Another dispatcher claimed it first.
			continue
		}

		raw, err := s.rdb.HGet(ctx, payloadKey, id).Result()
		if err == redis.Nil {
			// Canceled between the claim and the read.
			continue
		}
		if err != nil {
			// Keep the payload and put the claim back so the task retries on
			// a later tick instead of being lost to a transient read failure.
			s.rdb.ZAdd(ctx, dueKey, redis.Z{Score: float64(now), Member: id})
			s.log.WithError(err).WithField("task_id", id).Warn("scheduler: failed to read task payload")
			continue
		}

		var task storedTask
		if err := json.Unmarshal([]byte(raw), &task); err != nil {
			// Undecodable payloads are garbage; drop them.
			s.rdb.HDel(ctx, payloadKey, id)
			s.log.WithError(err).WithField("task_id", id).Warn("scheduler: failed to decode task payload")
			continue
		}
		s.rdb.HDel(ctx, payloadKey, id)

		s.log.WithFields(logrus.Fields{
			"task_id":    id,
			"transition": task.Transition,
		}).Debug("scheduler: dispatching task")
		go s.handler(context.Background(), task.Transition, task.Payload)
	}
}
