package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	// MaxBatchSize caps one enqueue round-trip.
	MaxBatchSize = 100

	// DefaultMaxRetries before a message lands on the dead-letter queue.
	DefaultMaxRetries = 3

	readyKey   = "ingest:ready"
	delayedKey = "ingest:delayed"
	deadKey    = "ingest:dead"
)

// RetryDelay returns the reschedule delay for the given delivery attempt
// count: min(60 * 2^(attempts-1), 3600) seconds.
func RetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	seconds := 60 * (1 << (attempts - 1))
	if seconds > 3600 {
		seconds = 3600
	}
	return time.Duration(seconds) * time.Second
}

// Queue is the redis-backed message transport: a list for ready messages, a
// sorted set (scored by due time) for delayed ones, and a list for dead
// letters.
type Queue struct {
	client *redis.Client
}

func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// NewFromURL connects to redis using a redis:// URL.
func NewFromURL(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return New(redis.NewClient(opts)), nil
}

// Ping verifies the redis connection.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// Enqueue pushes one message onto the ready list.
func (q *Queue) Enqueue(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, readyKey, data).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", msg.Type, err)
	}
	return nil
}

// EnqueueBatch pushes messages in pipelined chunks of at most MaxBatchSize.
func (q *Queue) EnqueueBatch(ctx context.Context, msgs []Message) error {
	for start := 0; start < len(msgs); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(msgs) {
			end = len(msgs)
		}
		pipe := q.client.Pipeline()
		for _, msg := range msgs[start:end] {
			if err := msg.Validate(); err != nil {
				return err
			}
			data, err := msg.Encode()
			if err != nil {
				return err
			}
			pipe.LPush(ctx, readyKey, data)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("enqueue batch: %w", err)
		}
	}
	return nil
}

// EnqueueDelayed schedules a message for delivery after the given delay.
func (q *Queue) EnqueueDelayed(ctx context.Context, msg Message, delay time.Duration) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	due := float64(time.Now().Add(delay).UnixMilli())
	if err := q.client.ZAdd(ctx, delayedKey, redis.Z{Score: due, Member: data}).Err(); err != nil {
		return fmt.Errorf("enqueue delayed %s: %w", msg.Type, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next ready message. Returns nil when
// the timeout elapses with no message.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Message, error) {
	res, err := q.client.BRPop(ctx, timeout, readyKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	// BRPop returns [key, value].
	msg, err := DecodeMessage([]byte(res[1]))
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// PromoteDue moves delayed messages whose due time has passed onto the ready
// list. Returns how many were promoted.
func (q *Queue) PromoteDue(ctx context.Context) (int, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	members, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min: "-inf", Max: now, Count: int64(MaxBatchSize),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scan delayed messages: %w", err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	promoted := 0
	for _, member := range members {
		// ZREM guards against a concurrent promoter handling the same entry.
		removed, err := q.client.ZRem(ctx, delayedKey, member).Result()
		if err != nil {
			return promoted, fmt.Errorf("remove delayed message: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, readyKey, member).Err(); err != nil {
			return promoted, fmt.Errorf("promote delayed message: %w", err)
		}
		promoted++
	}
	return promoted, nil
}

// DeadLetter parks a message that exhausted its retries.
func (q *Queue) DeadLetter(ctx context.Context, msg Message, cause string) error {
	envelope := struct {
		Message Message   `json:"message"`
		Cause   string    `json:"cause"`
		DeadAt  time.Time `json:"deadAt"`
	}{msg, cause, time.Now().UTC()}

	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, deadKey, data).Err(); err != nil {
		return fmt.Errorf("dead-letter %s: %w", msg.ID, err)
	}
	log.Warn().
		Str("message_id", msg.ID).
		Str("type", string(msg.Type)).
		Str("run_id", msg.RunID).
		Str("cause", cause).
		Msg("message moved to dead-letter queue")
	return nil
}

// Retry reschedules a failed message with backoff, or dead-letters it once
// maxRetries deliveries are exhausted. Reports whether a retry was scheduled.
func (q *Queue) Retry(ctx context.Context, msg Message, maxRetries int, cause string) (bool, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	msg.Attempts++
	if msg.Attempts >= maxRetries {
		return false, q.DeadLetter(ctx, msg, cause)
	}
	delay := RetryDelay(msg.Attempts)
	log.Info().
		Str("message_id", msg.ID).
		Str("type", string(msg.Type)).
		Int("attempts", msg.Attempts).
		Dur("delay", delay).
		Msg("rescheduling failed message")
	return true, q.EnqueueDelayed(ctx, msg, delay)
}

// Depths reports the ready, delayed and dead-letter queue lengths.
func (q *Queue) Depths(ctx context.Context) (ready, delayed, dead int64, err error) {
	if ready, err = q.client.LLen(ctx, readyKey).Result(); err != nil {
		return
	}
	if delayed, err = q.client.ZCard(ctx, delayedKey).Result(); err != nil {
		return
	}
	dead, err = q.client.LLen(ctx, deadKey).Result()
	return
}
