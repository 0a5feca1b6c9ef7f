package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/damir5/kosarica-sub000/internal/queue"
)

// Config tunes the batch worker.
type Config struct {
	// Concurrency is the number of parallel consumer loops.
	Concurrency int
	// MaxRetries before a failing message is dead-lettered.
	MaxRetries int
	// PollTimeout bounds each blocking dequeue.
	PollTimeout time.Duration
	// PromoteInterval is how often due delayed messages are promoted.
	PromoteInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Concurrency:     5,
		MaxRetries:      queue.DefaultMaxRetries,
		PollTimeout:     5 * time.Second,
		PromoteInterval: 15 * time.Second,
	}
}

// Handler processes one queue message. A returned error triggers the retry
// and dead-letter policy.
type Handler func(ctx context.Context, msg queue.Message) error

// Worker consumes pipeline messages with bounded parallelism. Handlers are
// registered per message type; messages without a handler are dead-lettered
// immediately.
type Worker struct {
	queue    *queue.Queue
	config   Config
	handlers map[queue.MessageType]Handler
	// onDead is invoked after a message is dead-lettered, with the cause.
	onDead func(ctx context.Context, msg queue.Message, cause string)
}

func New(q *queue.Queue, config Config) *Worker {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConfig().Concurrency
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = DefaultConfig().PollTimeout
	}
	if config.PromoteInterval <= 0 {
		config.PromoteInterval = DefaultConfig().PromoteInterval
	}
	return &Worker{
		queue:    q,
		config:   config,
		handlers: make(map[queue.MessageType]Handler),
	}
}

func (w *Worker) RegisterHandler(msgType queue.MessageType, handler Handler) {
	w.handlers[msgType] = handler
}

// OnDeadLetter sets the hook invoked after a message exhausts its retries.
func (w *Worker) OnDeadLetter(fn func(ctx context.Context, msg queue.Message, cause string)) {
	w.onDead = fn
}

// Run consumes until ctx is cancelled. In-flight handlers finish before Run
// returns.
func (w *Worker) Run(ctx context.Context) error {
	log.Info().
		Int("concurrency", w.config.Concurrency).
		Int("handlers", len(w.handlers)).
		Msg("worker starting")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.promoteLoop(gctx)
	})
	for i := 0; i < w.config.Concurrency; i++ {
		workerNum := i
		g.Go(func() error {
			return w.consumeLoop(gctx, workerNum)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info().Msg("worker stopped")
	return err
}

// promoteLoop periodically moves due delayed messages onto the ready list.
func (w *Worker) promoteLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.config.PromoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			promoted, err := w.queue.PromoteDue(ctx)
			if err != nil {
				log.Error().Err(err).Msg("failed to promote delayed messages")
				continue
			}
			if promoted > 0 {
				log.Debug().Int("promoted", promoted).Msg("promoted delayed messages")
			}
		}
	}
}

func (w *Worker) consumeLoop(ctx context.Context, workerNum int) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		msg, err := w.queue.Dequeue(ctx, w.config.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Int("worker", workerNum).Msg("dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if msg == nil {
			continue
		}

		w.process(ctx, workerNum, *msg)
	}
}

func (w *Worker) process(ctx context.Context, workerNum int, msg queue.Message) {
	logger := log.With().
		Int("worker", workerNum).
		Str("message_id", msg.ID).
		Str("type", string(msg.Type)).
		Str("run_id", msg.RunID).
		Logger()

	handler, ok := w.handlers[msg.Type]
	if !ok {
		logger.Warn().Msg("no handler registered for message type")
		w.deadLetter(ctx, msg, "no handler registered")
		return
	}

	started := time.Now()
	err := handler(ctx, msg)
	if err == nil {
		logger.Info().Dur("elapsed", time.Since(started)).Msg("message processed")
		return
	}

	logger.Error().Err(err).Int("attempts", msg.Attempts+1).Msg("message handler failed")

	retried, retryErr := w.queue.Retry(ctx, msg, w.config.MaxRetries, err.Error())
	if retryErr != nil {
		logger.Error().Err(retryErr).Msg("failed to reschedule message")
		return
	}
	if !retried && w.onDead != nil {
		w.onDead(ctx, msg, err.Error())
	}
}

func (w *Worker) deadLetter(ctx context.Context, msg queue.Message, cause string) {
	if err := w.queue.DeadLetter(ctx, msg, cause); err != nil {
		log.Error().Err(err).Str("message_id", msg.ID).Msg("failed to dead-letter message")
		return
	}
	if w.onDead != nil {
		w.onDead(ctx, msg, cause)
	}
}

// String implements fmt.Stringer for debug output.
func (w *Worker) String() string {
	return fmt.Sprintf("worker(concurrency=%d, handlers=%d)", w.config.Concurrency, len(w.handlers))
}
