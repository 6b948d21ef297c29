package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nuvemsync/nuvemsync/internal/models"
	"github.com/nuvemsync/nuvemsync/pkg/logger"
)

const (
	DefaultQueueMaxAttempts    = 5
	DefaultQueueInitialBackoff = 2 * time.Second
	DefaultQueueMaxBackoff     = time.Minute
	DefaultQueueStopTimeout    = 10 * time.Second
)

// QueueConfig controls retry behavior for deferred runs.
type QueueConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	StopTimeout    time.Duration
}

func (c *QueueConfig) normalize() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultQueueMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultQueueInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultQueueMaxBackoff
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultQueueStopTimeout
	}
}

// RunFunc executes one reconcile attempt for a collection.
type RunFunc func(ctx context.Context, collection string) error

// Queue coalesces webhook-triggered runs per collection and retries them
// with exponential backoff when the lock is busy or the platform is down.
// Ingestion callers never block on a run.
type Queue struct {
	logger *logger.Logger
	run    RunFunc
	alerts models.AlertService
	config QueueConfig

	mu      sync.Mutex
	pending map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue creates a deferred-run queue.
func NewQueue(run RunFunc, alerts models.AlertService, logger *logger.Logger, cfg QueueConfig) *Queue {
	cfg.normalize()
	return &Queue{
		logger:  logger,
		run:     run,
		alerts:  alerts,
		config:  cfg,
		pending: make(map[string]bool),
	}
}

// Start binds the queue to its base context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels pending workers and waits for in-flight runs to settle.
func (q *Queue) Stop() {
	q.mu.Lock()
	cancel := q.cancel
	q.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(q.config.StopTimeout):
		q.logger.Warn("Queue stop timed out with workers still running")
	}
}

// Enqueue hands off a deferred run for the collection. A trigger arriving
// while one is already pending coalesces into it: the pending run's
// incremental fetch covers the newer event.
func (q *Queue) Enqueue(collection string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ctx == nil || q.ctx.Err() != nil {
		q.logger.Warn("Enqueue after queue shutdown dropped ", "collection ", collection)
		return
	}
	if q.pending[collection] {
		q.logger.Debug("Sync trigger coalesced ", "collection ", collection)
		return
	}
	q.pending[collection] = true
	q.wg.Add(1)
	go q.worker(collection)
}

func (q *Queue) worker(collection string) {
	defer q.wg.Done()
	defer func() {
		q.mu.Lock()
		delete(q.pending, collection)
		q.mu.Unlock()
	}()

	for attempt := 1; attempt <= q.config.MaxAttempts; attempt++ {
		err := q.run(q.ctx, collection)
		if err == nil {
			return
		}
		if !errors.Is(err, models.ErrLockBusy) && !errors.Is(err, models.ErrUpstreamUnavailable) {
			// Unrecoverable for this trigger; the executor already alerted
			// where it matters.
			q.logger.Error("Deferred sync failed ", "collection ", collection, " error ", err)
			return
		}

		if attempt == q.config.MaxAttempts {
			break
		}
		backoff := exponentialBackoff(attempt, q.config.InitialBackoff, q.config.MaxBackoff)
		q.logger.Debug("Deferred sync backing off ", "collection ", collection, " attempt ", attempt, " backoff ", backoff)
		select {
		case <-q.ctx.Done():
			return
		case <-time.After(backoff):
		}
	}

	q.logger.Error("Deferred sync retries exhausted ", "collection ", collection, " attempts ", q.config.MaxAttempts)
	q.alerts.Alert("Sync retries exhausted",
		fmt.Sprintf("collection %s gave up after %d attempts", collection, q.config.MaxAttempts))
}

func exponentialBackoff(attempt int, initial, max time.Duration) time.Duration {
	backoff := initial
	for i := 1; i < attempt; i++ {
		if backoff >= max/2 {
			return max
		}
		backoff *= 2
	}
	if backoff > max {
		return max
	}
	return backoff
}
