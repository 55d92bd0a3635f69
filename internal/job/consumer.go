package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/address-discovery/internal/logging"
	"github.com/address-discovery/internal/metrics"
	"github.com/address-discovery/internal/retry"
	"github.com/address-discovery/internal/types"
)

// Consumer is the queue worker loop: it pops jobs one at a time and runs
// them through the orchestrator.
type Consumer struct {
	queue       *RedisQueue
	runner      CycleRunner
	pollTimeout time.Duration
	errorDelay  time.Duration
	sleep       retry.SleepFunc

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

// NewConsumer creates a stopped consumer
func NewConsumer(queue *RedisQueue, runner CycleRunner, pollTimeout time.Duration) *Consumer {
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &Consumer{
		queue:       queue,
		runner:      runner,
		pollTimeout: pollTimeout,
		errorDelay:  time.Second,
		sleep:       retry.SleepContext,
	}
}

// Start begins consuming in a goroutine
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("consumer is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.doneCh = make(chan struct{})
	c.running = true

	go c.loop(loopCtx, c.doneCh)

	logging.FromContext(ctx).WithField("queue", c.queue.listKey()).Info("Queue consumer started")
	return nil
}

// Stop signals the loop and waits for the job in progress to finish
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer is not running")
	}
	cancel, done := c.cancel, c.doneCh
	c.running = false
	c.mu.Unlock()

	cancel()

	select {
	case <-done:
		logging.FromContext(ctx).Info("Queue consumer stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	logger := logging.FromContext(ctx)

	for ctx.Err() == nil {
		if _, err := c.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WithError(err).Error("Failed to read from queue")
			if err := c.sleep(ctx, c.errorDelay); err != nil {
				return
			}
		}
	}
}

// ProcessNext waits for one job and runs it. processed is false when the
// poll timed out with nothing queued. Job failures are recorded on the job
// and are not returned.
func (c *Consumer) ProcessNext(ctx context.Context) (processed bool, err error) {
	id, input, err := c.queue.Dequeue(ctx, c.pollTimeout)
	if err != nil {
		return false, err
	}
	if id == "" {
		return false, nil
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"jobId":     id,
		"subreddit": input.Channel,
	})

	if err := c.queue.MarkStarted(ctx, id); err != nil {
		logger.WithError(err).Warn("Failed to mark job started")
	}

	// the cycle runs to completion even if the consumer is being stopped
	runCtx := context.WithoutCancel(ctx)
	result, runErr := c.runner.RunCycle(runCtx, input)
	if runErr != nil {
		metrics.JobsProcessed.WithLabelValues(string(types.JobStatusFailed)).Inc()
		logger.WithError(runErr).Error("Ingestion job failed")
		if err := c.queue.MarkFailed(runCtx, id, runErr); err != nil {
			logger.WithError(err).Warn("Failed to record job failure")
		}
		return true, nil
	}

	metrics.JobsProcessed.WithLabelValues(string(types.JobStatusCompleted)).Inc()
	logger.WithFields(map[string]interface{}{
		"postsSaved":  result.PostsSaved,
		"extractions": result.ExtractionsFound,
	}).Info("Ingestion job completed")
	if err := c.queue.MarkCompleted(runCtx, id, result); err != nil {
		logger.WithError(err).Warn("Failed to record job result")
	}
	return true, nil
}
