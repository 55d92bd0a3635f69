package job

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/address-discovery/internal/logging"
	"github.com/address-discovery/internal/service"
	"github.com/redis/go-redis/v9"
)

// Mode is how the dispatcher executes ingestion requests
type Mode string

const (
	// ModeQueued pushes requests to the Redis queue for a worker process
	ModeQueued Mode = "queued"
	// ModeSync runs requests in-process
	ModeSync Mode = "sync"
)

// probeTimeout bounds the single startup PING
const probeTimeout = 2 * time.Second

// ErrQueueDisabled is returned for job lookups when running in sync mode
var ErrQueueDisabled = stderrors.New("job queue is not enabled")

// CycleRunner runs one ingestion cycle
type CycleRunner interface {
	RunCycle(ctx context.Context, in *service.CycleInput) (*service.CycleResult, error)
}

// DispatchResult is either a queued job handle or a synchronous result
type DispatchResult struct {
	Queued bool                 `json:"queued"`
	JobID  string               `json:"jobId,omitempty"`
	Result *service.CycleResult `json:"result,omitempty"`
}

// Dispatcher routes ingestion requests to the queue or runs them inline.
// The mode is decided once at construction and never re-probed.
type Dispatcher struct {
	mode   Mode
	queue  *RedisQueue
	runner CycleRunner
}

// NewDispatcher probes client with one PING. A nil client or a failed probe
// selects ModeSync for the lifetime of the dispatcher.
func NewDispatcher(ctx context.Context, client *redis.Client, prefix string, runner CycleRunner) *Dispatcher {
	logger := logging.FromContext(ctx)
	d := &Dispatcher{mode: ModeSync, runner: runner}

	if client == nil {
		logger.Info("No queue broker configured, running ingestion requests synchronously")
		return d
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := client.Ping(probeCtx).Err(); err != nil {
		logger.WithError(err).Warn("Queue broker unreachable, falling back to synchronous ingestion")
		return d
	}

	d.mode = ModeQueued
	d.queue = NewRedisQueue(client, prefix)
	logger.Info("Queue broker reachable, ingestion requests will be queued")
	return d
}

// Mode returns the dispatch mode chosen at startup
func (d *Dispatcher) Mode() Mode {
	return d.mode
}

// Queue returns the job queue, nil in sync mode
func (d *Dispatcher) Queue() *RedisQueue {
	return d.queue
}

// Dispatch enqueues the request or runs it to completion
func (d *Dispatcher) Dispatch(ctx context.Context, in *service.CycleInput) (*DispatchResult, error) {
	if d.mode == ModeQueued {
		id, err := d.queue.Enqueue(ctx, in)
		if err != nil {
			return nil, err
		}
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"jobId":     id,
			"subreddit": in.Channel,
		}).Info("Ingestion job queued")
		return &DispatchResult{Queued: true, JobID: id}, nil
	}

	res, err := d.runner.RunCycle(ctx, in)
	if err != nil {
		return nil, err
	}
	return &DispatchResult{Queued: false, Result: res}, nil
}

// JobStatus looks up a queued job
func (d *Dispatcher) JobStatus(ctx context.Context, id string) (*Job, error) {
	if d.mode != ModeQueued {
		return nil, ErrQueueDisabled
	}
	return d.queue.GetStatus(ctx, id)
}
