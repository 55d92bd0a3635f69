package job

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/address-discovery/internal/errors"
	"github.com/address-discovery/internal/metrics"
	"github.com/address-discovery/internal/service"
	"github.com/address-discovery/internal/types"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces the queue list and job hashes
const DefaultPrefix = "ingest"

// jobTTL bounds how long finished job records are kept
const jobTTL = 7 * 24 * time.Hour

// ErrJobNotFound is returned by GetStatus for unknown or expired job ids
var ErrJobNotFound = stderrors.New("job not found")

// Job is the status record of one queued ingestion request
type Job struct {
	ID         string               `json:"jobId"`
	Status     types.JobStatus      `json:"status"`
	Input      *service.CycleInput  `json:"input,omitempty"`
	Result     *service.CycleResult `json:"result,omitempty"`
	Error      string               `json:"error,omitempty"`
	EnqueuedAt time.Time            `json:"enqueuedAt"`
	StartedAt  *time.Time           `json:"startedAt,omitempty"`
	FinishedAt *time.Time           `json:"finishedAt,omitempty"`
}

// envelope is the list element pushed for every job
type envelope struct {
	ID    string              `json:"id"`
	Input *service.CycleInput `json:"input"`
}

// RedisQueue is a FIFO of ingestion jobs on a Redis list: LPUSH to enqueue,
// BRPOP to dequeue. Each job has a status hash next to the list.
type RedisQueue struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisQueue creates a queue under prefix (DefaultPrefix when empty)
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisQueue{
		client: client,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (q *RedisQueue) listKey() string {
	return q.prefix + ":queue"
}

func (q *RedisQueue) jobKey(id string) string {
	return fmt.Sprintf("%s:job:%s", q.prefix, id)
}

// Enqueue stores a queued status record and pushes the job
func (q *RedisQueue) Enqueue(ctx context.Context, in *service.CycleInput) (string, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(envelope{ID: id, Input: in})
	if err != nil {
		return "", errors.NewQueueError("encode job", err)
	}
	input, err := json.Marshal(in)
	if err != nil {
		return "", errors.NewQueueError("encode job", err)
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(id), map[string]interface{}{
		"status":      string(types.JobStatusQueued),
		"input":       input,
		"enqueued_at": q.now().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, q.jobKey(id), jobTTL)
	pipe.LPush(ctx, q.listKey(), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", errors.NewQueueError("enqueue", err)
	}

	metrics.JobsEnqueued.Inc()
	return id, nil
}

// Dequeue blocks up to timeout for the next job. It returns nil, nil when
// the timeout elapses with nothing queued.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, *service.CycleInput, error) {
	res, err := q.client.BRPop(ctx, timeout, q.listKey()).Result()
	if stderrors.Is(err, redis.Nil) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, errors.NewQueueError("dequeue", err)
	}

	// res is [key, value]
	var env envelope
	if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
		return "", nil, errors.NewQueueError("decode job", err)
	}
	if env.Input == nil {
		env.Input = &service.CycleInput{}
	}
	return env.ID, env.Input, nil
}

// Len returns the number of jobs waiting
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.listKey()).Result()
}

// MarkStarted moves a job to in_progress
func (q *RedisQueue) MarkStarted(ctx context.Context, id string) error {
	return q.update(ctx, id, map[string]interface{}{
		"status":     string(types.JobStatusInProgress),
		"started_at": q.now().Format(time.RFC3339Nano),
	})
}

// MarkCompleted stores the cycle result
func (q *RedisQueue) MarkCompleted(ctx context.Context, id string, result *service.CycleResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return errors.NewQueueError("encode result", err)
	}
	return q.update(ctx, id, map[string]interface{}{
		"status":      string(types.JobStatusCompleted),
		"result":      body,
		"finished_at": q.now().Format(time.RFC3339Nano),
	})
}

// MarkFailed stores the failure message
func (q *RedisQueue) MarkFailed(ctx context.Context, id string, jobErr error) error {
	return q.update(ctx, id, map[string]interface{}{
		"status":      string(types.JobStatusFailed),
		"error":       jobErr.Error(),
		"finished_at": q.now().Format(time.RFC3339Nano),
	})
}

func (q *RedisQueue) update(ctx context.Context, id string, fields map[string]interface{}) error {
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(id), fields)
	pipe.Expire(ctx, q.jobKey(id), jobTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewQueueError("update job", err)
	}
	return nil
}

// GetStatus returns the status record of a job
func (q *RedisQueue) GetStatus(ctx context.Context, id string) (*Job, error) {
	fields, err := q.client.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return nil, errors.NewQueueError("get job", err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}

	j := &Job{ID: id, Status: types.JobStatus(fields["status"]), Error: fields["error"]}
	if raw := fields["input"]; raw != "" {
		var in service.CycleInput
		if err := json.Unmarshal([]byte(raw), &in); err == nil {
			j.Input = &in
		}
	}
	if raw := fields["result"]; raw != "" {
		var res service.CycleResult
		if err := json.Unmarshal([]byte(raw), &res); err == nil {
			j.Result = &res
		}
	}
	j.EnqueuedAt, _ = time.Parse(time.RFC3339Nano, fields["enqueued_at"])
	j.StartedAt = parseTime(fields["started_at"])
	j.FinishedAt = parseTime(fields["finished_at"])
	return j, nil
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}
