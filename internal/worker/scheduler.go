package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/address-discovery/internal/config"
	"github.com/address-discovery/internal/logging"
	"github.com/address-discovery/internal/metrics"
	"github.com/address-discovery/internal/models"
	"github.com/address-discovery/internal/retry"
	"github.com/address-discovery/internal/service"
)

// JobName is the single job registered by the scheduler
const JobName = "reddit-scraper"

// CycleRunner runs one ingestion cycle
type CycleRunner interface {
	RunCycle(ctx context.Context, in *service.CycleInput) (*service.CycleResult, error)
}

// CursorReader loads the stored pagination cursor of a channel
type CursorReader interface {
	GetCursor(ctx context.Context, channel string) (*models.FeedCursor, error)
}

// ChannelOutcome is the result slot of one channel in a run. Exactly one of
// Result and Error is set.
type ChannelOutcome struct {
	Result *service.CycleResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// SchedulerStatus is reported by GetStatus
type SchedulerStatus struct {
	Running  bool       `json:"running"`
	Jobs     []string   `json:"jobs"`
	NextRun  string     `json:"nextRun"`
	Channels []string   `json:"channels"`
	LastRun  *time.Time `json:"lastRun,omitempty"`
}

// Scheduler periodically runs an ingestion cycle for every configured channel.
// Runs are sequential: channels are processed one after another and a tick
// never starts while the previous run is still going.
type Scheduler struct {
	interval     time.Duration
	channels     []string
	channelDelay time.Duration
	runner       CycleRunner
	cursors      CursorReader
	sleep        retry.SleepFunc

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	lastRun time.Time

	// runMu serialises ticks with manual RunAll calls
	runMu sync.Mutex
}

// NewScheduler creates an idle scheduler
func NewScheduler(cfg config.SchedulerConfig, runner CycleRunner, cursors CursorReader) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	channels := cfg.Channels
	if len(channels) == 0 {
		channels = config.DefaultChannels
	}

	return &Scheduler{
		interval:     interval,
		channels:     append([]string(nil), channels...),
		channelDelay: cfg.ChannelDelay,
		runner:       runner,
		cursors:      cursors,
		sleep:        retry.SleepContext,
	}
}

// Start registers the recurring job. Calling Start on a running scheduler is a no-op.
// The loop outlives ctx's cancellation; use Stop to end it.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		logging.FromContext(ctx).Debug("Scheduler already running")
		return
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.doneCh = make(chan struct{})
	s.running = true
	metrics.SchedulerRunning.Set(1)

	go s.loop(loopCtx, s.doneCh)

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"interval": s.interval.String(),
		"channels": s.channels,
	}).Info("Scheduler started")
}

// Stop cancels the recurring job and waits for an in-flight run to notice.
// Calling Stop on an idle scheduler is a no-op.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel, done := s.cancel, s.doneCh
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	metrics.SchedulerRunning.Set(0)
	cancel()

	select {
	case <-done:
		logging.FromContext(ctx).Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		logging.FromContext(ctx).Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// GetStatus reports whether the scheduler is running and what it runs
func (s *Scheduler) GetStatus() *SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := &SchedulerStatus{
		Running:  s.running,
		Jobs:     []string{},
		NextRun:  "Not scheduled",
		Channels: append([]string(nil), s.channels...),
	}
	if !s.lastRun.IsZero() {
		last := s.lastRun
		status.LastRun = &last
	}
	if s.running {
		status.Jobs = []string{JobName}
		status.NextRun = fmt.Sprintf("Every %s", s.interval)
	}
	return status
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// the ticker drops ticks while RunAll is busy
			s.RunAll(ctx)
		}
	}
}

// RunAll runs one cycle per channel, resuming each from its stored cursor.
// A failing channel is recorded in its slot and does not stop the others.
func (s *Scheduler) RunAll(ctx context.Context) map[string]*ChannelOutcome {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	logger := logging.FromContext(ctx)
	results := make(map[string]*ChannelOutcome, len(s.channels))

	for i, channel := range s.channels {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && s.channelDelay > 0 {
			if err := s.sleep(ctx, s.channelDelay); err != nil {
				break
			}
		}
		results[channel] = s.runChannel(ctx, channel)
	}

	s.mu.Lock()
	s.lastRun = time.Now().UTC()
	s.mu.Unlock()

	logger.WithField("channels", len(results)).Info("Scheduled run finished")
	return results
}

func (s *Scheduler) runChannel(ctx context.Context, channel string) *ChannelOutcome {
	// Stop is honoured between channels, never inside one
	ctx = context.WithoutCancel(ctx)
	logger := logging.FromContext(ctx).WithField("subreddit", channel)

	input := &service.CycleInput{Channel: channel}
	cursor, err := s.cursors.GetCursor(ctx, channel)
	if err != nil {
		logger.WithError(err).Warn("Failed to load cursor, starting from the head of the feed")
	} else if cursor != nil {
		input.After = cursor.After
	}

	res, err := s.runner.RunCycle(ctx, input)
	if err != nil {
		logger.WithError(err).Error("Scheduled cycle failed")
		return &ChannelOutcome{Error: err.Error()}
	}
	return &ChannelOutcome{Result: res}
}
