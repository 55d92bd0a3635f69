package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/address-discovery/internal/config"
	"github.com/address-discovery/internal/models"
	"github.com/address-discovery/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu       sync.Mutex
	inputs   []service.CycleInput
	failOn   map[string]error
	hold     time.Duration
	active   int32
	maxSeen  int32
	runCount int32
}

func (f *fakeRunner) RunCycle(_ context.Context, in *service.CycleInput) (*service.CycleResult, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		old := atomic.LoadInt32(&f.maxSeen)
		if n <= old || atomic.CompareAndSwapInt32(&f.maxSeen, old, n) {
			break
		}
	}
	atomic.AddInt32(&f.runCount, 1)

	f.mu.Lock()
	f.inputs = append(f.inputs, *in)
	err := f.failOn[in.Channel]
	f.mu.Unlock()

	if f.hold > 0 {
		time.Sleep(f.hold)
	}
	if err != nil {
		return nil, err
	}
	return &service.CycleResult{PostsSaved: 1}, nil
}

type fakeCursors map[string]*models.FeedCursor

func (f fakeCursors) GetCursor(_ context.Context, channel string) (*models.FeedCursor, error) {
	if channel == "broken" {
		return nil, errors.New("db down")
	}
	return f[channel], nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestScheduler_StatusLifecycle(t *testing.T) {
	s := NewScheduler(config.SchedulerConfig{Interval: time.Hour, Channels: []string{"Bitcoin"}}, &fakeRunner{}, fakeCursors{})
	ctx := context.Background()

	st := s.GetStatus()
	assert.False(t, st.Running)
	assert.Empty(t, st.Jobs)
	assert.Equal(t, "Not scheduled", st.NextRun)
	assert.Equal(t, []string{"Bitcoin"}, st.Channels)

	s.Start(ctx)
	s.Start(ctx)
	st = s.GetStatus()
	assert.True(t, st.Running)
	assert.Equal(t, []string{"reddit-scraper"}, st.Jobs)
	assert.Equal(t, "Every 1h0m0s", st.NextRun)

	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.GetStatus().Running)

	// restartable after a stop
	s.Start(ctx)
	assert.True(t, s.GetStatus().Running)
	require.NoError(t, s.Stop(ctx))
}

func TestScheduler_DefaultsToFiveMinutes(t *testing.T) {
	s := NewScheduler(config.SchedulerConfig{}, &fakeRunner{}, fakeCursors{})
	s.Start(context.Background())
	defer s.Stop(context.Background())

	st := s.GetStatus()
	assert.Equal(t, "Every 5m0s", st.NextRun)
	assert.Equal(t, config.DefaultChannels, st.Channels)
}

func TestScheduler_RunAllResumesFromCursorsAndIsolatesFailures(t *testing.T) {
	token := "t3_abc"
	runner := &fakeRunner{failOn: map[string]error{"Monero": errors.New("upstream 503")}}
	cursors := fakeCursors{"Bitcoin": {Subreddit: "Bitcoin", After: &token}}

	s := NewScheduler(config.SchedulerConfig{
		Interval:     time.Hour,
		Channels:     []string{"Bitcoin", "Monero", "broken"},
		ChannelDelay: 2 * time.Second,
	}, runner, cursors)

	var delays []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	results := s.RunAll(context.Background())
	require.Len(t, results, 3)

	require.NotNil(t, results["Bitcoin"].Result)
	assert.Equal(t, 1, results["Bitcoin"].Result.PostsSaved)
	assert.Equal(t, "upstream 503", results["Monero"].Error)
	assert.Nil(t, results["Monero"].Result)
	// a cursor read failure falls back to the head of the feed
	require.NotNil(t, results["broken"].Result)

	require.Len(t, runner.inputs, 3)
	assert.Equal(t, "Bitcoin", runner.inputs[0].Channel)
	require.NotNil(t, runner.inputs[0].After)
	assert.Equal(t, "t3_abc", *runner.inputs[0].After)
	assert.Nil(t, runner.inputs[1].After)

	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, delays)
	assert.NotNil(t, s.GetStatus().LastRun)
}

func TestScheduler_TicksNeverOverlap(t *testing.T) {
	runner := &fakeRunner{hold: 20 * time.Millisecond}
	s := NewScheduler(config.SchedulerConfig{
		Interval: 2 * time.Millisecond,
		Channels: []string{"a", "b"},
	}, runner, fakeCursors{})
	s.sleep = noSleep

	s.Start(context.Background())
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&runner.runCount) >= 6
	}, 2*time.Second, 5*time.Millisecond)

	// a concurrent manual run waits for the tick in progress
	s.RunAll(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	assert.EqualValues(t, 1, atomic.LoadInt32(&runner.maxSeen))
}

type blockingRunner struct {
	started chan string
	release chan struct{}
	mu      sync.Mutex
	ctxErrs []error
}

func (b *blockingRunner) RunCycle(ctx context.Context, in *service.CycleInput) (*service.CycleResult, error) {
	b.started <- in.Channel
	<-b.release
	b.mu.Lock()
	b.ctxErrs = append(b.ctxErrs, ctx.Err())
	b.mu.Unlock()
	return &service.CycleResult{PostsSaved: 1}, nil
}

func TestScheduler_StopLetsRunningCycleFinish(t *testing.T) {
	runner := &blockingRunner{started: make(chan string, 2), release: make(chan struct{})}
	s := NewScheduler(config.SchedulerConfig{
		Interval: 2 * time.Millisecond,
		Channels: []string{"a", "b"},
	}, runner, fakeCursors{})
	s.sleep = noSleep

	s.Start(context.Background())
	select {
	case ch := <-runner.started:
		assert.Equal(t, "a", ch)
	case <-time.After(2 * time.Second):
		t.Fatal("cycle never started")
	}

	stopped := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		stopped <- s.Stop(ctx)
	}()
	require.Eventually(t, func() bool { return !s.GetStatus().Running }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(runner.release)

	require.NoError(t, <-stopped)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Len(t, runner.ctxErrs, 1)
	assert.NoError(t, runner.ctxErrs[0])
	assert.Empty(t, runner.started)
}

func TestScheduler_RunAllSkipsRemainingChannelsOnceCancelled(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(config.SchedulerConfig{Channels: []string{"a", "b"}}, runner, fakeCursors{})
	s.sleep = noSleep

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, s.RunAll(ctx))
	assert.EqualValues(t, 0, atomic.LoadInt32(&runner.runCount))
}
