package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pranavd0828/make-your-video-2x/config"
	"github.com/Pranavd0828/make-your-video-2x/engine"
	"github.com/Pranavd0828/make-your-video-2x/metrics"
	"github.com/Pranavd0828/make-your-video-2x/progress"
	"github.com/Pranavd0828/make-your-video-2x/resource"
)

// mockEngine scripts Execute outcomes per call and records all interactions.
type mockEngine struct {
	mu        sync.Mutex
	execErrs  []error
	execCalls [][]string
	writes    map[string][]byte
	output    []byte

	emit    []float64     // fractions emitted at the start of each Execute
	started chan struct{} // receives one token per Execute call, if set
	release chan struct{} // Execute blocks until closed, if set

	progressH engine.ProgressHandler
	logH      engine.LogHandler
}

func newMockEngine() *mockEngine {
	return &mockEngine{
		writes: make(map[string][]byte),
		output: []byte("faster video bytes"),
	}
}

func (m *mockEngine) Load(ctx context.Context, cfg engine.LoadConfig) error { return nil }

func (m *mockEngine) OnLog(h engine.LogHandler) { m.logH = h }

func (m *mockEngine) OnProgress(h engine.ProgressHandler) { m.progressH = h }

func (m *mockEngine) WriteInput(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes[name] = data
	return nil
}

func (m *mockEngine) Execute(ctx context.Context, argv []string) error {
	m.mu.Lock()
	m.execCalls = append(m.execCalls, argv)
	var err error
	if len(m.execErrs) > 0 {
		err = m.execErrs[0]
		m.execErrs = m.execErrs[1:]
	}
	emit := m.emit
	m.emit = nil
	progressH := m.progressH
	started, release := m.started, m.release
	m.mu.Unlock()

	for _, f := range emit {
		if progressH != nil {
			progressH(engine.ProgressEvent{Progress: f})
		}
	}
	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		<-release
	}
	return err
}

// script arms the next Execute call with emitted fractions and optional
// start/block channels.
func (m *mockEngine) script(emit []float64, started, release chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emit = emit
	m.started = started
	m.release = release
}

func (m *mockEngine) ReadOutput(ctx context.Context, name string) ([]byte, error) {
	return m.output, nil
}

func (m *mockEngine) calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.execCalls))
	copy(out, m.execCalls)
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		ExecTimeout: 5 * time.Second,
		SpeedFactor: 2.0,
	}
}

func newTestMachine(t *testing.T, me *mockEngine) (*Machine, *resource.Store, *engine.Lifecycle) {
	t.Helper()

	tr := progress.NewTranslator()
	lc := engine.NewLifecycle(me,
		engine.LoadConfig{FFmpegRef: "ffmpeg", FFProbeRef: "ffprobe"},
		func(engine.LogEvent) {},
		func(e engine.ProgressEvent) { tr.OnFraction(e.Progress) },
	)
	require.NoError(t, lc.Initialize(context.Background()))
	waitFor(t, func() bool { return lc.State() == engine.StateReady })

	store := resource.NewStore()
	m, err := NewMachine(testConfig(), lc, store, tr)
	require.NoError(t, err)
	m.Start(context.Background())
	return m, store, lc
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func waitForTerminal(t *testing.T, m *Machine) Snapshot {
	t.Helper()
	waitFor(t, func() bool { return m.Snapshot().Status.Terminal() })
	return m.Snapshot()
}

func testAsset() Asset {
	return Asset{Name: "clip.mov", MIME: "video/quicktime", Data: []byte("source bytes")}
}

func TestSubmitBeforeReady(t *testing.T) {
	me := newMockEngine()
	tr := progress.NewTranslator()
	lc := engine.NewLifecycle(me, engine.LoadConfig{}, nil, nil)
	store := resource.NewStore()
	m, err := NewMachine(testConfig(), lc, store, tr)
	require.NoError(t, err)
	m.Start(context.Background())

	_, err = m.Submit(testAsset())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, StatusIdle, m.Snapshot().Status)
	assert.Equal(t, 0, store.Live())
}

func TestPrimarySuccess(t *testing.T) {
	me := newMockEngine()
	m, store, _ := newTestMachine(t, me)
	succeededBefore := testutil.ToFloat64(metrics.JobsTotal.WithLabelValues(string(StatusSucceeded)))

	snap, err := m.Submit(testAsset())
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ID)

	final := waitForTerminal(t, m)
	assert.Equal(t, StatusSucceeded, final.Status)
	assert.Equal(t, AttemptPrimary, final.Attempt)
	assert.Equal(t, 100, final.Progress)
	assert.Equal(t, "sped_up_clip.mp4", final.OutputName)

	calls := me.calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "-filter_complex")

	me.mu.Lock()
	assert.Equal(t, []byte("source bytes"), me.writes[InputName])
	me.mu.Unlock()

	out, ok := store.Current(resource.SlotOutput)
	require.True(t, ok)
	assert.Equal(t, "sped_up_clip.mp4", out.Name)
	assert.Equal(t, OutputMIME, out.MIME)
	assert.Equal(t, []byte("faster video bytes"), out.Data)

	assert.Equal(t, succeededBefore+1,
		testutil.ToFloat64(metrics.JobsTotal.WithLabelValues(string(StatusSucceeded))))
	assert.Equal(t, float64(100), testutil.ToFloat64(metrics.JobProgressPercent))
}

func TestFallbackOnPrimaryFailure(t *testing.T) {
	me := newMockEngine()
	me.execErrs = []error{engine.ErrExec}
	m, store, _ := newTestMachine(t, me)
	fallbacksBefore := testutil.ToFloat64(metrics.FallbackAttemptsTotal)
	partialBefore := testutil.ToFloat64(metrics.JobsTotal.WithLabelValues(string(StatusPartiallySucceeded)))

	_, err := m.Submit(testAsset())
	require.NoError(t, err)

	final := waitForTerminal(t, m)
	assert.Equal(t, StatusPartiallySucceeded, final.Status)
	assert.Equal(t, AttemptFallback, final.Attempt)

	calls := me.calls()
	require.Len(t, calls, 2, "exactly one automatic retry")
	assert.Contains(t, calls[0], "-filter_complex")
	assert.Contains(t, calls[1], "-an")

	_, ok := store.Current(resource.SlotOutput)
	assert.True(t, ok, "fallback success still publishes output")

	assert.Equal(t, fallbacksBefore+1, testutil.ToFloat64(metrics.FallbackAttemptsTotal))
	assert.Equal(t, partialBefore+1,
		testutil.ToFloat64(metrics.JobsTotal.WithLabelValues(string(StatusPartiallySucceeded))))
}

func TestBothAttemptsFail(t *testing.T) {
	me := newMockEngine()
	me.execErrs = []error{engine.ErrExec, engine.ErrExec}
	m, store, _ := newTestMachine(t, me)
	failedBefore := testutil.ToFloat64(metrics.JobsTotal.WithLabelValues(string(StatusFailed)))

	_, err := m.Submit(testAsset())
	require.NoError(t, err)

	final := waitForTerminal(t, m)
	assert.Equal(t, StatusFailed, final.Status)
	assert.Equal(t, "processing failed; the file could not be sped up", final.Error)

	require.Len(t, me.calls(), 2, "no third attempt")

	_, ok := store.Current(resource.SlotOutput)
	assert.False(t, ok, "no partial output may be published")

	assert.Equal(t, failedBefore+1,
		testutil.ToFloat64(metrics.JobsTotal.WithLabelValues(string(StatusFailed))))
}

func TestJobInFlightRejection(t *testing.T) {
	me := newMockEngine()
	me.started = make(chan struct{}, 2)
	me.release = make(chan struct{})
	m, _, _ := newTestMachine(t, me)

	_, err := m.Submit(testAsset())
	require.NoError(t, err)
	<-me.started

	_, err = m.Submit(Asset{Name: "other.mp4", MIME: "video/mp4"})
	assert.ErrorIs(t, err, ErrJobInFlight)

	// The original job is unaffected.
	assert.Equal(t, StatusProcessing, m.Snapshot().Status)
	assert.Equal(t, "clip.mov", m.Snapshot().InputName)

	close(me.release)
	waitForTerminal(t, m)
}

func TestProgressWhileProcessing(t *testing.T) {
	me := newMockEngine()
	me.emit = []float64{0.42, -0.5, 1.7, 0.42}
	me.started = make(chan struct{}, 2)
	me.release = make(chan struct{})
	m, _, _ := newTestMachine(t, me)

	_, err := m.Submit(testAsset())
	require.NoError(t, err)
	<-me.started

	snap := m.Snapshot()
	assert.Equal(t, StatusProcessing, snap.Status)
	assert.Equal(t, 42, snap.Progress, "last delivered percent, clamped to [0,100]")
	assert.GreaterOrEqual(t, snap.Progress, 0)
	assert.LessOrEqual(t, snap.Progress, 100)

	close(me.release)
	final := waitForTerminal(t, m)
	assert.Equal(t, 100, final.Progress)
}

func TestProgressAcrossConsecutiveJobs(t *testing.T) {
	me := newMockEngine()
	m, _, _ := newTestMachine(t, me)

	_, err := m.Submit(testAsset())
	require.NoError(t, err)
	waitForTerminal(t, m)

	// The worker goroutine of the first job tears down after the terminal
	// status is published; updates for the next job must still arrive.
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	me.script([]float64{0.42}, started, release)

	_, err = m.Submit(Asset{Name: "next.mp4", MIME: "video/mp4", Data: []byte("more bytes")})
	require.NoError(t, err)
	<-started

	snap := m.Snapshot()
	assert.Equal(t, StatusProcessing, snap.Status)
	assert.Equal(t, 42, snap.Progress, "second job still receives progress")

	close(release)
	final := waitForTerminal(t, m)
	assert.Equal(t, 100, final.Progress)
}

func TestReset(t *testing.T) {
	me := newMockEngine()
	m, store, lc := newTestMachine(t, me)

	_, err := m.Submit(testAsset())
	require.NoError(t, err)
	waitForTerminal(t, m)
	require.Equal(t, 2, store.Live())

	require.NoError(t, m.Reset())
	assert.Equal(t, StatusIdle, m.Snapshot().Status)
	assert.Equal(t, 0, store.Live())
	assert.Equal(t, engine.StateReady, lc.State(), "reset leaves the engine untouched")

	// Resettable again from idle.
	assert.NoError(t, m.Reset())
}

func TestResetWhileProcessing(t *testing.T) {
	me := newMockEngine()
	me.started = make(chan struct{}, 2)
	me.release = make(chan struct{})
	m, _, _ := newTestMachine(t, me)

	_, err := m.Submit(testAsset())
	require.NoError(t, err)
	<-me.started

	assert.ErrorIs(t, m.Reset(), ErrJobRunning)

	close(me.release)
	waitForTerminal(t, m)
}

func TestSubmitAfterTerminalSupersedesHandles(t *testing.T) {
	me := newMockEngine()
	m, store, _ := newTestMachine(t, me)

	for i := 0; i < 3; i++ {
		_, err := m.Submit(testAsset())
		require.NoError(t, err)
		waitForTerminal(t, m)
	}

	assert.Equal(t, 2, store.Live(), "at most one live handle per slot")
}

func TestNewMachineRejectsOutOfRangeSpeedFactor(t *testing.T) {
	me := newMockEngine()
	tr := progress.NewTranslator()
	lc := engine.NewLifecycle(me, engine.LoadConfig{}, nil, nil)
	store := resource.NewStore()

	for _, factor := range []float64{0.25, 3.0} {
		cfg := testConfig()
		cfg.SpeedFactor = factor
		_, err := NewMachine(cfg, lc, store, tr)
		assert.Error(t, err, "factor %v lies outside the single-stage tempo range", factor)
	}
}

func TestOutputFileName(t *testing.T) {
	assert.Equal(t, "sped_up_clip.mp4", OutputFileName("clip.mov"))
	assert.Equal(t, "sped_up_movie.mp4", OutputFileName("movie.mp4"))
	assert.Equal(t, "sped_up_a.b.mp4", OutputFileName("a.b.m4v"))
	assert.Equal(t, "sped_up_video.mp4", OutputFileName(""))
}
