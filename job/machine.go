package job

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/Pranavd0828/make-your-video-2x/config"
	"github.com/Pranavd0828/make-your-video-2x/engine"
	"github.com/Pranavd0828/make-your-video-2x/filter"
	"github.com/Pranavd0828/make-your-video-2x/metrics"
	"github.com/Pranavd0828/make-your-video-2x/progress"
	"github.com/Pranavd0828/make-your-video-2x/resource"
)

// ErrNotReady is returned when a job is submitted before the engine is ready.
var ErrNotReady = errors.New("engine not ready")

// ErrJobInFlight is returned when a job is submitted while another is active.
var ErrJobInFlight = errors.New("a job is already in flight")

// ErrJobRunning is returned when reset is requested mid-processing.
var ErrJobRunning = errors.New("cannot reset while a job is processing")

// Machine drives one job at a time through write, execute and read against
// the engine, retrying exactly once with the video-only plan when the
// with-audio attempt fails.
type Machine struct {
	cfg        *config.Config
	engines    *engine.Lifecycle
	resources  *resource.Store
	translator *progress.Translator
	extraArgs  []string

	baseCtx context.Context

	mu         sync.Mutex
	current    *Job
	observerID uint64
}

func NewMachine(cfg *config.Config, lc *engine.Lifecycle, store *resource.Store, tr *progress.Translator) (*Machine, error) {
	extra, err := cfg.ExtraArgs()
	if err != nil {
		return nil, err
	}
	if cfg.SpeedFactor < filter.MinTempo || cfg.SpeedFactor > filter.MaxTempo {
		return nil, fmt.Errorf("speed factor %.2f outside the single-stage tempo range [%.1f, %.1f]",
			cfg.SpeedFactor, filter.MinTempo, filter.MaxTempo)
	}
	return &Machine{
		cfg:        cfg,
		engines:    lc,
		resources:  store,
		translator: tr,
		extraArgs:  extra,
		baseCtx:    context.Background(),
	}, nil
}

// Start sets the parent context for background job runs.
func (m *Machine) Start(ctx context.Context) {
	m.baseCtx = ctx
}

// Submit accepts an asset and begins processing it. Rejected synchronously
// with ErrNotReady before the engine is ready and with ErrJobInFlight while
// another job is non-terminal; neither rejection changes any state.
func (m *Machine) Submit(asset Asset) (Snapshot, error) {
	eng, ok := m.engines.Handle()
	if !ok {
		return m.Snapshot(), ErrNotReady
	}

	m.mu.Lock()
	if m.current != nil && !m.current.Status.Terminal() {
		m.mu.Unlock()
		return m.Snapshot(), ErrJobInFlight
	}
	j := &Job{
		ID:        shortuuid.New(),
		InputName: asset.Name,
		Attempt:   AttemptPrimary,
		Status:    StatusReady,
		CreatedAt: time.Now(),
	}
	m.current = j
	m.mu.Unlock()

	m.resources.Publish(resource.SlotInput, asset.Name, asset.MIME, asset.Data)
	metrics.LiveResourceHandles.Set(float64(m.resources.Live()))

	obsID := m.translator.Attach(m.setProgress)
	m.mu.Lock()
	m.observerID = obsID
	m.mu.Unlock()

	log.Printf("Job %s submitted: %s (%d bytes)", j.ID, asset.Name, len(asset.Data))
	go m.run(eng, asset, j.ID, obsID)

	return m.Snapshot(), nil
}

// run executes the attempt sequence. Submit and Reset both refuse to touch a
// non-terminal job, so m.current is stable for the life of this goroutine.
// The deferred detach carries this run's observer id: once the job turns
// terminal a new Submit may attach its own observer, and the late teardown
// must not remove it.
func (m *Machine) run(eng engine.Engine, asset Asset, id string, obsID uint64) {
	ctx, cancel := context.WithTimeout(m.baseCtx, m.cfg.ExecTimeout)
	defer cancel()
	defer m.translator.Detach(obsID)

	m.setStatus(StatusProcessing)

	if err := eng.WriteInput(ctx, InputName, asset.Data); err != nil {
		m.fail(id, err)
		return
	}

	argv := filter.Splice(filter.Build(filter.WithAudio(m.cfg.SpeedFactor), InputName, OutputName), m.extraArgs)
	if err := eng.Execute(ctx, argv); err != nil {
		log.Printf("Job %s: primary attempt failed, retrying video-only: %v", id, err)
		metrics.FallbackAttemptsTotal.Inc()
		m.setAttempt(AttemptFallback)

		argv = filter.Splice(filter.Build(filter.VideoOnly(m.cfg.SpeedFactor), InputName, OutputName), m.extraArgs)
		if err := eng.Execute(ctx, argv); err != nil {
			m.fail(id, err)
			return
		}
	}

	data, err := eng.ReadOutput(ctx, OutputName)
	if err != nil {
		m.fail(id, err)
		return
	}

	outName := OutputFileName(asset.Name)
	m.resources.Publish(resource.SlotOutput, outName, OutputMIME, data)
	metrics.LiveResourceHandles.Set(float64(m.resources.Live()))

	m.mu.Lock()
	j := m.current
	j.OutputName = outName
	j.Progress = 100
	j.CompletedAt = time.Now()
	if j.Attempt == AttemptFallback {
		j.Status = StatusPartiallySucceeded
	} else {
		j.Status = StatusSucceeded
	}
	status := j.Status
	m.mu.Unlock()

	metrics.JobsTotal.WithLabelValues(string(status)).Inc()
	log.Printf("Job %s finished: %s (%d bytes -> %s)", id, status, len(data), outName)
}

// fail moves the job to its terminal failed state. The raw error stays in the
// logs; users only ever see the generic message.
func (m *Machine) fail(id string, err error) {
	log.Printf("Job %s failed: %v", id, err)

	m.mu.Lock()
	j := m.current
	j.Status = StatusFailed
	j.Error = "processing failed; the file could not be sped up"
	j.CompletedAt = time.Now()
	m.mu.Unlock()

	metrics.JobsTotal.WithLabelValues(string(StatusFailed)).Inc()
}

// Reset clears a terminal (or absent) job back to idle and revokes every
// resource handle. The engine state is untouched.
func (m *Machine) Reset() error {
	m.mu.Lock()
	if m.current != nil && !m.current.Status.Terminal() {
		m.mu.Unlock()
		return ErrJobRunning
	}
	obsID := m.observerID
	m.current = nil
	m.observerID = 0
	m.mu.Unlock()

	m.translator.Detach(obsID)
	m.resources.RevokeAll()
	metrics.LiveResourceHandles.Set(0)
	metrics.JobProgressPercent.Set(0)
	return nil
}

func (m *Machine) setStatus(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Status = s
	}
}

func (m *Machine) setAttempt(a Attempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Attempt = a
	}
}

// setProgress is the observer fed by the progress translator.
func (m *Machine) setProgress(percent int) {
	m.mu.Lock()
	if m.current != nil && m.current.Status == StatusProcessing {
		m.current.Progress = percent
	}
	m.mu.Unlock()

	metrics.JobProgressPercent.Set(float64(percent))
}
