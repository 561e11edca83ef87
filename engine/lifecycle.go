package engine

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/Pranavd0828/make-your-video-2x/metrics"
)

// State tracks engine readiness for the process lifetime.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateLoadFailed    State = "load_failed"
)

// ErrAlreadyLoading is returned when Initialize is called while a load is in
// progress. Only a Ready lifecycle treats re-initialization as a no-op.
var ErrAlreadyLoading = errors.New("engine load already in progress")

// Lifecycle owns the single engine instance. It gates every engine operation
// behind readiness and guarantees the event subscriptions are installed
// exactly once, no matter how many load retries happen.
type Lifecycle struct {
	eng        Engine
	loadCfg    LoadConfig
	onLog      LogHandler
	onProgress ProgressHandler

	subscribeOnce sync.Once

	mu      sync.Mutex
	state   State
	lastErr string
}

func NewLifecycle(eng Engine, loadCfg LoadConfig, onLog LogHandler, onProgress ProgressHandler) *Lifecycle {
	return &Lifecycle{
		eng:        eng,
		loadCfg:    loadCfg,
		onLog:      onLog,
		onProgress: onProgress,
		state:      StateUninitialized,
	}
}

// Initialize starts an asynchronous engine load. From Uninitialized or
// LoadFailed it begins a fresh attempt; while Loading or Ready it does
// nothing. The returned error only reflects whether a load was started, not
// its outcome.
func (l *Lifecycle) Initialize(ctx context.Context) error {
	l.mu.Lock()
	switch l.state {
	case StateLoading:
		l.mu.Unlock()
		return ErrAlreadyLoading
	case StateReady:
		l.mu.Unlock()
		return nil
	}
	l.state = StateLoading
	l.lastErr = ""
	l.mu.Unlock()

	go l.load(ctx)
	return nil
}

func (l *Lifecycle) load(ctx context.Context) {
	err := l.eng.Load(ctx, l.loadCfg)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		log.Printf("Engine load failed: %v", err)
		l.state = StateLoadFailed
		l.lastErr = err.Error()
		metrics.EngineLoadsTotal.WithLabelValues("failed").Inc()
		return
	}

	l.subscribeOnce.Do(func() {
		if l.onLog != nil {
			l.eng.OnLog(l.onLog)
		}
		if l.onProgress != nil {
			l.eng.OnProgress(l.onProgress)
		}
	})

	log.Println("Engine ready")
	l.state = StateReady
	metrics.EngineLoadsTotal.WithLabelValues("ok").Inc()
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// LoadError returns the message of the last failed load, if any.
func (l *Lifecycle) LoadError() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Handle returns the engine capability, but only once Ready.
func (l *Lifecycle) Handle() (Engine, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateReady {
		return nil, false
	}
	return l.eng, true
}
