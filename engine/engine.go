package engine

import (
	"context"
	"errors"
	"time"
)

// ErrExec is the opaque execution failure. The engine does not distinguish
// causes; a nonzero exit is a nonzero exit.
var ErrExec = errors.New("engine execution failed")

// ErrNotLoaded is returned when an operation runs before a successful Load.
var ErrNotLoaded = errors.New("engine not loaded")

// LoadConfig names the two artifacts the engine needs: the transcoder
// program and the probe program.
type LoadConfig struct {
	FFmpegRef  string
	FFProbeRef string
}

// LogEvent carries one diagnostic line from the engine.
type LogEvent struct {
	Message string
}

// ProgressEvent carries a raw completion fraction. Fractions are best-effort:
// they may exceed 1 and are not guaranteed monotonic.
type ProgressEvent struct {
	Progress float64
	Time     time.Duration
}

type LogHandler func(LogEvent)

type ProgressHandler func(ProgressEvent)

// Engine is the media-processing capability the job machine drives. Input and
// output names are logical: they resolve inside the engine's private
// workspace, never outside it.
type Engine interface {
	Load(ctx context.Context, cfg LoadConfig) error
	OnLog(h LogHandler)
	OnProgress(h ProgressHandler)
	WriteInput(ctx context.Context, name string, data []byte) error
	Execute(ctx context.Context, argv []string) error
	ReadOutput(ctx context.Context, name string) ([]byte, error)
}
