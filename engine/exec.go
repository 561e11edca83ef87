package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Pranavd0828/make-your-video-2x/config"
)

// Exec is the ffmpeg-backed engine. All logical input/output names resolve
// inside a private workspace directory created at Load.
type Exec struct {
	cfg *config.Config

	mu         sync.Mutex
	ffmpegBin  string
	ffprobeBin string
	workDir    string

	handlerMu        sync.Mutex
	logHandlers      []LogHandler
	progressHandlers []ProgressHandler
}

func NewExec(cfg *config.Config) *Exec {
	return &Exec{cfg: cfg}
}

// Load resolves both engine artifacts and creates the workspace. Safe to call
// again after a failed or partial load.
func (e *Exec) Load(ctx context.Context, lc LoadConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ffmpegBin, err := exec.LookPath(lc.FFmpegRef)
	if err != nil {
		return fmt.Errorf("ffmpeg binary not found: %s: %w", lc.FFmpegRef, err)
	}
	ffprobeBin, err := exec.LookPath(lc.FFProbeRef)
	if err != nil {
		return fmt.Errorf("ffprobe binary not found: %s: %w", lc.FFProbeRef, err)
	}

	workDir, err := os.MkdirTemp("", "speedup_")
	if err != nil {
		return fmt.Errorf("could not create engine workspace: %w", err)
	}

	e.mu.Lock()
	if e.workDir != "" {
		os.RemoveAll(e.workDir)
	}
	e.ffmpegBin = ffmpegBin
	e.ffprobeBin = ffprobeBin
	e.workDir = workDir
	e.mu.Unlock()

	log.Printf("Engine workspace: %s", workDir)
	return nil
}

func (e *Exec) OnLog(h LogHandler) {
	e.handlerMu.Lock()
	defer e.handlerMu.Unlock()
	e.logHandlers = append(e.logHandlers, h)
}

func (e *Exec) OnProgress(h ProgressHandler) {
	e.handlerMu.Lock()
	defer e.handlerMu.Unlock()
	e.progressHandlers = append(e.progressHandlers, h)
}

// WriteInput stores bytes under a logical name in the workspace.
func (e *Exec) WriteInput(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := e.resolve(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Execute runs ffmpeg with the given arguments, relative to the workspace.
// Progress is parsed from -progress output and emitted as fractional events;
// stderr lines are emitted as log events. Failure cause is opaque: any
// nonzero exit surfaces as ErrExec.
func (e *Exec) Execute(ctx context.Context, argv []string) error {
	e.mu.Lock()
	bin, dir := e.ffmpegBin, e.workDir
	e.mu.Unlock()
	if bin == "" || dir == "" {
		return ErrNotLoaded
	}

	if err := e.checkResources(dir); err != nil {
		return fmt.Errorf("insufficient system resources: %w", err)
	}

	totalMs := e.probeInputMillis(ctx, argv)

	args := append([]string{"-y", "-progress", "pipe:1", "-nostats"}, argv...)
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	log.Printf("Executing: %s %s", bin, strings.Join(args, " "))

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrExec, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		e.scanProgress(stdout, totalMs)
	}()

	var lastLines []string
	go func() {
		defer wg.Done()
		sc := bufio.NewScanner(stderr)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			e.emitLog(line)
			lastLines = append(lastLines, line)
			if len(lastLines) > 8 {
				lastLines = lastLines[1:]
			}
		}
	}()

	wg.Wait()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%w: %v: %s", ErrExec, err, strings.Join(lastLines, "; "))
	}

	e.emitProgress(1, 0)
	return nil
}

// ReadOutput returns the bytes of a workspace file written by Execute.
func (e *Exec) ReadOutput(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := e.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Close removes the workspace directory.
func (e *Exec) Close() error {
	e.mu.Lock()
	dir := e.workDir
	e.workDir = ""
	e.mu.Unlock()

	if dir == "" {
		return nil
	}
	return os.RemoveAll(dir)
}

// resolve maps a logical media name to a workspace path. Names must be bare
// file names; anything resembling a path is rejected.
func (e *Exec) resolve(name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid media name: %q", name)
	}

	e.mu.Lock()
	dir := e.workDir
	e.mu.Unlock()
	if dir == "" {
		return "", ErrNotLoaded
	}
	return filepath.Join(dir, name), nil
}

func (e *Exec) scanProgress(r io.Reader, totalMs int64) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_ms":
			// out_time_ms is microseconds despite the name.
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || totalMs <= 0 {
				continue
			}
			elapsed := time.Duration(us) * time.Microsecond
			e.emitProgress(float64(elapsed.Milliseconds())/float64(totalMs), elapsed)
		case "progress":
			if value == "end" {
				e.emitProgress(1, 0)
			}
		}
	}
}

// probeInputMillis reads the duration of the argv's input file so progress
// fractions have a denominator. Failures just disable scaled progress.
func (e *Exec) probeInputMillis(ctx context.Context, argv []string) int64 {
	var input string
	for i, a := range argv {
		if a == "-i" && i+1 < len(argv) {
			input = argv[i+1]
			break
		}
	}
	if input == "" {
		return 0
	}

	path, err := e.resolve(input)
	if err != nil {
		return 0
	}

	e.mu.Lock()
	probe := e.ffprobeBin
	e.mu.Unlock()

	out, err := exec.CommandContext(ctx, probe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=nokey=1:noprint_wrappers=1",
		path,
	).Output()
	if err != nil {
		return 0
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return int64(secs * 1000)
}

func (e *Exec) emitLog(message string) {
	e.handlerMu.Lock()
	handlers := append([]LogHandler(nil), e.logHandlers...)
	e.handlerMu.Unlock()

	ev := LogEvent{Message: message}
	for _, h := range handlers {
		h(ev)
	}
}

func (e *Exec) emitProgress(fraction float64, elapsed time.Duration) {
	e.handlerMu.Lock()
	handlers := append([]ProgressHandler(nil), e.progressHandlers...)
	e.handlerMu.Unlock()

	ev := ProgressEvent{Progress: fraction, Time: elapsed}
	for _, h := range handlers {
		h(ev)
	}
}
