package job

import (
	"path/filepath"
	"strings"
	"time"
)

// Status is the lifecycle of the single active job.
type Status string

const (
	StatusIdle               Status = "idle"
	StatusReady              Status = "ready"
	StatusProcessing         Status = "processing"
	StatusSucceeded          Status = "succeeded"
	StatusPartiallySucceeded Status = "partially_succeeded"
	StatusFailed             Status = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusPartiallySucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

// Attempt marks which filter plan a job is currently running.
type Attempt string

const (
	AttemptPrimary  Attempt = "primary"
	AttemptFallback Attempt = "fallback"
)

// Asset is an accepted upload: the original file name, its MIME type and the
// raw bytes.
type Asset struct {
	Name string
	MIME string
	Data []byte
}

// Job is the one unit of work the machine tracks. The machine is its sole
// mutator.
type Job struct {
	ID          string
	InputName   string
	OutputName  string
	Attempt     Attempt
	Status      Status
	Progress    int
	Error       string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// Logical names inside the engine workspace. Every job reuses the same pair.
const (
	InputName  = "input.media"
	OutputName = "output.mp4"
)

// OutputMIME is the container type of every produced result.
const OutputMIME = "video/mp4"

// OutputFileName derives the user-facing result name from the original
// upload name.
func OutputFileName(original string) string {
	base := filepath.Base(original)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." {
		stem = "video"
	}
	return "sped_up_" + stem + ".mp4"
}
