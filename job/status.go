package job

import (
	"fmt"

	"github.com/Pranavd0828/make-your-video-2x/engine"
)

// Snapshot is a read-only view of the machine for API responses. The message
// is always derived from the two state machines, never stored.
type Snapshot struct {
	Active     bool    `json:"active"`
	ID         string  `json:"id,omitempty"`
	Status     Status  `json:"status"`
	Attempt    Attempt `json:"attempt,omitempty"`
	Progress   int     `json:"progressPercent"`
	Message    string  `json:"message"`
	Error      string  `json:"error,omitempty"`
	InputName  string  `json:"inputName,omitempty"`
	OutputName string  `json:"outputName,omitempty"`
}

// Snapshot returns the current job view, including derived status text.
func (m *Machine) Snapshot() Snapshot {
	es := m.engines.State()
	loadErr := m.engines.LoadError()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return Snapshot{
			Status:  StatusIdle,
			Message: statusText(es, loadErr, StatusIdle, AttemptPrimary, 0),
		}
	}

	j := m.current
	return Snapshot{
		Active:     !j.Status.Terminal(),
		ID:         j.ID,
		Status:     j.Status,
		Attempt:    j.Attempt,
		Progress:   j.Progress,
		Message:    statusText(es, loadErr, j.Status, j.Attempt, j.Progress),
		Error:      j.Error,
		InputName:  j.InputName,
		OutputName: j.OutputName,
	}
}

func statusText(es engine.State, loadErr string, js Status, attempt Attempt, percent int) string {
	switch es {
	case engine.StateUninitialized:
		return "Engine not initialized"
	case engine.StateLoading:
		return "Loading engine..."
	case engine.StateLoadFailed:
		return "Engine failed to load: " + loadErr
	}

	switch js {
	case StatusIdle:
		return "Ready. Upload a video to speed it up."
	case StatusReady:
		return "File accepted, starting"
	case StatusProcessing:
		if attempt == AttemptFallback {
			return fmt.Sprintf("Processing without audio... %d%%", percent)
		}
		return fmt.Sprintf("Processing... %d%%", percent)
	case StatusSucceeded:
		return "Done. Your 2x video is ready."
	case StatusPartiallySucceeded:
		return "Done. The audio track could not be processed and was dropped."
	case StatusFailed:
		return "Processing failed. Please try a different file."
	}
	return ""
}
