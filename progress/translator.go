package progress

import (
	"log"
	"math"
	"sync"
)

// Observer receives normalized progress percentages for the active job.
type Observer func(percent int)

// Percent converts a raw engine progress fraction into an integer percentage.
// Raw fractions are not trustworthy: they may exceed 1 or regress, so the
// result is always clamped to [0, 100].
func Percent(fraction float64) int {
	p := int(math.Round(fraction * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Translator forwards engine progress events to whichever observer is
// currently attached. At most one observer is attached at a time.
type Translator struct {
	mu         sync.Mutex
	observer   Observer
	observerID uint64
	nextID     uint64
}

func NewTranslator() *Translator {
	return &Translator{}
}

// Attach replaces the current observer and returns its identity. The id must
// be presented to Detach, so a stale teardown of a superseded observer can
// never remove its successor.
func (t *Translator) Attach(o Observer) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.observer = o
	t.observerID = t.nextID
	return t.observerID
}

// Detach removes the observer identified by id; later events are dropped.
// Detaching an already-replaced observer is a no-op.
func (t *Translator) Detach(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id != 0 && t.observerID == id {
		t.observer = nil
		t.observerID = 0
	}
}

// OnFraction translates one raw progress fraction and delivers it.
func (t *Translator) OnFraction(fraction float64) {
	t.mu.Lock()
	o := t.observer
	t.mu.Unlock()

	if o != nil {
		o(Percent(fraction))
	}
}

// OnLog handles an engine log line. Log text is diagnostic only and never
// feeds back into job state.
func (t *Translator) OnLog(message string) {
	log.Printf("[engine] %s", message)
}
