package download

import (
	"fmt"
	"sync"

	"github.com/handiism/media-downloader/internal/model"
)

// Tracker turns byte counts of one item into Progress reports.
//
// While downloading, Percent is floor(bytes*100/total) clamped to [0, 99]
// and never decreases, even when a retried fragment rewinds the byte count.
// Only Complete moves it to 100.
type Tracker struct {
	mu       sync.Mutex
	item     *model.Item
	total    int64
	bytes    int64
	percent  int
	phase    model.Phase
	state    model.ItemState
	onUpdate func(model.Progress)
}

// NewTracker creates a tracker for item. onUpdate may be nil.
func NewTracker(item *model.Item, onUpdate func(model.Progress)) *Tracker {
	return &Tracker{
		item:     item,
		phase:    model.PhaseDownloading,
		state:    model.StatePending,
		onUpdate: onUpdate,
	}
}

// SetTotal sets the expected byte count. Zero or less means unknown.
func (t *Tracker) SetTotal(total int64) {
	t.mu.Lock()
	t.total = total
	t.mu.Unlock()
}

// Add records n transferred bytes. Negative n rewinds a retried fragment.
func (t *Tracker) Add(n int64) {
	t.mu.Lock()
	t.bytes += n
	if t.bytes < 0 {
		t.bytes = 0
	}
	if t.total > 0 {
		p := int(t.bytes * 100 / t.total)
		p = min(max(p, 0), 99)
		t.percent = max(t.percent, p)
	}
	t.emit()
	t.mu.Unlock()
}

// Transition moves the item to state next.
func (t *Tracker) Transition(next model.ItemState) error {
	t.mu.Lock()
	if !t.state.CanTransition(next) {
		cur := t.state
		t.mu.Unlock()
		return fmt.Errorf("item %s: invalid transition %s -> %s", t.item.Key(), cur, next)
	}
	t.state = next
	t.emit()
	t.mu.Unlock()
	return nil
}

// Fail moves the item to StateFailed unless it already finished.
func (t *Tracker) Fail() {
	t.mu.Lock()
	if t.state.IsTerminal() {
		t.mu.Unlock()
		return
	}
	t.state = model.StateFailed
	t.emit()
	t.mu.Unlock()
}

// Complete snaps progress to 100 once the transfer is confirmed.
func (t *Tracker) Complete() {
	t.mu.Lock()
	t.percent = 100
	t.emit()
	t.mu.Unlock()
}

// Phase reports a new coarse phase.
func (t *Tracker) Phase(phase model.Phase) {
	t.mu.Lock()
	t.phase = phase
	t.emit()
	t.mu.Unlock()
}

// Progress returns the current report.
func (t *Tracker) Progress() model.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

func (t *Tracker) snapshot() model.Progress {
	return model.Progress{
		ItemID:        t.item.Key(),
		Title:         t.item.Title,
		Phase:         t.phase,
		State:         t.state,
		Percent:       t.percent,
		Indeterminate: t.total <= 0 && t.percent < 100,
		Bytes:         t.bytes,
		Total:         max(t.total, 0),
	}
}

// emit runs under t.mu so reports are delivered in order.
func (t *Tracker) emit() {
	if t.onUpdate != nil {
		t.onUpdate(t.snapshot())
	}
}
