package ingest

import (
	"strings"
	"sync"
	"time"
)

// Throttler coalesces finalized transcript fragments and runs the realtime
// NLP compute at most once per throttle window. At any instant there is at
// most one scheduled-but-not-yet-run compute; fragments arriving while one
// is pending only extend its buffer.
type Throttler struct {
	mu       sync.Mutex
	buffer   strings.Builder
	lastEmit time.Time
	pending  *time.Timer
	window   time.Duration
	compute  func(text string)
	closed   bool
}

// NewThrottler creates a throttler that invokes compute with the accumulated
// text. The first window is measured from creation time.
func NewThrottler(window time.Duration, compute func(text string)) *Throttler {
	return &Throttler{
		window:   window,
		compute:  compute,
		lastEmit: time.Now(),
	}
}

// OnFinalSentence buffers one finalized fragment. If the throttle window has
// already elapsed since the last compute, the compute runs now; otherwise one
// is scheduled for the remainder of the window unless already pending.
func (t *Throttler) OnFinalSentence(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	if t.buffer.Len() > 0 {
		t.buffer.WriteString("\n")
	}
	t.buffer.WriteString(text)

	now := time.Now()
	elapsed := now.Sub(t.lastEmit)
	if elapsed >= t.window {
		t.lastEmit = now
		snapshot := t.takeBufferLocked()
		t.mu.Unlock()

		go t.compute(snapshot)
		return
	}

	if t.pending == nil {
		t.pending = time.AfterFunc(t.window-elapsed, t.fire)
	}
	t.mu.Unlock()
}

// fire runs a scheduled compute on its timer goroutine
func (t *Throttler) fire() {
	t.mu.Lock()
	t.pending = nil
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.lastEmit = time.Now()
	snapshot := t.takeBufferLocked()
	t.mu.Unlock()

	if snapshot == "" {
		return
	}
	t.compute(snapshot)
}

// takeBufferLocked snapshots and clears the accumulated text.
// Caller must hold t.mu.
func (t *Throttler) takeBufferLocked() string {
	snapshot := strings.TrimSpace(t.buffer.String())
	t.buffer.Reset()
	return snapshot
}

// Cancel drops any scheduled compute and buffered text without flushing.
// The throttler accepts no further fragments afterwards.
func (t *Throttler) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.buffer.Reset()
}
