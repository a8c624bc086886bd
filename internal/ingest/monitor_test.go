package ingest

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/voicetrail/audio-gateway/internal/audio"
)

func testMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PollInterval:       10 * time.Millisecond,
		MaxSegmentDuration: time.Hour,
		SilenceAfter:       time.Hour,
		SilenceWindow:      10,
		ErrorBackoff:       10 * time.Millisecond,
		Silence:            audio.DefaultSilenceConfig(),
	}
}

func TestMonitor_TimeTrigger(t *testing.T) {
	cfg := testConfig(t)
	st := newFakeStore()
	s := newBareSession(cfg, st)
	s.is24x7 = true
	s.chunks = [][]byte{nonSilentFrame()}

	mcfg := testMonitorConfig()
	mcfg.MaxSegmentDuration = 50 * time.Millisecond
	m := NewMonitor(s, mcfg, zerolog.Nop())
	m.Start()
	defer m.Stop()

	rec := waitForRecording(t, st)
	if !rec.Is24x7 {
		t.Error("Expected is_24x7 true on segment recording")
	}

	// Several more polls pass with an empty buffer; no further recording
	// may be created until new audio arrives
	time.Sleep(120 * time.Millisecond)
	if recordings, _ := st.counts(); recordings != 1 {
		t.Errorf("Expected exactly 1 recording per boundary crossing, got %d", recordings)
	}

	// New audio starts the next segment; the clock was reset at the first
	// trigger so another boundary crossing produces exactly one more
	s.appendChunk(nonSilentFrame())
	waitForRecording(t, st)
	if recordings, _ := st.counts(); recordings != 2 {
		t.Errorf("Expected 2 recordings after second crossing, got %d", recordings)
	}
}

func TestMonitor_SilenceTrigger(t *testing.T) {
	cfg := testConfig(t)
	st := newFakeStore()
	s := newBareSession(cfg, st)
	s.is24x7 = true
	s.chunks = [][]byte{silentFrame(), silentFrame()}

	mcfg := testMonitorConfig()
	mcfg.SilenceAfter = 40 * time.Millisecond
	m := NewMonitor(s, mcfg, zerolog.Nop())
	m.Start()
	defer m.Stop()

	waitForRecording(t, st)

	time.Sleep(120 * time.Millisecond)
	if recordings, _ := st.counts(); recordings != 1 {
		t.Errorf("Expected exactly 1 silence-triggered recording, got %d", recordings)
	}
}

func TestMonitor_SilenceClockResetsOnSpeech(t *testing.T) {
	cfg := testConfig(t)
	st := newFakeStore()
	s := newBareSession(cfg, st)
	s.is24x7 = true
	s.chunks = [][]byte{silentFrame()}

	mcfg := testMonitorConfig()
	mcfg.SilenceAfter = 60 * time.Millisecond
	m := NewMonitor(s, mcfg, zerolog.Nop())
	m.Start()
	defer m.Stop()

	// Speech arrives before the silence threshold; the recent window is no
	// longer silent, so the clock resets and nothing fires
	time.Sleep(30 * time.Millisecond)
	s.appendChunk(nonSilentFrame())
	time.Sleep(100 * time.Millisecond)

	if recordings, _ := st.counts(); recordings != 0 {
		t.Errorf("Expected no recording after speech resumed, got %d", recordings)
	}
}

func TestMonitor_ManualTrigger(t *testing.T) {
	cfg := testConfig(t)
	st := newFakeStore()
	s := newBareSession(cfg, st)
	s.is24x7 = true
	s.chunks = [][]byte{nonSilentFrame()}

	m := NewMonitor(s, testMonitorConfig(), zerolog.Nop())
	m.Start()
	defer m.Stop()

	s.mu.Lock()
	s.segmentRequested = true
	s.mu.Unlock()

	waitForRecording(t, st)

	s.mu.Lock()
	requested := s.segmentRequested
	s.mu.Unlock()
	if requested {
		t.Error("Expected segment request flag to be cleared after trigger")
	}

	if recordings, _ := st.counts(); recordings != 1 {
		t.Errorf("Expected 1 manual recording, got %d", recordings)
	}
}

func TestMonitor_StopJoins(t *testing.T) {
	cfg := testConfig(t)
	st := newFakeStore()
	s := newBareSession(cfg, st)
	s.is24x7 = true

	m := NewMonitor(s, testMonitorConfig(), zerolog.Nop())
	m.Start()

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Monitor.Stop did not join the poll loop")
	}

	// Stopping twice must not panic or hang
	m.Stop()
}

func TestSegmentSaved_BufferClearedAtomically(t *testing.T) {
	cfg := testConfig(t)
	st := newFakeStore()
	s := newBareSession(cfg, st)
	s.is24x7 = true
	s.chunks = [][]byte{nonSilentFrame()}
	s.transcript = "segment one"

	if err := s.saveSegment(ReasonManual); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	s.mu.Lock()
	chunks, transcript := len(s.chunks), s.transcript
	s.mu.Unlock()
	if chunks != 0 || transcript != "" {
		t.Errorf("Expected buffer cleared at segmentation, got %d chunks, transcript %q", chunks, transcript)
	}

	// The snapshot drives persistence with the pre-clear contents
	waitForRecording(t, st)
	if !s.persister.Wait(2 * time.Second) {
		t.Fatal("Timed out waiting for detached persist to finish")
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.transcriptions) != 1 || st.transcriptions[0].OriginalText != "segment one" {
		t.Errorf("Expected persisted transcript from snapshot, got %+v", st.transcriptions)
	}

	// SegmentSaved was queued for the client
	select {
	case env := <-s.events:
		if env.Header.Name != EventSegmentSaved {
			t.Errorf("Expected SegmentSaved event, got %s", env.Header.Name)
		}
	default:
		t.Error("Expected a SegmentSaved event in the outbound queue")
	}
}
