package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voicetrail/audio-gateway/internal/audio"
	"github.com/voicetrail/audio-gateway/internal/config"
	"github.com/voicetrail/audio-gateway/internal/observability"
	"github.com/voicetrail/audio-gateway/internal/store"
)

// segmentSnapshot is a frozen copy of one segment's state, owned exclusively
// by the persister once taken. The session buffer is cleared at snapshot time
// so accumulation of the next segment can continue concurrently.
type segmentSnapshot struct {
	chunks     [][]byte
	transcript string
	timestamps []float64
	startedAt  time.Time
	is24x7     bool
}

// Persister writes segment snapshots to disk and registers them with the
// storage backend. Detached persists are tracked so teardown can join them.
type Persister struct {
	cfg     *config.Config
	store   store.Store
	logger  zerolog.Logger
	metrics *observability.SessionMetrics
	wg      sync.WaitGroup
}

// NewPersister creates a persister for one session
func NewPersister(cfg *config.Config, st store.Store, logger zerolog.Logger, metrics *observability.SessionMetrics) *Persister {
	return &Persister{
		cfg:     cfg,
		store:   st,
		logger:  logger.With().Str("component", "persister").Logger(),
		metrics: metrics,
	}
}

// Persist normalizes gain, wraps the PCM in a WAV container, writes the file
// under the date-partitioned audio directory, and registers the recording.
// A transcription row is created only when there is transcript text.
func (p *Persister) Persist(ctx context.Context, snap segmentSnapshot, reason string) (int64, float64, error) {
	if len(snap.chunks) == 0 && snap.transcript == "" {
		return 0, 0, nil
	}
	if len(snap.chunks) == 0 {
		p.logger.Info().Msg("Segment has transcript text but no audio, nothing to persist")
		return 0, 0, nil
	}

	pcm := concatChunks(snap.chunks)
	format := audio.Format{
		SampleRate:    p.cfg.SampleRate,
		Channels:      p.cfg.Channels,
		BitsPerSample: p.cfg.BitsPerSample,
	}
	duration := format.Duration(len(pcm))

	pcm = audio.NormalizeGain(pcm, audio.GainConfig{
		TargetPeakRatio: p.cfg.AGCTargetPeakRatio,
		MaxGain:         p.cfg.AGCMaxGain,
		ApplyThreshold:  p.cfg.AGCApplyThreshold,
		SilenceMaxAbs:   p.cfg.SilenceMaxAbs,
		SilenceRMS:      p.cfg.SilenceRMS,
	}, p.logger)
	wav := audio.BuildWAV(pcm, format)

	filePath := p.audioFilePath(snap.startedAt)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return 0, 0, fmt.Errorf("create audio directory: %w", err)
	}
	if err := os.WriteFile(filePath, wav, 0o644); err != nil {
		return 0, 0, fmt.Errorf("write audio file: %w", err)
	}

	recordingID, err := p.store.CreateRecording(ctx, store.NewRecording{
		FilePath: filePath,
		FileSize: int64(len(wav)),
		Duration: duration,
		Is24x7:   snap.is24x7,
	})
	if err != nil {
		return 0, 0, err
	}

	if snap.transcript != "" {
		if err := p.store.SaveTranscription(ctx, store.NewTranscription{
			RecordingID:       recordingID,
			OriginalText:      snap.transcript,
			AutoOptimize:      true,
			SegmentTimestamps: snap.timestamps,
		}); err != nil {
			return recordingID, duration, err
		}
	}

	p.metrics.RecordSegmentSaved(reason, len(wav))
	p.logger.Info().
		Int64("recording_id", recordingID).
		Float64("duration", duration).
		Str("reason", reason).
		Str("file_path", filePath).
		Msg("Segment persisted")
	return recordingID, duration, nil
}

// PersistAsync runs Persist in a background goroutine. Failures are logged
// and never propagate; Wait joins all outstanding persists.
func (p *Persister) PersistAsync(snap segmentSnapshot, reason string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 2*p.cfg.StoreTimeout+time.Minute)
		defer cancel()

		if _, _, err := p.Persist(ctx, snap, reason); err != nil {
			p.metrics.RecordError("persist", "persister")
			p.logger.Error().Err(err).Str("reason", reason).Msg("Failed to persist segment")
		}
	}()
}

// Wait blocks until all detached persists finish or the timeout expires.
// It reports whether everything finished in time.
func (p *Persister) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// audioFilePath returns the date-partitioned path for a segment started at t,
// e.g. <dir>/2026/08/29/143000.wav
func (p *Persister) audioFilePath(t time.Time) string {
	return filepath.Join(p.cfg.AudioDir, t.Format("2006/01/02"), t.Format("150405")+".wav")
}

func concatChunks(chunks [][]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	pcm := make([]byte, 0, total)
	for _, c := range chunks {
		pcm = append(pcm, c...)
	}
	return pcm
}
