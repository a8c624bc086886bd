package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/voicetrail/audio-gateway/internal/audio"
	"github.com/voicetrail/audio-gateway/internal/config"
)

// Segmentation trigger reasons
const (
	ReasonTime    = "time"
	ReasonSilence = "silence"
	ReasonManual  = "manual"
	ReasonFinal   = "final"
)

// MonitorConfig holds the segmentation monitor tuning
type MonitorConfig struct {
	PollInterval       time.Duration // Time between trigger evaluations
	MaxSegmentDuration time.Duration // Elapsed-time trigger threshold
	SilenceAfter       time.Duration // Sustained-silence trigger threshold
	SilenceWindow      int           // Recent chunks inspected for silence
	ErrorBackoff       time.Duration // Wait after a failed poll iteration
	Silence            audio.SilenceConfig
}

// MonitorConfigFrom derives the monitor tuning from service configuration
func MonitorConfigFrom(cfg *config.Config) MonitorConfig {
	return MonitorConfig{
		PollInterval:       cfg.SegmentPollInterval,
		MaxSegmentDuration: cfg.SegmentMaxDuration,
		SilenceAfter:       cfg.SilenceSegmentAfter,
		SilenceWindow:      cfg.SegmentSilenceWindow,
		ErrorBackoff:       cfg.MonitorErrorBackoff,
		Silence: audio.SilenceConfig{
			MaxAbs: cfg.SilenceMaxAbs,
			RMS:    cfg.SilenceRMS,
		},
	}
}

// Monitor runs the periodic segmentation check for a continuous-capture
// session. It evaluates elapsed time, sustained silence, and explicit
// segmentation requests, firing at most one trigger per poll. Any trigger
// resets both the elapsed-time and silence clocks.
type Monitor struct {
	session *Session
	cfg     MonitorConfig
	logger  zerolog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMonitor creates a monitor for the given session
func NewMonitor(s *Session, cfg MonitorConfig, logger zerolog.Logger) *Monitor {
	return &Monitor{
		session: s,
		cfg:     cfg,
		logger:  logger.With().Str("component", "monitor").Logger(),
		done:    make(chan struct{}),
	}
}

// Start launches the poll loop
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.run(ctx)
}

// Stop cancels the poll loop and waits for it to exit. Stopping before
// final persistence guarantees the monitor never races the final save.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	segmentStart := time.Now()
	var silenceStart time.Time

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug().Msg("Segmentation monitor cancelled")
			return
		case <-ticker.C:
		}

		if !m.session.isConnected() {
			return
		}

		now := time.Now()
		reason, ok := m.evaluate(now, segmentStart, &silenceStart)
		if !ok {
			continue
		}

		if err := m.session.saveSegment(reason); err != nil {
			m.logger.Error().Err(err).Str("reason", reason).Msg("Segmentation failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.cfg.ErrorBackoff):
			}
			continue
		}

		segmentStart = now
		silenceStart = time.Time{}
	}
}

// evaluate checks the three triggers in fixed order and returns the first
// that fires. The silence clock is tracked across polls via silenceStart.
func (m *Monitor) evaluate(now time.Time, segmentStart time.Time, silenceStart *time.Time) (string, bool) {
	if now.Sub(segmentStart) >= m.cfg.MaxSegmentDuration {
		m.logger.Info().Msg("Segment duration limit reached")
		return ReasonTime, true
	}

	if window := m.session.recentWindow(m.cfg.SilenceWindow); len(window) > 0 {
		if audio.IsSilence(window, m.cfg.Silence) {
			if silenceStart.IsZero() {
				*silenceStart = now
			} else if now.Sub(*silenceStart) >= m.cfg.SilenceAfter {
				m.logger.Info().
					Float64("silence_seconds", now.Sub(*silenceStart).Seconds()).
					Msg("Sustained silence detected")
				return ReasonSilence, true
			}
		} else {
			// Speech resumed
			*silenceStart = time.Time{}
		}
	}

	if m.session.takeSegmentRequest() {
		m.logger.Info().Msg("Segmentation requested by client")
		return ReasonManual, true
	}

	return "", false
}
