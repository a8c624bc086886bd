package audio

import (
	"math"

	"github.com/rs/zerolog"
)

// GainConfig holds tuning for automatic gain normalization
type GainConfig struct {
	TargetPeakRatio float64 // Fraction of int16 max to normalize the peak toward
	MaxGain         float64 // Clamp for the computed gain
	ApplyThreshold  float64 // Gains at or below this are left unapplied
	SilenceMaxAbs   int     // Peak below this may indicate a dead input
	SilenceRMS      float64 // RMS below this may indicate a dead input
}

// DefaultGainConfig returns the default AGC tuning
func DefaultGainConfig() GainConfig {
	return GainConfig{
		TargetPeakRatio: 0.85,
		MaxGain:         4.0,
		ApplyThreshold:  1.05,
		SilenceMaxAbs:   50,
		SilenceRMS:      20,
	}
}

// NormalizeGain applies bounded linear gain to a PCM16LE buffer so its peak
// approaches TargetPeakRatio of full scale. Likely-silent buffers are
// returned unchanged so noise is not amplified. Malformed buffers are
// returned unchanged as well; persistence must never fail on gain analysis.
func NormalizeGain(pcm []byte, cfg GainConfig, logger zerolog.Logger) []byte {
	samples, err := SamplesFromPCM16(pcm)
	if err != nil {
		logger.Warn().Err(err).Msg("Gain analysis skipped for malformed PCM buffer")
		return pcm
	}
	if len(samples) == 0 {
		return pcm
	}

	maxAbs := MaxAbs(samples)
	rms := RMS(samples)
	logger.Debug().
		Int("samples", len(samples)).
		Int("max_abs", maxAbs).
		Float64("rms", rms).
		Msg("PCM amplitude analysis")

	if maxAbs < cfg.SilenceMaxAbs && rms < cfg.SilenceRMS {
		logger.Warn().Msg("PCM amplitude is near zero, likely silent input; check microphone and device permissions")
		return pcm
	}

	targetPeak := cfg.TargetPeakRatio * float64(math.MaxInt16)
	gain := 1.0
	if maxAbs > 0 {
		gain = targetPeak / float64(maxAbs)
	}
	if gain > cfg.MaxGain {
		gain = cfg.MaxGain
	}
	if gain <= cfg.ApplyThreshold {
		return pcm
	}

	logger.Info().Float64("gain", gain).Msg("Applying automatic gain")

	out := make([]int16, len(samples))
	for i, sample := range samples {
		v := int(float64(sample) * gain)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return PCM16FromSamples(out)
}
