package audio

// SilenceConfig holds amplitude thresholds for silence classification
type SilenceConfig struct {
	MaxAbs int     // Maximum absolute amplitude threshold
	RMS    float64 // RMS threshold
}

// DefaultSilenceConfig returns the default classification thresholds
func DefaultSilenceConfig() SilenceConfig {
	return SilenceConfig{
		MaxAbs: 50,
		RMS:    20,
	}
}

// IsSilence reports whether a PCM16LE window counts as silence: both the
// peak and the RMS must fall under their thresholds. An empty window is
// silent; a malformed window is not (a decode failure never feeds the
// silence clock).
func IsSilence(pcm []byte, cfg SilenceConfig) bool {
	samples, err := SamplesFromPCM16(pcm)
	if err != nil {
		return false
	}
	if len(samples) == 0 {
		return true
	}

	return MaxAbs(samples) < cfg.MaxAbs && RMS(samples) < cfg.RMS
}
