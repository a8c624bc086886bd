package audio

import (
	"fmt"
	"math"
)

// Format describes a PCM16LE stream
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat returns the gateway's default capture format
func DefaultFormat() Format {
	return Format{
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// BytesPerSecond returns the PCM byte rate for this format
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// Duration returns the play length in seconds of pcmLen bytes in this format
func (f Format) Duration(pcmLen int) float64 {
	rate := f.BytesPerSecond()
	if rate == 0 {
		return 0
	}
	return float64(pcmLen) / float64(rate)
}

// SamplesFromPCM16 converts little-endian 16-bit PCM bytes to signed samples
// The byte length must be even
func SamplesFromPCM16(pcm []byte) ([]int16, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even (16-bit samples), got %d", len(pcm))
	}

	samples := make([]int16, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return samples, nil
}

// PCM16FromSamples converts signed samples back to little-endian 16-bit bytes
func PCM16FromSamples(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, sample := range samples {
		pcm[i*2] = byte(sample)
		pcm[i*2+1] = byte(sample >> 8)
	}
	return pcm
}

// MaxAbs returns the maximum absolute sample value
func MaxAbs(samples []int16) int {
	maxVal := 0
	for _, sample := range samples {
		abs := int(sample)
		if abs < 0 {
			abs = -abs
		}
		if abs > maxVal {
			maxVal = abs
		}
	}
	return maxVal
}

// RMS calculates the root mean square of audio samples
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
