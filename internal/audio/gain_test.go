package audio

import (
	"bytes"
	"math"
	"testing"

	"github.com/rs/zerolog"
)

func quietPCM(n int, amplitude int16) []byte {
	samples := make([]int16, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = amplitude
		} else {
			samples[i] = -amplitude
		}
	}
	return PCM16FromSamples(samples)
}

func TestNormalizeGain_AmplifiesQuietAudio(t *testing.T) {
	cfg := DefaultGainConfig()
	pcm := quietPCM(1600, 2000)

	out := NormalizeGain(pcm, cfg, zerolog.Nop())
	if bytes.Equal(out, pcm) {
		t.Fatal("Expected quiet audio to be amplified")
	}

	samples, err := SamplesFromPCM16(out)
	if err != nil {
		t.Fatalf("Output PCM malformed: %v", err)
	}

	// Gain here is clamped at MaxGain (target/2000 would be ~13.9)
	wantPeak := int(float64(2000) * cfg.MaxGain)
	if got := MaxAbs(samples); got != wantPeak {
		t.Errorf("Expected peak %d after clamped gain, got %d", wantPeak, got)
	}
}

func TestNormalizeGain_PeakApproachesTarget(t *testing.T) {
	cfg := DefaultGainConfig()
	pcm := quietPCM(1600, 20000)

	out := NormalizeGain(pcm, cfg, zerolog.Nop())
	samples, _ := SamplesFromPCM16(out)

	wantPeak := int(cfg.TargetPeakRatio * float64(math.MaxInt16))
	got := MaxAbs(samples)
	if got < wantPeak-2 || got > wantPeak+2 {
		t.Errorf("Expected peak near %d, got %d", wantPeak, got)
	}
}

func TestNormalizeGain_NeverExceedsInt16Range(t *testing.T) {
	cfg := DefaultGainConfig()

	// Asymmetric buffer where scaling the minimum would overflow without saturation
	samples := []int16{math.MinInt16, 8000, -8000, 100}
	out := NormalizeGain(PCM16FromSamples(samples), cfg, zerolog.Nop())

	outSamples, err := SamplesFromPCM16(out)
	if err != nil {
		t.Fatalf("Output PCM malformed: %v", err)
	}
	for i, s := range outSamples {
		if int(s) > math.MaxInt16 || int(s) < math.MinInt16 {
			t.Errorf("Sample %d out of int16 range: %d", i, s)
		}
	}
}

func TestNormalizeGain_SilentBufferUnchanged(t *testing.T) {
	cfg := DefaultGainConfig()
	pcm := make([]byte, 3200) // all-zero

	out := NormalizeGain(pcm, cfg, zerolog.Nop())
	if !bytes.Equal(out, pcm) {
		t.Error("Expected silent buffer to be returned unchanged")
	}
}

func TestNormalizeGain_LoudBufferUnchanged(t *testing.T) {
	cfg := DefaultGainConfig()
	// Peak already at ~85% of full scale; computed gain falls under ApplyThreshold
	pcm := quietPCM(1600, int16(cfg.TargetPeakRatio*float64(math.MaxInt16)))

	out := NormalizeGain(pcm, cfg, zerolog.Nop())
	if !bytes.Equal(out, pcm) {
		t.Error("Expected already-normalized buffer to be returned unchanged")
	}
}

func TestNormalizeGain_MalformedBufferUnchanged(t *testing.T) {
	cfg := DefaultGainConfig()
	pcm := []byte{0x01, 0x02, 0x03} // odd length

	out := NormalizeGain(pcm, cfg, zerolog.Nop())
	if !bytes.Equal(out, pcm) {
		t.Error("Expected malformed buffer to be returned unchanged")
	}
}

func TestFormatDuration(t *testing.T) {
	f := DefaultFormat()

	if got := f.Duration(32000); got != 1.0 {
		t.Errorf("Expected 1.0s for 32000 bytes at 16kHz mono, got %f", got)
	}
	if got := f.Duration(0); got != 0 {
		t.Errorf("Expected 0 for empty buffer, got %f", got)
	}
}

func TestSamplesRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, math.MaxInt16, math.MinInt16, 12345, -12345}
	out, err := SamplesFromPCM16(PCM16FromSamples(in))
	if err != nil {
		t.Fatalf("SamplesFromPCM16 failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("Expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("Sample %d mismatch: %d != %d", i, in[i], out[i])
		}
	}
}
