package config

import (
	"os"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	os.Setenv("OPENAI_API_KEY", "test-openai-key")
	t.Cleanup(func() {
		os.Unsetenv("DEEPGRAM_API_KEY")
		os.Unsetenv("OPENAI_API_KEY")
	})
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}

	if cfg.OpenAIAPIKey != "test-openai-key" {
		t.Errorf("Expected OpenAIAPIKey 'test-openai-key', got '%s'", cfg.OpenAIAPIKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("DEEPGRAM_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")

	_, err := LoadFromEnv()
	if err == nil {
		t.Error("Expected error when required keys are missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}

	if cfg.SampleRate != 16000 {
		t.Errorf("Expected default SampleRate 16000, got %d", cfg.SampleRate)
	}

	if cfg.Channels != 1 {
		t.Errorf("Expected default Channels 1, got %d", cfg.Channels)
	}

	if cfg.SegmentMaxDuration != 30*time.Minute {
		t.Errorf("Expected default SegmentMaxDuration 30m, got %v", cfg.SegmentMaxDuration)
	}

	if cfg.SilenceSegmentAfter != 600*time.Second {
		t.Errorf("Expected default SilenceSegmentAfter 600s, got %v", cfg.SilenceSegmentAfter)
	}

	if cfg.RealtimeNLPThrottle != 8*time.Second {
		t.Errorf("Expected default RealtimeNLPThrottle 8s, got %v", cfg.RealtimeNLPThrottle)
	}

	if cfg.AGCTargetPeakRatio != 0.85 {
		t.Errorf("Expected default AGCTargetPeakRatio 0.85, got %f", cfg.AGCTargetPeakRatio)
	}

	if cfg.AGCMaxGain != 4.0 {
		t.Errorf("Expected default AGCMaxGain 4.0, got %f", cfg.AGCMaxGain)
	}

	if cfg.DeepgramModel != "nova-2" {
		t.Errorf("Expected default DeepgramModel 'nova-2', got '%s'", cfg.DeepgramModel)
	}
}

func TestLoad_InvalidAudioFormat(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("AUDIO_BITS_PER_SAMPLE", "8")
	defer os.Unsetenv("AUDIO_BITS_PER_SAMPLE")

	_, err := LoadFromEnv()
	if err == nil {
		t.Error("Expected error for non-16-bit audio format")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("SEGMENT_MAX_DURATION", "5m")
	os.Setenv("SEGMENT_POLL_INTERVAL", "10s")
	defer os.Unsetenv("SEGMENT_MAX_DURATION")
	defer os.Unsetenv("SEGMENT_POLL_INTERVAL")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.SegmentMaxDuration != 5*time.Minute {
		t.Errorf("Expected SegmentMaxDuration 5m, got %v", cfg.SegmentMaxDuration)
	}

	if cfg.SegmentPollInterval != 10*time.Second {
		t.Errorf("Expected SegmentPollInterval 10s, got %v", cfg.SegmentPollInterval)
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("AUDIO_GATEWAY_TEST_KEY", "value")
	defer os.Unsetenv("AUDIO_GATEWAY_TEST_KEY")

	if got := GetEnv("AUDIO_GATEWAY_TEST_KEY", "fallback"); got != "value" {
		t.Errorf("Expected 'value', got '%s'", got)
	}

	if got := GetEnv("AUDIO_GATEWAY_MISSING_KEY", "fallback"); got != "fallback" {
		t.Errorf("Expected 'fallback', got '%s'", got)
	}
}
