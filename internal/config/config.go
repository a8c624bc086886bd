package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the audio gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Audio format (PCM16LE is the only supported encoding)
	SampleRate    int `envconfig:"AUDIO_SAMPLE_RATE" default:"16000"`
	Channels      int `envconfig:"AUDIO_CHANNELS" default:"1"`
	BitsPerSample int `envconfig:"AUDIO_BITS_PER_SAMPLE" default:"16"`

	// Directory under which segment WAV files are written (date-partitioned)
	AudioDir string `envconfig:"AUDIO_DIR" default:"data/audio"`

	// Automatic gain control
	AGCTargetPeakRatio float64 `envconfig:"AGC_TARGET_PEAK_RATIO" default:"0.85"` // Fraction of int16 max to normalize toward
	AGCMaxGain         float64 `envconfig:"AGC_MAX_GAIN" default:"4.0"`           // Gain ceiling
	AGCApplyThreshold  float64 `envconfig:"AGC_APPLY_THRESHOLD" default:"1.05"`   // Gains at or below this are not applied

	// Silence classification thresholds (raw int16 amplitude units)
	SilenceMaxAbs int     `envconfig:"SILENCE_MAX_ABS" default:"50"`
	SilenceRMS    float64 `envconfig:"SILENCE_RMS" default:"20"`

	// Segmentation
	SegmentMaxDuration    time.Duration `envconfig:"SEGMENT_MAX_DURATION" default:"30m"`   // Elapsed-time trigger
	SilenceSegmentAfter   time.Duration `envconfig:"SILENCE_SEGMENT_AFTER" default:"600s"` // Sustained-silence trigger
	SegmentPollInterval   time.Duration `envconfig:"SEGMENT_POLL_INTERVAL" default:"60s"`  // Monitor tick
	SegmentSilenceWindow  int           `envconfig:"SEGMENT_SILENCE_WINDOW" default:"10"`  // Recent chunks inspected for silence
	MonitorErrorBackoff   time.Duration `envconfig:"MONITOR_ERROR_BACKOFF" default:"5s"`   // Wait after a failed poll iteration
	RealtimeNLPThrottle   time.Duration `envconfig:"REALTIME_NLP_THROTTLE" default:"8s"`   // Minimum spacing between NLP computes
	PersistJoinTimeout    time.Duration `envconfig:"PERSIST_JOIN_TIMEOUT" default:"30s"`   // Max wait for detached persists on teardown
	OutboundQueueCapacity int           `envconfig:"OUTBOUND_QUEUE_CAPACITY" default:"64"` // Buffered client-bound events

	// Deepgram STT API configuration
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" required:"true"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"` // nova-2, enhanced, base
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`  // Language code (en, zh, es, ...)

	// OpenAI-compatible LLM used for transcript optimization and extraction
	OpenAIAPIKey  string        `envconfig:"OPENAI_API_KEY" required:"true"`
	OpenAIBaseURL string        `envconfig:"OPENAI_BASE_URL" default:""` // Empty uses the public endpoint
	OpenAIModel   string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	NLPTimeout    time.Duration `envconfig:"NLP_TIMEOUT" default:"30s"`

	// Storage backend (relational CRUD service) HTTP endpoint
	StoreURL     string        `envconfig:"STORE_URL" default:"http://localhost:8090"`
	StoreTimeout time.Duration `envconfig:"STORE_TIMEOUT" default:"15s"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Maximum reconnection attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reconnection backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Validate required fields
	if cfg.DeepgramAPIKey == "" {
		return nil, fmt.Errorf("DEEPGRAM_API_KEY is required")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 || cfg.BitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported audio format: %d Hz / %d ch / %d bit (only 16-bit PCM is supported)",
			cfg.SampleRate, cfg.Channels, cfg.BitsPerSample)
	}

	return &cfg, nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
