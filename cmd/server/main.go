package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicetrail/audio-gateway/internal/config"
	"github.com/voicetrail/audio-gateway/internal/ingest"
	"github.com/voicetrail/audio-gateway/internal/nlp"
	"github.com/voicetrail/audio-gateway/internal/observability"
	"github.com/voicetrail/audio-gateway/internal/store"
	"github.com/voicetrail/audio-gateway/internal/stt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("store_url", cfg.StoreURL).
		Str("deepgram_model", cfg.DeepgramModel).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Audio Gateway Service starting")

	// Shared collaborators; recognizers are per session
	recordingStore := store.NewHTTPStore(cfg.StoreURL, cfg.StoreTimeout, logger)
	processor := nlp.NewOpenAIClient(cfg, logger)
	newRecognizer := func() stt.Recognizer {
		return stt.NewDeepgramClient(cfg, logger)
	}

	mux := http.NewServeMux()

	// Duplex transcription endpoint
	mux.Handle("/ws/transcribe", ingest.NewHandler(cfg, recordingStore, processor, newRecognizer, logger))

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness probes: validate collaborator configuration without making
	// billable API calls
	readinessChecks := map[string]observability.HealthCheckFunc{
		"deepgram": func(ctx context.Context) (bool, error) {
			if cfg.DeepgramAPIKey == "" {
				return false, fmt.Errorf("deepgram api key not configured")
			}
			return true, nil
		},
		"openai": func(ctx context.Context) (bool, error) {
			if cfg.OpenAIAPIKey == "" {
				return false, fmt.Errorf("openai api key not configured")
			}
			return true, nil
		},
		"store": func(ctx context.Context) (bool, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.StoreURL+"/health", nil)
			if err != nil {
				return false, err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return false, err
			}
			defer resp.Body.Close()
			return resp.StatusCode < 500, nil
		},
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(readinessChecks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// ReadTimeout is deliberately unset: transcription sessions hold the
	// connection open for hours
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     mux,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws/transcribe", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown lets in-flight sessions run their teardown and
	// final saves
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
