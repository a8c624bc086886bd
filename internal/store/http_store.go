package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/voicetrail/audio-gateway/internal/resilience"
)

// HTTPStore talks to the recordings API over HTTP with JSON bodies
type HTTPStore struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
	retry   *resilience.RetryConfig
}

// NewHTTPStore creates a store client for the given base URL
func NewHTTPStore(baseURL string, timeout time.Duration, logger zerolog.Logger) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "store").Logger(),
		retry:   resilience.DefaultRetryConfig(),
	}
}

// CreateRecording registers a saved audio file and returns its id
func (s *HTTPStore) CreateRecording(ctx context.Context, rec NewRecording) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	err := s.postJSON(ctx, "/api/recordings", rec, &out)
	if err != nil {
		return 0, fmt.Errorf("create recording: %w", err)
	}
	if out.ID == 0 {
		return 0, fmt.Errorf("create recording: response missing id")
	}

	s.logger.Debug().Int64("recording_id", out.ID).Str("file_path", rec.FilePath).Msg("Recording registered")
	return out.ID, nil
}

// SaveTranscription attaches transcript text to a recording
func (s *HTTPStore) SaveTranscription(ctx context.Context, tr NewTranscription) error {
	path := fmt.Sprintf("/api/recordings/%d/transcriptions", tr.RecordingID)
	if err := s.postJSON(ctx, path, tr, nil); err != nil {
		return fmt.Errorf("save transcription: %w", err)
	}

	s.logger.Debug().Int64("recording_id", tr.RecordingID).Msg("Transcription saved")
	return nil
}

// postJSON POSTs a JSON body and decodes the response into out when non-nil.
// Transient failures are retried with exponential backoff.
func (s *HTTPStore) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	return resilience.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil {
				io.Copy(io.Discard, resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("store unavailable: status %d", resp.StatusCode)
		}
		return &permanentError{status: resp.StatusCode}
	}, s.retry, func(err error) bool {
		if _, permanent := err.(*permanentError); permanent {
			return false
		}
		if ctx.Err() != nil {
			return false
		}
		return true
	})
}

// permanentError marks a 4xx response that retrying cannot fix
type permanentError struct {
	status int
}

func (e *permanentError) Error() string {
	return fmt.Sprintf("store rejected request: status %d", e.status)
}

var _ Store = (*HTTPStore)(nil)
