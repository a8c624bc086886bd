package store

import "context"

// NewRecording describes a persisted audio segment file
type NewRecording struct {
	FilePath string  `json:"file_path"`
	FileSize int64   `json:"file_size"`
	Duration float64 `json:"duration"`
	Is24x7   bool    `json:"is_24x7"`
}

// NewTranscription describes the transcript attached to a recording
type NewTranscription struct {
	RecordingID       int64     `json:"recording_id"`
	OriginalText      string    `json:"original_text"`
	AutoOptimize      bool      `json:"auto_optimize"`
	SegmentTimestamps []float64 `json:"segment_timestamps,omitempty"`
}

// Store persists recordings and their transcriptions
type Store interface {
	// CreateRecording registers a saved audio file and returns its id
	CreateRecording(ctx context.Context, rec NewRecording) (int64, error)

	// SaveTranscription attaches transcript text to a recording
	SaveTranscription(ctx context.Context, tr NewTranscription) error
}
