package ingest

import "github.com/voicetrail/audio-gateway/internal/nlp"

// Server-to-client event names
const (
	EventTranscriptionResultChanged = "TranscriptionResultChanged"
	EventOptimizedTextChanged       = "OptimizedTextChanged"
	EventExtractionChanged          = "ExtractionChanged"
	EventSegmentSaved               = "SegmentSaved"
	EventTaskFailed                 = "TaskFailed"
)

// Client-to-server control frame types
const (
	ControlStop    = "stop"
	ControlSegment = "segment"
)

// Header names a server-to-client event
type Header struct {
	Name string `json:"name"`
}

// Envelope is the wire format for every server-to-client JSON frame
type Envelope struct {
	Header  Header      `json:"header"`
	Payload interface{} `json:"payload"`
}

// NewEvent wraps a payload in an event envelope
func NewEvent(name string, payload interface{}) Envelope {
	return Envelope{Header: Header{Name: name}, Payload: payload}
}

// TranscriptionResultPayload carries one recognition result
type TranscriptionResultPayload struct {
	Result  string `json:"result"`
	IsFinal bool   `json:"is_final"`
}

// OptimizedTextPayload carries the cleaned transcript
type OptimizedTextPayload struct {
	Text string `json:"text"`
}

// ExtractionPayload carries extracted todos and schedule entries
type ExtractionPayload struct {
	Todos     []nlp.Item `json:"todos"`
	Schedules []nlp.Item `json:"schedules"`
}

// SegmentSavedPayload announces that the current segment was persisted
// and a new one has started
type SegmentSavedPayload struct {
	Message          string `json:"message"`
	SegmentStartTime string `json:"segment_start_time"`
}

// TaskFailedPayload carries a recognizer or pipeline error to the client
type TaskFailedPayload struct {
	Error string `json:"error"`
}

// InitMessage is the first JSON frame a client sends after connecting
type InitMessage struct {
	Is24x7 bool `json:"is_24x7"`
}

// ControlMessage is any later JSON frame from the client
type ControlMessage struct {
	Type              string    `json:"type"`
	SegmentTimestamps []float64 `json:"segment_timestamps,omitempty"`
}
