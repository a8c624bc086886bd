package stt

// Result represents a transcription result from the speech recognizer
type Result struct {
	// Text is the transcribed text
	Text string

	// IsFinal indicates if this is a final transcription (true) or interim (false)
	IsFinal bool

	// Confidence is the confidence score (0.0 to 1.0) if available
	Confidence float64

	// StartTime is the start time of the utterance in seconds
	StartTime float64

	// Duration is the duration of the utterance in seconds
	Duration float64
}

// Recognizer is the interface for streaming speech-to-text clients
type Recognizer interface {
	// Start begins a new transcription session
	Start() error

	// SendAudio sends an audio chunk to the recognizer
	SendAudio(audioData []byte) error

	// Results returns the channel that receives transcription results.
	// The channel is closed when the recognizer shuts down.
	Results() <-chan *Result

	// Stop ends the transcription session and flushes in-flight audio
	Stop() error

	// Close closes the client and cleans up resources
	Close() error
}
