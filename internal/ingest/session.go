package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/voicetrail/audio-gateway/internal/config"
	"github.com/voicetrail/audio-gateway/internal/nlp"
	"github.com/voicetrail/audio-gateway/internal/observability"
	"github.com/voicetrail/audio-gateway/internal/store"
	"github.com/voicetrail/audio-gateway/internal/stt"
)

// Upper bound on waiting for the recognizer to flush late final results
// during teardown
const resultDrainTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The gateway sits behind a trusted reverse proxy; origin checks
		// happen there
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// RecognizerFactory creates one recognizer per session
type RecognizerFactory func() stt.Recognizer

// Handler upgrades HTTP requests to duplex audio sessions
type Handler struct {
	cfg           *config.Config
	store         store.Store
	processor     nlp.TextProcessor
	newRecognizer RecognizerFactory
	logger        zerolog.Logger
}

// NewHandler creates the transcription WebSocket handler
func NewHandler(cfg *config.Config, st store.Store, processor nlp.TextProcessor, newRecognizer RecognizerFactory, logger zerolog.Logger) *Handler {
	return &Handler{
		cfg:           cfg,
		store:         st,
		processor:     processor,
		newRecognizer: newRecognizer,
		logger:        logger,
	}
}

// ServeHTTP upgrades the connection and runs the session to completion
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}

	session := newSession(conn, h)
	session.logger.Info().Msg("Client connected")
	session.run()
}

// Session owns the full lifecycle of one client connection: the receive
// loop, the recognition result pump, the segmentation monitor, the realtime
// NLP throttler, and the single outbound writer.
type Session struct {
	id         string
	conn       *websocket.Conn
	cfg        *config.Config
	logger     zerolog.Logger
	metrics    *observability.SessionMetrics
	recognizer stt.Recognizer
	processor  nlp.TextProcessor
	persister  *Persister

	// Mutable connection state, guarded by mu
	mu               sync.Mutex
	connected        bool
	is24x7           bool
	segmentStart     time.Time
	chunks           [][]byte
	transcript       string
	timestamps       []float64
	segmentRequested bool
	finalSaved       bool
	eventsClosed     bool

	events     chan Envelope
	writerDone chan struct{}
	pumpDone   chan struct{}

	throttler *Throttler
	monitor   *Monitor

	teardownOnce sync.Once
}

func newSession(conn *websocket.Conn, h *Handler) *Session {
	id := observability.NewSessionID()
	logger := h.logger.With().Str("session_id", id).Logger()
	metrics := observability.NewSessionMetrics(id)

	s := &Session{
		id:           id,
		conn:         conn,
		cfg:          h.cfg,
		logger:       logger,
		metrics:      metrics,
		recognizer:   h.newRecognizer(),
		processor:    h.processor,
		connected:    true,
		segmentStart: time.Now(),
		events:       make(chan Envelope, h.cfg.OutboundQueueCapacity),
		writerDone:   make(chan struct{}),
	}
	s.persister = NewPersister(h.cfg, h.store, logger, metrics)
	s.throttler = NewThrottler(h.cfg.RealtimeNLPThrottle, s.computeRealtime)
	return s
}

// run drives the session until the client stops, disconnects, or errors.
// All exit paths funnel through teardown.
func (s *Session) run() {
	defer s.teardown()
	s.metrics.RecordSessionStart()

	go s.writeLoop()

	var init InitMessage
	if err := s.conn.ReadJSON(&init); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read init message")
		return
	}
	s.mu.Lock()
	s.is24x7 = init.Is24x7
	s.mu.Unlock()
	s.logger.Info().Bool("is_24x7", init.Is24x7).Msg("Session initialized")

	if err := s.recognizer.Start(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to start recognizer")
		s.metrics.RecordError("stt_start", "session")
		s.send(NewEvent(EventTaskFailed, TaskFailedPayload{Error: err.Error()}))
		return
	}
	s.pumpDone = make(chan struct{})
	go s.pumpResults()

	if init.Is24x7 {
		s.monitor = NewMonitor(s, MonitorConfigFrom(s.cfg), s.logger)
		s.monitor.Start()
	}

	s.receiveLoop()
}

// receiveLoop reads frames until a stop message, disconnect, or read error
func (s *Session) receiveLoop() {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			} else {
				s.logger.Info().Msg("Client disconnected")
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(data) == 0 {
				continue
			}
			s.appendChunk(data)
			s.metrics.RecordAudioBytes(int64(len(data)))
			if err := s.recognizer.SendAudio(data); err != nil {
				s.metrics.RecordError("stt_send", "session")
				s.logger.Warn().Err(err).Msg("Failed to forward audio to recognizer")
			}

		case websocket.TextMessage:
			if s.handleControlFrame(data) {
				return
			}
		}
	}
}

// handleControlFrame processes a JSON control frame and reports whether the
// session should stop. Malformed frames are logged and ignored.
func (s *Session) handleControlFrame(data []byte) (stop bool) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug().Msg("Ignoring non-JSON text frame")
		return false
	}

	switch msg.Type {
	case ControlStop:
		s.mu.Lock()
		if msg.SegmentTimestamps != nil {
			s.timestamps = msg.SegmentTimestamps
		}
		s.mu.Unlock()
		s.logger.Info().Int("timestamps", len(msg.SegmentTimestamps)).Msg("Received stop signal from client")
		return true

	case ControlSegment:
		s.mu.Lock()
		s.segmentRequested = true
		s.mu.Unlock()
		s.logger.Info().Msg("Received segment request from client")

	default:
		s.logger.Debug().Str("type", msg.Type).Msg("Ignoring unknown control frame")
	}
	return false
}

// pumpResults forwards recognition results to the client. Finalized fragments
// are committed to the transcript and fed to the throttler; interim results
// are forwarded only.
func (s *Session) pumpResults() {
	defer close(s.pumpDone)

	for result := range s.recognizer.Results() {
		if result.Text == "" {
			continue
		}

		if result.IsFinal {
			s.mu.Lock()
			if s.transcript != "" {
				s.transcript += "\n"
			}
			s.transcript += result.Text
			s.mu.Unlock()
		}

		s.send(NewEvent(EventTranscriptionResultChanged, TranscriptionResultPayload{
			Result:  result.Text,
			IsFinal: result.IsFinal,
		}))

		if result.IsFinal {
			s.throttler.OnFinalSentence(result.Text)
		}
	}
}

// computeRealtime runs one throttled optimize/extract pass and pushes the
// results to the client. Failures degrade to the input text and an empty
// extraction.
func (s *Session) computeRealtime(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.NLPTimeout)
	defer cancel()

	s.metrics.RecordNLPStart()
	optimized, err := s.processor.OptimizeText(ctx, text)
	s.metrics.RecordNLPEnd("optimize", err == nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Realtime text optimization failed")
		optimized = text
	}

	s.metrics.RecordNLPStart()
	extraction, err := s.processor.ExtractItems(ctx, text)
	s.metrics.RecordNLPEnd("extract", err == nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Realtime item extraction failed")
	}
	if extraction.Todos == nil {
		extraction.Todos = []nlp.Item{}
	}
	if extraction.Schedules == nil {
		extraction.Schedules = []nlp.Item{}
	}

	s.send(NewEvent(EventOptimizedTextChanged, OptimizedTextPayload{Text: optimized}))
	s.send(NewEvent(EventExtractionChanged, ExtractionPayload{
		Todos:     extraction.Todos,
		Schedules: extraction.Schedules,
	}))
}

// writeLoop is the single writer for the connection, draining the outbound
// event queue. Write failures mark the connection dead but keep draining so
// producers never block.
func (s *Session) writeLoop() {
	defer close(s.writerDone)

	for event := range s.events {
		if err := s.conn.WriteJSON(event); err != nil {
			s.logger.Warn().Err(err).Str("event", event.Header.Name).Msg("Failed to write event to client")
			s.markDisconnected()
		}
	}
}

// send queues an event for the writer loop. Events are dropped when the
// connection is gone or the queue is full; ingestion never blocks on a
// slow client.
func (s *Session) send(event Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected || s.eventsClosed {
		return
	}
	select {
	case s.events <- event:
	default:
		s.logger.Warn().Str("event", event.Header.Name).Msg("Outbound queue full, dropping event")
	}
}

func (s *Session) appendChunk(chunk []byte) {
	s.mu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.mu.Unlock()
}

func (s *Session) isConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) markDisconnected() {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}

// recentWindow concatenates up to the last n buffered chunks for silence
// classification
func (s *Session) recentWindow(n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.chunks) == 0 || n <= 0 {
		return nil
	}
	start := len(s.chunks) - n
	if start < 0 {
		start = 0
	}

	var window []byte
	for _, chunk := range s.chunks[start:] {
		window = append(window, chunk...)
	}
	return window
}

// takeSegmentRequest consumes a pending explicit segmentation request
func (s *Session) takeSegmentRequest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.segmentRequested {
		return false
	}
	s.segmentRequested = false
	return true
}

// saveSegment snapshots and clears the current segment, notifies the client,
// and persists the snapshot in the background. The buffer clear happens
// synchronously with the decision to segment so the next segment's chunks
// are never mixed in.
func (s *Session) saveSegment(reason string) error {
	s.mu.Lock()
	if len(s.chunks) == 0 {
		s.mu.Unlock()
		s.logger.Debug().Msg("Current segment has no audio, skipping save")
		return nil
	}

	snap := segmentSnapshot{
		chunks:     s.chunks,
		transcript: s.transcript,
		timestamps: s.timestamps,
		startedAt:  s.segmentStart,
		is24x7:     s.is24x7,
	}
	s.chunks = nil
	s.transcript = ""
	s.timestamps = nil
	s.segmentStart = time.Now()
	s.mu.Unlock()

	s.send(NewEvent(EventSegmentSaved, SegmentSavedPayload{
		Message:          segmentReasonMessage(reason),
		SegmentStartTime: snap.startedAt.Format(time.RFC3339),
	}))

	s.persister.PersistAsync(snap, reason)
	return nil
}

// saveFinal persists whatever audio and transcript remain. The finalSaved
// guard makes it a no-op on every call after the first, regardless of which
// teardown path got here.
func (s *Session) saveFinal() {
	s.mu.Lock()
	if s.finalSaved {
		s.mu.Unlock()
		return
	}
	s.finalSaved = true

	if len(s.chunks) == 0 && s.transcript == "" {
		s.mu.Unlock()
		s.logger.Info().Msg("No data to save")
		return
	}

	snap := segmentSnapshot{
		chunks:     s.chunks,
		transcript: s.transcript,
		timestamps: s.timestamps,
		startedAt:  s.segmentStart,
		is24x7:     s.is24x7,
	}
	s.chunks = nil
	s.transcript = ""
	s.timestamps = nil
	s.mu.Unlock()

	s.logger.Info().
		Int("chunks", len(snap.chunks)).
		Int("text_len", len(snap.transcript)).
		Msg("Saving final data")

	ctx, cancel := context.WithTimeout(context.Background(), 2*s.cfg.StoreTimeout+time.Minute)
	defer cancel()

	if _, _, err := s.persister.Persist(ctx, snap, ReasonFinal); err != nil {
		s.metrics.RecordError("persist", "session")
		s.logger.Error().Err(err).Msg("Final save failed")
	}
}

// teardown is the single exit path for the session: stop background tasks,
// run the exactly-once final save, join detached persists, then release the
// connection.
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.markDisconnected()

		if s.monitor != nil {
			s.monitor.Stop()
		}
		s.throttler.Cancel()

		if err := s.recognizer.Stop(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to stop recognizer")
		}
		if err := s.recognizer.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close recognizer")
		}

		// Stopping the recognizer can flush in-flight audio as late final
		// results. Wait for the pump to drain them into the transcript
		// before the final save.
		if s.pumpDone != nil {
			select {
			case <-s.pumpDone:
			case <-time.After(resultDrainTimeout):
				s.logger.Warn().Msg("Timed out waiting for recognition results to drain")
			}
		}

		s.saveFinal()

		if !s.persister.Wait(s.cfg.PersistJoinTimeout) {
			s.logger.Warn().Msg("Timed out waiting for detached segment persists")
		}

		s.mu.Lock()
		if !s.eventsClosed {
			s.eventsClosed = true
			close(s.events)
		}
		s.mu.Unlock()
		<-s.writerDone

		s.conn.Close()

		s.metrics.RecordSessionEnd()
		s.logger.Info().Msg("Session finished")
	})
}

func segmentReasonMessage(reason string) string {
	switch reason {
	case ReasonTime:
		return "Segment duration limit reached, saved current segment and started a new one"
	case ReasonSilence:
		return "Sustained silence detected, saved current segment and started a new one"
	case ReasonManual:
		return "Segmentation requested, saved current segment and started a new one"
	default:
		return "Saved current segment and started a new one"
	}
}
