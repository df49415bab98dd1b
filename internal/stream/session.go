package stream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/vad-gateway/internal/audio"
	"github.com/lexiqai/vad-gateway/internal/config"
	"github.com/lexiqai/vad-gateway/internal/observability"
	"github.com/lexiqai/vad-gateway/internal/recognizer"
	"github.com/lexiqai/vad-gateway/internal/vad"
)

const writeTimeout = 5 * time.Second

// RecognizerFactory creates one recognizer client per stream
type RecognizerFactory interface {
	New(logger zerolog.Logger) (recognizer.Client, error)
}

// audioChunk is decoded audio at its source rate
type audioChunk struct {
	samples    []float64
	sampleRate int
	bytes      int
}

// Session holds the state of a single audio stream
type Session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	streamID string
	config   *config.Config

	streamSid string // guarded by writeMu

	// Format, owned by the read loop
	encoding   audio.Encoding
	sampleRate int
	started    bool

	// Detection pipeline, owned by the audio goroutine
	detector    *vad.Detector
	framer      *audio.Framer
	segmenter   *vad.Segmenter
	conditioner *audio.Conditioner
	frames      int64
	lastVoice   bool
	segments    int

	ctx              context.Context
	recognizer       recognizer.Client
	recognizerActive bool

	audioIn         chan audioChunk
	transcriptsDone chan struct{}

	metrics *observability.StreamMetrics
	logger  zerolog.Logger
}

// NewSession creates a session with its own detector, framer, segmenter and recognizer.
// correlationID tags every log line of the session.
func NewSession(conn *websocket.Conn, cfg *config.Config, factory RecognizerFactory, correlationID string) (*Session, error) {
	streamID := generateStreamID()
	remote := ""
	if conn != nil {
		remote = conn.RemoteAddr().String()
	}
	logger := observability.WithStream(correlationID, streamID, remote)

	detector, err := vad.NewDetector(cfg.DetectorConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}

	framer, err := audio.NewFramer(cfg.VADFrameLength, cfg.AudioBufferSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create framer: %w", err)
	}

	client, err := factory.New(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create recognizer: %w", err)
	}

	conditioner := audio.NewConditioner()
	conditioner.TargetRate = cfg.VADSampleRate

	return &Session{
		conn:            conn,
		streamID:        streamID,
		config:          cfg,
		encoding:        audio.EncodingPCM16,
		sampleRate:      cfg.VADSampleRate,
		detector:        detector,
		framer:          framer,
		segmenter:       vad.NewSegmenter(cfg.SegmentEndSilenceFrames, cfg.SegmentMaxSamples),
		conditioner:     conditioner,
		recognizer:      client,
		audioIn:         make(chan audioChunk, 100),
		transcriptsDone: make(chan struct{}),
		metrics:         observability.NewStreamMetrics(streamID),
		logger:          logger,
	}, nil
}

// Run processes the stream until the client sends stop or disconnects.
// Open segments are flushed to the recognizer and pending transcripts are
// delivered before Run returns.
func (s *Session) Run(ctx context.Context) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// Unblocks the read loop on shutdown
			s.conn.Close()
		case <-done:
		}
	}()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.ctx = sessionCtx

	s.metrics.RecordStreamStart()
	defer s.metrics.RecordStreamEnd()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.processIncomingAudio()
	}()

	s.processIncomingMessages()
	close(s.audioIn)
	wg.Wait()

	if err := s.recognizer.Close(); err != nil {
		s.logger.Error().Err(err).Msg("Error closing recognizer")
	}
	if s.recognizerActive {
		<-s.transcriptsDone
	}

	s.logger.Info().
		Int64("frames", s.frames).
		Int("segments", s.segments).
		Msg("Stream ended")
}

// processIncomingMessages reads client events until stop or a read error
func (s *Session) processIncomingMessages() {
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.logger.Error().Err(err).Msg("Failed to parse stream message")
			s.metrics.RecordError("parse_error", "stream")
			continue
		}

		switch msg.Event {
		case EventConnected:
			s.setStreamSid(msg.StreamSid)
			s.logger.Info().Str("stream_sid", msg.StreamSid).Msg("Stream connected")

		case EventStart:
			if err := s.handleStart(&msg); err != nil {
				s.logger.Error().Err(err).Msg("Rejected stream start")
				s.metrics.RecordError("start_error", "stream")
			}

		case EventMedia:
			if msg.Media != nil {
				s.handleMediaEvent(msg.Media)
			}

		case EventStop:
			s.logger.Info().Str("stream_sid", s.streamSid).Msg("Stream stopped")
			return

		default:
			s.logger.Warn().Str("event", msg.Event).Msg("Unknown stream event")
		}
	}
}

// handleStart records the stream format and starts the recognizer
func (s *Session) handleStart(msg *InboundMessage) error {
	if msg.StreamSid != "" {
		s.setStreamSid(msg.StreamSid)
	}

	if msg.Start != nil {
		if msg.Start.StreamSid != "" {
			s.setStreamSid(msg.Start.StreamSid)
		}
		encoding, err := audio.ParseEncoding(msg.Start.Encoding)
		if err != nil {
			return err
		}
		s.encoding = encoding

		switch {
		case msg.Start.SampleRate > 0:
			s.sampleRate = msg.Start.SampleRate
		case encoding == audio.EncodingMulaw:
			s.sampleRate = 8000
		}
	}

	s.logger.Info().
		Str("stream_sid", s.streamSid).
		Str("encoding", string(s.encoding)).
		Int("sample_rate", s.sampleRate).
		Msg("Stream started")

	s.startRecognizer()
	return nil
}

// startRecognizer starts the recognizer once; detection continues if it fails
func (s *Session) startRecognizer() {
	if s.started {
		return
	}
	s.started = true

	if err := s.recognizer.Start(s.ctx); err != nil {
		s.logger.Error().Err(err).Str("backend", s.recognizer.Backend()).Msg("Error starting recognizer")
		s.metrics.RecordError("recognizer_start_error", s.recognizer.Backend())
		return
	}

	s.recognizerActive = true
	go s.processTranscriptions()
}

// handleMediaEvent decodes a media payload and queues it for detection
func (s *Session) handleMediaEvent(media *MediaPayload) {
	if !s.started {
		// Media before start uses the configured defaults
		s.startRecognizer()
	}

	base64Chunk := media.Chunk
	if base64Chunk == "" {
		base64Chunk = media.Payload
	}
	if base64Chunk == "" {
		s.logger.Warn().Msg("Media event missing chunk/payload")
		return
	}

	data, err := base64.StdEncoding.DecodeString(base64Chunk)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to decode base64 audio")
		s.metrics.RecordError("decode_error", "stream")
		return
	}

	samples, err := audio.Decode(data, s.encoding)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to decode audio payload")
		s.metrics.RecordError("decode_error", "stream")
		return
	}

	// Blocks when detection falls behind rather than dropping audio
	s.audioIn <- audioChunk{samples: samples, sampleRate: s.sampleRate, bytes: len(data)}
}

// processIncomingAudio runs the detection pipeline until audioIn is closed
func (s *Session) processIncomingAudio() {
	var resampler *audio.StreamResampler

	for chunk := range s.audioIn {
		s.metrics.RecordAudioBytes("in", int64(chunk.bytes))

		// A new start may change the rate mid-stream
		if resampler == nil || resampler.SourceRate() != chunk.sampleRate {
			if resampler != nil {
				s.pushSamples(resampler.Flush())
			}
			resampler = audio.NewStreamResampler(chunk.sampleRate, s.config.VADSampleRate)
		}
		s.pushSamples(resampler.Process(chunk.samples))
	}

	if resampler != nil {
		s.pushSamples(resampler.Flush())
	}
	s.handleSegmentEvent(s.segmenter.Flush())

	if s.recognizerActive {
		if err := s.recognizer.Stop(); err != nil {
			s.logger.Error().Err(err).Msg("Error stopping recognizer")
		}
	}
}

// pushSamples frames canonical-rate samples and runs each full frame
func (s *Session) pushSamples(samples []float64) {
	for _, frame := range s.framer.Push(samples) {
		s.processFrame(frame)
	}
}

// processFrame classifies one frame and reports state changes and segments
func (s *Session) processFrame(frame []float64) {
	start := time.Now()
	decision, err := s.detector.ProcessFrame(frame)
	if err != nil {
		if errors.Is(err, vad.ErrFrameLength) {
			s.metrics.RecordFrameMismatch()
		}
		s.logger.Warn().Err(err).Msg("Frame rejected")
		return
	}
	s.metrics.RecordFrame(decision.Voice, time.Since(start))
	s.frames++

	if decision.Voice != s.lastVoice {
		s.lastVoice = decision.Voice
		s.metrics.RecordTransition(decision.State().String())
		s.send(OutboundMessage{
			Event: EventDecision,
			Decision: &DecisionPayload{
				Frame:            s.frames,
				State:            decision.State().String(),
				Voice:            decision.Voice,
				Probability:      decision.Probability,
				AudioState:       string(vad.AudioStateFor(decision, vad.DefaultSpeakingThreshold)),
				Level:            audio.CalculateRMS(frame),
				Energy:           decision.Features.Energy,
				ZeroCrossingRate: decision.Features.ZeroCrossingRate,
				SpectralCentroid: decision.Features.SpectralCentroid,
			},
		})
	}

	s.handleSegmentEvent(s.segmenter.Push(frame, decision.Voice))
}

// handleSegmentEvent reports segment boundaries and hands finished segments to the recognizer
func (s *Session) handleSegmentEvent(ev vad.SegmentEvent) {
	switch ev.Type {
	case vad.SegmentStart:
		s.segments++
		s.send(OutboundMessage{
			Event:   EventSpeechStart,
			Segment: &SegmentPayload{Index: s.segments, Frame: s.frames},
		})

	case vad.SegmentEnd:
		rate := s.config.VADSampleRate
		s.metrics.RecordSegment(len(ev.Samples), rate, ev.Forced)
		s.send(OutboundMessage{
			Event: EventSpeechEnd,
			Segment: &SegmentPayload{
				Index:    s.segments,
				Frame:    s.frames,
				Samples:  len(ev.Samples),
				Duration: float64(len(ev.Samples)) / float64(rate),
				Forced:   ev.Forced,
			},
		})

		if !s.recognizerActive || len(ev.Samples) == 0 {
			return
		}

		pcm := audio.FloatToPCM16(s.conditioner.Condition(ev.Samples, rate))
		s.metrics.RecordRecognizerStart()
		if err := s.recognizer.SendAudio(pcm); err != nil {
			s.logger.Error().Err(err).Msg("Error sending segment to recognizer")
			s.metrics.RecordRecognizerEnd(s.recognizer.Backend(), false)
			s.metrics.RecordError("recognizer_send_error", s.recognizer.Backend())
		}
	}
}

// processTranscriptions forwards recognizer results until the channel closes
func (s *Session) processTranscriptions() {
	defer close(s.transcriptsDone)

	backend := s.recognizer.Backend()
	for result := range s.recognizer.Transcriptions() {
		if result.IsFinal {
			s.metrics.RecordRecognizerEnd(backend, true)
		}
		s.send(OutboundMessage{
			Event: EventTranscript,
			Transcript: &TranscriptPayload{
				Text:       result.Text,
				IsFinal:    result.IsFinal,
				Confidence: result.Confidence,
				Start:      result.StartTime,
				Duration:   result.Duration,
				Backend:    backend,
			},
		})
	}
}

// send writes an event; gorilla connections allow one concurrent writer
func (s *Session) send(msg OutboundMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	msg.StreamSid = s.streamSid

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(msg); err != nil {
		s.logger.Debug().Err(err).Str("event", msg.Event).Msg("Failed to send event")
		s.metrics.RecordError("write_error", "stream")
	}
}

// setStreamSid records the client's stream ID; guarded by writeMu since send reads it
func (s *Session) setStreamSid(sid string) {
	s.writeMu.Lock()
	s.streamSid = sid
	s.writeMu.Unlock()
}

// StreamID returns the server-assigned stream ID
func (s *Session) StreamID() string {
	return s.streamID
}

// generateStreamID generates a unique stream ID
func generateStreamID() string {
	return fmt.Sprintf("stream-%s", uuid.New().String())
}
