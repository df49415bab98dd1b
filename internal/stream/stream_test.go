package stream

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/lexiqai/vad-gateway/internal/audio"
	"github.com/lexiqai/vad-gateway/internal/config"
	"github.com/lexiqai/vad-gateway/internal/observability"
	"github.com/lexiqai/vad-gateway/internal/recognizer"
)

type stubFactory struct{}

func (stubFactory) New(logger zerolog.Logger) (recognizer.Client, error) {
	return recognizer.NewStubClient(16000, logger), nil
}

type failingFactory struct{}

func (failingFactory) New(logger zerolog.Logger) (recognizer.Client, error) {
	return nil, errors.New("recognizer unavailable")
}

func testConfig() *config.Config {
	return &config.Config{
		VADSampleRate:            16000,
		VADFrameLength:           512,
		VADEnergyThreshold:       0.001,
		VADZeroCrossingThreshold: 0.1,
		VADSmoothingFactor:       0.8,
		VADNoiseHistory:          10,
		VADVoiceFrames:           3,
		VADSilenceFrames:         5,
		SegmentEndSilenceFrames:  10,
		SegmentMaxSamples:        480000,
		AudioBufferSize:          8192,
		RecognizerBackend:        config.BackendStub,
	}
}

func dial(t *testing.T, factory RecognizerFactory) *websocket.Conn {
	t.Helper()
	conn, _ := dialWithHeader(t, factory, nil)
	return conn
}

func dialWithHeader(t *testing.T, factory RecognizerFactory, header http.Header) (*websocket.Conn, *http.Response) {
	t.Helper()

	srv := httptest.NewServer(HandleAudioWS(testConfig(), factory))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, resp
}

// tone is a continuous 1600Hz sine that the detector classifies as voice
func tone(n int) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.1414 * math.Sin(2*math.Pi*1600*float64(i)/16000+0.3)
	}
	return samples
}

func sendJSON(t *testing.T, conn *websocket.Conn, msg InboundMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func sendAudio(t *testing.T, conn *websocket.Conn, data []byte, chunk int) {
	t.Helper()
	for off := 0; off < len(data); off += chunk {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		sendJSON(t, conn, InboundMessage{
			Event: EventMedia,
			Media: &MediaPayload{Payload: base64.StdEncoding.EncodeToString(data[off:end])},
		})
	}
}

// readEvents collects outbound events until the server closes the stream
func readEvents(t *testing.T, conn *websocket.Conn) ([]OutboundMessage, error) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var events []OutboundMessage
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return events, err
		}
		var msg OutboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("invalid event %q: %v", data, err)
		}
		events = append(events, msg)
	}
}

func eventNames(events []OutboundMessage) []string {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, ev.Event)
	}
	return names
}

func TestStream_SpeechSegment(t *testing.T) {
	is := is.New(t)
	conn := dial(t, stubFactory{})

	sendJSON(t, conn, InboundMessage{Event: EventConnected, StreamSid: "MZ123"})
	sendJSON(t, conn, InboundMessage{
		Event: EventStart,
		Start: &StartPayload{StreamSid: "MZ123", SampleRate: 16000, Encoding: "pcm16"},
	})

	samples := append(tone(10*512), make([]float64, 20*512)...)
	sendAudio(t, conn, audio.FloatToPCM16(samples), 2048)
	sendJSON(t, conn, InboundMessage{Event: EventStop})

	events, err := readEvents(t, conn)
	is.True(websocket.IsCloseError(err, websocket.CloseNormalClosure)) // server closes normally

	names := eventNames(events)
	is.Equal(len(events), 5) // decision, speech_start, decision, speech_end, transcript
	is.Equal(names[:4], []string{EventDecision, EventSpeechStart, EventDecision, EventSpeechEnd})
	is.Equal(names[4], EventTranscript)

	voice := events[0].Decision
	is.True(voice != nil)
	is.Equal(voice.State, "VOICE")
	is.True(voice.Voice)
	is.Equal(voice.Frame, int64(3)) // third voiced frame confirms VOICE
	is.Equal(voice.AudioState, "SPEAKING")

	silence := events[2].Decision
	is.Equal(silence.State, "SILENCE")
	is.Equal(silence.Frame, int64(15)) // fifth silent frame releases it

	end := events[3].Segment
	is.Equal(end.Index, 1)
	is.Equal(end.Samples, 12*512) // frames 3-14, the last four still held VOICE
	is.True(!end.Forced)

	transcript := events[4].Transcript
	is.True(transcript.Text != "")
	is.True(transcript.IsFinal)
	is.Equal(transcript.Backend, config.BackendStub)

	for _, ev := range events {
		is.Equal(ev.StreamSid, "MZ123")
	}
}

func TestStream_FlushOnStop(t *testing.T) {
	is := is.New(t)
	conn := dial(t, stubFactory{})

	// No start event: media is decoded as 16kHz pcm16
	sendAudio(t, conn, audio.FloatToPCM16(tone(8*512)), 2048)
	sendJSON(t, conn, InboundMessage{Event: EventStop})

	events, _ := readEvents(t, conn)
	is.Equal(eventNames(events), []string{EventDecision, EventSpeechStart, EventSpeechEnd, EventTranscript})

	end := events[2].Segment
	is.True(end.Forced)          // closed by stop, not by silence
	is.Equal(end.Samples, 6*512) // frames 3-8
}

func TestStream_MulawSilence(t *testing.T) {
	is := is.New(t)
	conn := dial(t, stubFactory{})

	sendJSON(t, conn, InboundMessage{
		Event: EventStart,
		Start: &StartPayload{Encoding: "audio/x-mulaw"},
	})

	silence := make([]byte, 8000) // 1s of 8kHz mu-law silence
	for i := range silence {
		silence[i] = 0xFF
	}
	sendAudio(t, conn, silence, 160)
	sendJSON(t, conn, InboundMessage{Event: EventStop})

	events, err := readEvents(t, conn)
	is.True(websocket.IsCloseError(err, websocket.CloseNormalClosure))
	is.Equal(len(events), 0) // silence never leaves the initial state
}

func TestStream_IgnoresBadMessages(t *testing.T) {
	is := is.New(t)
	conn := dial(t, stubFactory{})

	is.NoErr(conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	sendJSON(t, conn, InboundMessage{Event: "mark"})
	sendJSON(t, conn, InboundMessage{Event: EventMedia, Media: &MediaPayload{Payload: "%%%"}})
	sendJSON(t, conn, InboundMessage{Event: EventMedia, Media: &MediaPayload{}})
	sendJSON(t, conn, InboundMessage{Event: EventStart, Start: &StartPayload{Encoding: "opus"}})
	sendJSON(t, conn, InboundMessage{Event: EventStop})

	events, err := readEvents(t, conn)
	is.True(websocket.IsCloseError(err, websocket.CloseNormalClosure))
	is.Equal(len(events), 0)
}

func TestStream_SessionSetupFailure(t *testing.T) {
	is := is.New(t)
	conn := dial(t, failingFactory{})

	_, err := readEvents(t, conn)
	is.True(websocket.IsCloseError(err, websocket.CloseInternalServerErr))
}

func TestStream_CorrelationIDEchoed(t *testing.T) {
	is := is.New(t)

	header := http.Header{}
	header.Set(observability.CorrelationIDHeader, "req-42")
	conn, resp := dialWithHeader(t, stubFactory{}, header)
	is.Equal(resp.Header.Get(observability.CorrelationIDHeader), "req-42")
	sendJSON(t, conn, InboundMessage{Event: EventStop})

	conn, resp = dialWithHeader(t, stubFactory{}, nil)
	is.True(resp.Header.Get(observability.CorrelationIDHeader) != "") // generated when absent
	sendJSON(t, conn, InboundMessage{Event: EventStop})
}
