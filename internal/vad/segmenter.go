package vad

const (
	// DefaultEndSilenceFrames is the number of unvoiced decisions that close a segment
	DefaultEndSilenceFrames = 10
)

// SegmentEventType identifies what a segmenter event reports
type SegmentEventType int

const (
	SegmentNone SegmentEventType = iota
	SegmentStart
	SegmentEnd
)

// SegmentEvent is emitted when a speech segment opens or closes.
// Samples is only populated on SegmentEnd.
type SegmentEvent struct {
	Type    SegmentEventType
	Samples []float64
	Forced  bool // Closed by the size limit or an explicit flush rather than silence
}

// Segmenter groups voiced frames into speech segments for the recognizer
type Segmenter struct {
	endSilenceFrames int
	maxSamples       int

	active       bool
	silenceCount int
	buffer       []float64
}

// NewSegmenter creates a segmenter closing segments after endSilenceFrames
// unvoiced decisions. maxSamples caps a segment's length; 0 disables the cap.
func NewSegmenter(endSilenceFrames, maxSamples int) *Segmenter {
	if endSilenceFrames < 1 {
		endSilenceFrames = DefaultEndSilenceFrames
	}
	if maxSamples < 0 {
		maxSamples = 0
	}
	return &Segmenter{
		endSilenceFrames: endSilenceFrames,
		maxSamples:       maxSamples,
	}
}

// Push feeds one frame with its stable decision. The frame is copied.
func (s *Segmenter) Push(frame []float64, voice bool) SegmentEvent {
	if voice {
		event := SegmentEvent{}
		if !s.active {
			s.active = true
			s.buffer = s.buffer[:0]
			event.Type = SegmentStart
		}

		s.buffer = append(s.buffer, frame...)
		s.silenceCount = 0

		if s.maxSamples > 0 && len(s.buffer) >= s.maxSamples {
			return s.close(true)
		}
		return event
	}

	if !s.active {
		return SegmentEvent{}
	}

	s.silenceCount++
	if s.silenceCount >= s.endSilenceFrames {
		return s.close(false)
	}
	return SegmentEvent{}
}

// Flush closes any open segment and returns it
func (s *Segmenter) Flush() SegmentEvent {
	if !s.active {
		return SegmentEvent{}
	}
	return s.close(true)
}

// Active reports whether a segment is currently open
func (s *Segmenter) Active() bool {
	return s.active
}

// Reset drops any open segment
func (s *Segmenter) Reset() {
	s.active = false
	s.silenceCount = 0
	s.buffer = s.buffer[:0]
}

func (s *Segmenter) close(forced bool) SegmentEvent {
	samples := make([]float64, len(s.buffer))
	copy(samples, s.buffer)

	s.active = false
	s.silenceCount = 0
	s.buffer = s.buffer[:0]

	return SegmentEvent{Type: SegmentEnd, Samples: samples, Forced: forced}
}
