package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/lexiqai/vad-gateway/internal/audio"
	"github.com/lexiqai/vad-gateway/internal/vad"
)

type options struct {
	sampleRate    int
	frameLength   int
	threshold     float64
	adaptive      bool
	condition     bool
	voiceFrames   int
	silenceFrames int
	all           bool
	endSilence    int
	maxSamples    int
}

func defaultOptions() options {
	d := vad.DefaultConfig()
	return options{
		sampleRate:    d.SampleRate,
		frameLength:   d.FrameLength,
		threshold:     d.EnergyThreshold,
		voiceFrames:   d.VoiceConfirmFrames,
		silenceFrames: d.SilenceConfirmFrames,
		endSilence:    vad.DefaultEndSilenceFrames,
		maxSamples:    30 * d.SampleRate,
	}
}

func (o options) detectorConfig() vad.Config {
	c := vad.DefaultConfig()
	c.SampleRate = o.sampleRate
	c.FrameLength = o.frameLength
	c.EnergyThreshold = o.threshold
	c.AdaptiveThreshold = o.adaptive
	c.ConditionFrames = o.condition
	c.VoiceConfirmFrames = o.voiceFrames
	c.SilenceConfirmFrames = o.silenceFrames
	return c
}

// loadWAV reads a PCM16 WAV file as mono samples at the given rate
func loadWAV(path string, rate int) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	samples, sourceRate, err := audio.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return audio.Resample(samples, sourceRate, rate), nil
}

// frames splits samples into whole frames; a trailing partial frame is dropped
func frames(samples []float64, frameLength int) [][]float64 {
	var out [][]float64
	for off := 0; off+frameLength <= len(samples); off += frameLength {
		out = append(out, samples[off:off+frameLength])
	}
	return out
}

// analyze writes one row per state change, or per frame with opts.all
func analyze(w io.Writer, samples []float64, o options) error {
	detector, err := vad.NewDetector(o.detectorConfig())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FRAME\tTIME\tSTATE\tINSTANT\tPROB\tAUDIO\tENERGY\tZCR\tCENTROID")

	voice := false
	for i, frame := range frames(samples, o.frameLength) {
		d, err := detector.ProcessFrame(frame)
		if err != nil {
			return err
		}
		if !o.all && d.Voice == voice {
			continue
		}
		voice = d.Voice

		fmt.Fprintf(tw, "%d\t%.3f\t%s\t%t\t%.3f\t%s\t%.6f\t%.3f\t%.0f\n",
			i+1,
			float64(i*o.frameLength)/float64(o.sampleRate),
			d.State(),
			d.Instant,
			d.Probability,
			vad.AudioStateFor(d, vad.DefaultSpeakingThreshold),
			d.Features.Energy,
			d.Features.ZeroCrossingRate,
			d.Features.SpectralCentroid,
		)
	}
	return tw.Flush()
}

type segment struct {
	Index   int
	Start   float64 // seconds
	End     float64 // seconds
	Samples int     // voiced samples only; excludes pauses inside the segment
	Forced  bool
}

// detectSegments runs the detector and segmenter over samples
func detectSegments(samples []float64, o options) ([]segment, error) {
	detector, err := vad.NewDetector(o.detectorConfig())
	if err != nil {
		return nil, err
	}
	segmenter := vad.NewSegmenter(o.endSilence, o.maxSamples)

	// The segmenter keeps only voiced frames, so pauses inside a segment
	// are missing from its samples; boundaries come from frame positions.
	var (
		segments   []segment
		start, end int
	)
	collect := func(ev vad.SegmentEvent) {
		if ev.Type != vad.SegmentEnd {
			return
		}
		segments = append(segments, segment{
			Index:   len(segments) + 1,
			Start:   float64(start) / float64(o.sampleRate),
			End:     float64(end) / float64(o.sampleRate),
			Samples: len(ev.Samples),
			Forced:  ev.Forced,
		})
	}

	for i, frame := range frames(samples, o.frameLength) {
		d, err := detector.ProcessFrame(frame)
		if err != nil {
			return nil, err
		}
		if d.Voice {
			if !segmenter.Active() {
				start = i * o.frameLength
			}
			end = (i + 1) * o.frameLength
		}
		collect(segmenter.Push(frame, d.Voice))
	}
	collect(segmenter.Flush())

	return segments, nil
}

func printSegments(w io.Writer, segments []segment) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEGMENT\tSTART\tEND\tDURATION\tSAMPLES\tFORCED")
	for _, s := range segments {
		fmt.Fprintf(tw, "%d\t%.3f\t%.3f\t%.3f\t%d\t%t\n",
			s.Index, s.Start, s.End, s.End-s.Start, s.Samples, s.Forced)
	}
	tw.Flush()
}
