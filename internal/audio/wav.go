package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// DecodeWAV decodes a PCM WAV file (16, 24 or 32 bit) into float samples.
// Multi-channel input is down-mixed to mono by averaging channels.
// Returns the samples and the file's sample rate.
func DecodeWAV(data []byte) ([]float64, int, error) {
	if len(data) < 12 {
		return nil, 0, fmt.Errorf("WAV data too short: need at least 12 bytes, got %d", len(data))
	}
	if string(data[0:4]) != "RIFF" {
		return nil, 0, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid WAV file: missing or malformed fmt chunk")
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, 0, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV data: %w", err)
	}

	bitDepth := buf.SourceBitDepth
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, 0, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}

	samples, err := downmix(buf.AsFloatBuffer(), bitDepth)
	if err != nil {
		return nil, 0, err
	}
	return samples, buf.Format.SampleRate, nil
}

// downmix averages interleaved integer-valued frames into mono samples in [-1, 1)
func downmix(buf *goaudio.FloatBuffer, bitDepth int) ([]float64, error) {
	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}

	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, fmt.Errorf("no audio samples found in WAV data")
	}

	scale := float64(int64(1) << (bitDepth - 1))
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c] / scale
		}
		samples[i] = sum / float64(channels)
	}
	return samples, nil
}

// EncodeWAV wraps float samples as a mono 16-bit PCM WAV file
func EncodeWAV(samples []float64, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(toInt16(s))
	}

	out := &memFile{}
	encoder := wav.NewEncoder(out, sampleRate, 16, 1, wavFormatPCM)
	err := encoder.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode WAV data: %w", err)
	}
	// Close patches the RIFF and data sizes into the header
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize WAV file: %w", err)
	}

	return out.buf, nil
}

// memFile is an in-memory io.WriteSeeker for the WAV encoder
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = m.pos
	case io.SeekEnd:
		base = len(m.buf)
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}

	pos := base + int(offset)
	if pos < 0 {
		return 0, errors.New("negative seek position")
	}
	m.pos = pos
	return int64(pos), nil
}
