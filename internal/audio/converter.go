package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encoding identifies the wire format of an incoming audio payload
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm16" // 16-bit signed little-endian linear PCM
	EncodingMulaw Encoding = "mulaw" // G.711 PCMU
)

// ParseEncoding maps a wire name to an Encoding, defaulting to PCM16
func ParseEncoding(name string) (Encoding, error) {
	switch name {
	case "", "pcm16", "linear16", "audio/l16":
		return EncodingPCM16, nil
	case "mulaw", "pcmu", "audio/x-mulaw":
		return EncodingMulaw, nil
	default:
		return "", fmt.Errorf("unsupported audio encoding %q", name)
	}
}

// Decode converts an encoded payload to float samples in [-1, 1]
func Decode(data []byte, encoding Encoding) ([]float64, error) {
	switch encoding {
	case EncodingPCM16:
		return PCM16ToFloat(data)
	case EncodingMulaw:
		return MulawToFloat(data)
	default:
		return nil, fmt.Errorf("unsupported audio encoding %q", encoding)
	}
}

// PCM16ToFloat converts 16-bit little-endian PCM bytes to float samples (÷32768)
func PCM16ToFloat(pcmData []byte) ([]float64, error) {
	if len(pcmData) == 0 {
		return nil, fmt.Errorf("empty PCM data")
	}
	if len(pcmData)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even (16-bit samples)")
	}

	samples := make([]float64, len(pcmData)/2)
	for i := range samples {
		sample := int16(binary.LittleEndian.Uint16(pcmData[i*2:]))
		samples[i] = float64(sample) / 32768.0
	}

	return samples, nil
}

// FloatToPCM16 converts float samples to 16-bit little-endian PCM bytes (×32767, clipped)
func FloatToPCM16(samples []float64) []byte {
	pcmData := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(pcmData[i*2:], uint16(toInt16(sample)))
	}
	return pcmData
}

// toInt16 scales a float sample by 32767 with rounding and clipping
func toInt16(sample float64) int16 {
	scaled := math.Round(sample * 32767.0)
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	} else if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}

// MulawToFloat decodes G.711 PCMU bytes to float samples
func MulawToFloat(pcmuData []byte) ([]float64, error) {
	if len(pcmuData) == 0 {
		return nil, fmt.Errorf("empty PCMU data")
	}

	samples := make([]float64, len(pcmuData))
	for i, mulawByte := range pcmuData {
		samples[i] = float64(mulawToLinear(mulawByte)) / 8159.0
	}

	return samples, nil
}

// mulawToLinear converts an 8-bit μ-law sample to a 14-bit magnitude linear sample
func mulawToLinear(mulawByte byte) int16 {
	// μ-law uses an inverted representation
	mulawByte = ^mulawByte

	sign := mulawByte & 0x80
	segment := int32((mulawByte >> 4) & 0x07)
	mantissa := int32(mulawByte & 0x0F)

	// step = (mantissa << (segment + 1)) + (33 << segment), minus the bias
	step := mantissa << (segment + 1)
	step += int32(33) << segment
	magnitude := step - 33

	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

// CalculateRMS calculates the root mean square level of float samples.
// Used as the audio level reported alongside decisions.
func CalculateRMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += sample * sample
	}

	return math.Sqrt(sum / float64(len(samples)))
}
