package audio

// StreamResampler applies the same linear interpolation as Resample to audio
// delivered in chunks. The fractional source position and the last sample
// carry over between chunks, so chunk boundaries neither hold nor drop samples.
type StreamResampler struct {
	sourceRate int64
	targetRate int64

	emitted  int64   // output samples produced
	consumed int64   // input samples received
	prev     float64 // input sample at consumed-1
}

// NewStreamResampler creates a resampler from sourceRate to targetRate.
// Matching or non-positive rates pass audio through unchanged.
func NewStreamResampler(sourceRate, targetRate int) *StreamResampler {
	return &StreamResampler{sourceRate: int64(sourceRate), targetRate: int64(targetRate)}
}

func (r *StreamResampler) passthrough() bool {
	return r.sourceRate == r.targetRate || r.sourceRate <= 0 || r.targetRate <= 0
}

// SourceRate returns the input sample rate
func (r *StreamResampler) SourceRate() int {
	return int(r.sourceRate)
}

// position returns the source index and fraction of output sample k.
// Integer arithmetic keeps long streams from accumulating rounding error.
func (r *StreamResampler) position(k int64) (int64, float64) {
	scaled := k * r.sourceRate
	return scaled / r.targetRate, float64(scaled%r.targetRate) / float64(r.targetRate)
}

// Process consumes a chunk and returns every output sample whose
// interpolation window is complete
func (r *StreamResampler) Process(chunk []float64) []float64 {
	if r.passthrough() {
		return chunk
	}

	base := r.consumed
	total := base + int64(len(chunk))
	at := func(i int64) float64 {
		if i < base {
			return r.prev
		}
		return chunk[i-base]
	}

	var out []float64
	for {
		idx, fraction := r.position(r.emitted)
		if idx >= total-1 {
			break
		}
		out = append(out, at(idx)*(1.0-fraction)+at(idx+1)*fraction)
		r.emitted++
	}

	if len(chunk) > 0 {
		r.prev = chunk[len(chunk)-1]
	}
	r.consumed = total
	return out
}

// Flush emits the trailing positions, holding the last input sample
func (r *StreamResampler) Flush() []float64 {
	if r.passthrough() || r.consumed == 0 {
		return nil
	}

	var out []float64
	for {
		if idx, _ := r.position(r.emitted); idx >= r.consumed {
			break
		}
		out = append(out, r.prev)
		r.emitted++
	}
	return out
}
