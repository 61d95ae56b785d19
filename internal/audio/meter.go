package audio

import "math"

const (
	meterStride = 4
	meterScale  = 2.0
	MeterMax    = 100.0
)

// Meter estimates loudness of raw PCM frames for the noise gate and for
// UI volume feedback. The estimate is a root-mean-square over every
// meterStride-th byte, which is cheap, deterministic, and monotonic with
// signal energy; it is then normalized into [0, MeterMax].
type Meter struct{}

func NewMeter() *Meter { return &Meter{} }

// Measure returns a loudness estimate in [0, MeterMax]. Malformed or empty
// frames yield 0 rather than an error.
func (m *Meter) Measure(frame []byte) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	n := 0
	for i := 0; i < len(frame); i += meterStride {
		v := float64(frame[i])
		sum += v * v
		n++
	}
	if n == 0 {
		return 0
	}
	rms := math.Sqrt(sum / float64(n))
	normalized := rms / meterScale
	if normalized < 0 {
		return 0
	}
	if normalized > MeterMax {
		return MeterMax
	}
	return normalized
}
