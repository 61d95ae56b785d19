package audio

import "testing"

func frameOf(b byte, n int) []byte {
	f := make([]byte, n)
	for i := range f {
		f[i] = b
	}
	return f
}

func TestMeterMonotonicWithEnergy(t *testing.T) {
	m := NewMeter()
	quiet := m.Measure(frameOf(10, 4096))
	mid := m.Measure(frameOf(60, 4096))
	loud := m.Measure(frameOf(180, 4096))

	if !(quiet < mid && mid < loud) {
		t.Fatalf("loudness not monotonic: quiet=%v mid=%v loud=%v", quiet, mid, loud)
	}
}

func TestMeterRange(t *testing.T) {
	m := NewMeter()
	if got := m.Measure(frameOf(0, 4096)); got != 0 {
		t.Fatalf("silence = %v, want 0", got)
	}
	if got := m.Measure(frameOf(255, 4096)); got != MeterMax {
		t.Fatalf("full-scale = %v, want %v", got, MeterMax)
	}
}

func TestMeterDeterministic(t *testing.T) {
	m := NewMeter()
	frame := frameOf(42, 1024)
	a := m.Measure(frame)
	b := m.Measure(frame)
	if a != b {
		t.Fatalf("measure not deterministic: %v vs %v", a, b)
	}
}

func TestMeterMalformedInput(t *testing.T) {
	m := NewMeter()
	for _, frame := range [][]byte{nil, {}, {7}, {7, 8, 9}} {
		got := m.Measure(frame)
		if got < 0 || got > MeterMax {
			t.Fatalf("Measure(%v) = %v, out of range", frame, got)
		}
	}
	if got := m.Measure(nil); got != 0 {
		t.Fatalf("Measure(nil) = %v, want 0", got)
	}
}
