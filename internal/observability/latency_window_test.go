package observability

import "testing"

func TestLatencyWindowSnapshot(t *testing.T) {
	w := newLatencyWindow(8)
	for _, ms := range []float64{100, 200, 300, 400} {
		w.Observe("first_audio", ms)
	}

	snap := w.Snapshot()
	if len(snap.Stages) != 1 {
		t.Fatalf("stages = %d, want 1", len(snap.Stages))
	}
	st := snap.Stages[0]
	if st.Stage != "first_audio" || st.Samples != 4 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if st.LastMS != 400 {
		t.Fatalf("LastMS = %v, want 400", st.LastMS)
	}
	if st.AvgMS != 250 {
		t.Fatalf("AvgMS = %v, want 250", st.AvgMS)
	}
}

func TestLatencyWindowWrapsRing(t *testing.T) {
	w := newLatencyWindow(4)
	for i := 0; i < 10; i++ {
		w.Observe("chunk_gap", float64(i))
	}
	snap := w.Snapshot()
	if snap.Stages[0].Samples != 4 {
		t.Fatalf("samples = %d, want ring size 4", snap.Stages[0].Samples)
	}
}

func TestLatencyWindowIgnoresInvalid(t *testing.T) {
	w := newLatencyWindow(4)
	w.Observe("", 10)
	w.Observe("stage", -1)
	if got := len(w.Snapshot().Stages); got != 0 {
		t.Fatalf("stages = %d, want 0", got)
	}
}
