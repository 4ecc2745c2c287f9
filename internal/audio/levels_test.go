package audio

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Fatalf("empty buffer RMS = %f, want 0", got)
	}
	if got := RMS([]float32{0.5, -0.5, 0.5, -0.5}); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("RMS = %f, want 0.5", got)
	}
}

func TestLevelMonitor_TracksHistory(t *testing.T) {
	m := NewLevelMonitor(zerolog.Nop())
	for i := 0; i < levelHistory+5; i++ {
		m.Observe([]float32{0.5, 0.5})
	}
	if got := m.Level(); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("Level = %f, want 0.5", got)
	}
	if got := m.Average(); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("Average = %f, want 0.5", got)
	}
	m.mu.Lock()
	n := len(m.history)
	m.mu.Unlock()
	if n != levelHistory {
		t.Fatalf("history length = %d, want %d", n, levelHistory)
	}
}

func TestLevelMonitor_WarnsOnceOnSustainedSilence(t *testing.T) {
	m := NewLevelMonitor(zerolog.Nop())
	now := time.Now()
	m.now = func() time.Time { return now }

	silent := make([]float32, 100)
	m.Observe(silent)
	now = now.Add(silentWarnAfter + time.Second)
	m.Observe(silent)

	m.mu.Lock()
	warned := m.warned
	m.mu.Unlock()
	if !warned {
		t.Fatalf("expected silence warning after %v", silentWarnAfter)
	}

	// voice resets the warning state
	loud := []float32{0.4, -0.4, 0.4, -0.4}
	m.Observe(loud)
	m.mu.Lock()
	warned = m.warned
	silentSince := m.silentSince
	m.mu.Unlock()
	if warned || !silentSince.IsZero() {
		t.Fatalf("voice should reset silence tracking")
	}
}

func TestPlayer_FillDrainsQueueAndPadsWithZeros(t *testing.T) {
	p := NewPlayer(zerolog.Nop())
	p.PlayPCM([]int16{1, 2, 3})
	out := make([]int16, 5)
	for i := range out {
		out[i] = 9
	}
	p.fill(out)
	want := []int16{1, 2, 3, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}
