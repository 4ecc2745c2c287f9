package audio

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// rmsSilence is the level below which a buffer counts as silent.
	rmsSilence = 0.001
	// silentWarnAfter is how long sustained silence must last before warning
	// that the microphone may be dead or muted.
	silentWarnAfter = 5 * time.Second
	levelHistory    = 20
)

// LevelMonitor tracks capture energy so a muted or disconnected microphone
// is visible in the logs instead of silently producing empty transcripts.
type LevelMonitor struct {
	log zerolog.Logger

	mu          sync.Mutex
	history     []float64
	silentSince time.Time
	warned      bool

	now func() time.Time
}

func NewLevelMonitor(log zerolog.Logger) *LevelMonitor {
	return &LevelMonitor{log: log, now: time.Now}
}

// Observe records a buffer's RMS level.
func (m *LevelMonitor) Observe(samples []float32) {
	level := RMS(samples)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, level)
	if len(m.history) > levelHistory {
		m.history = m.history[1:]
	}

	if level >= rmsSilence {
		m.silentSince = time.Time{}
		m.warned = false
		return
	}
	now := m.now()
	if m.silentSince.IsZero() {
		m.silentSince = now
		return
	}
	if !m.warned && now.Sub(m.silentSince) >= silentWarnAfter {
		m.warned = true
		m.log.Warn().Dur("silentFor", now.Sub(m.silentSince)).Msg("microphone capture appears silent, check device or mute state")
	}
}

// Level returns the most recent RMS level, 0 if nothing observed yet.
func (m *LevelMonitor) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return 0
	}
	return m.history[len(m.history)-1]
}

// Average returns the mean RMS over the recent history window.
func (m *LevelMonitor) Average() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return 0
	}
	var sum float64
	for _, v := range m.history {
		sum += v
	}
	return sum / float64(len(m.history))
}

// RMS computes the root-mean-square level of a float32 PCM buffer.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, v := range samples {
		sumSquares += float64(v) * float64(v)
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}
