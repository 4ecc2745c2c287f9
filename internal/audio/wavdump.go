package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/youpy/go-wav"
)

// WavDump accumulates captured PCM and writes it to a WAV file on Close.
// Used for debugging what the transcription server actually hears.
type WavDump struct {
	dir string
	log zerolog.Logger

	mu      sync.Mutex
	samples []int16
}

func NewWavDump(dir string, log zerolog.Logger) *WavDump {
	return &WavDump{dir: dir, log: log}
}

// Append converts float32 samples to int16 and buffers them.
func (d *WavDump) Append(samples []float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		d.samples = append(d.samples, int16(v*32767))
	}
}

// Close writes the buffered audio to a timestamped file and resets the
// buffer. Closing with no samples is a no-op.
func (d *WavDump) Close() error {
	d.mu.Lock()
	samples := d.samples
	d.samples = nil
	d.mu.Unlock()

	if len(samples) == 0 {
		return nil
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}
	name := filepath.Join(d.dir, fmt.Sprintf("capture-%s.wav", time.Now().Format("20060102-150405")))
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create dump file: %w", err)
	}
	defer f.Close()

	w := wav.NewWriter(f, uint32(len(samples)), 1, CaptureSampleRate, 16)
	out := make([]wav.Sample, len(samples))
	for i, s := range samples {
		out[i].Values[0] = int(s)
	}
	if err := w.WriteSamples(out); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	d.log.Info().Str("file", name).Int("samples", len(samples)).Msg("capture dump written")
	return nil
}
