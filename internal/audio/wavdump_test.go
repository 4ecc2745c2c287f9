package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/youpy/go-wav"
)

func TestWavDump_WritesReadableFile(t *testing.T) {
	dir := t.TempDir()
	d := NewWavDump(dir, zerolog.Nop())
	d.Append([]float32{0.0, 0.5, -0.5, 1.5, -1.5})
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 dump file, got %d", len(entries))
	}

	f, err := os.Open(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	r := wav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if format.SampleRate != CaptureSampleRate || format.NumChannels != 1 || format.BitsPerSample != 16 {
		t.Fatalf("unexpected format: %+v", format)
	}
	samples, err := r.ReadSamples(5)
	if err != nil {
		t.Fatalf("read samples: %v", err)
	}
	if len(samples) != 5 {
		t.Fatalf("got %d samples, want 5", len(samples))
	}
	// out-of-range inputs must be clamped
	if v := r.IntValue(samples[3], 0); v != 32767 {
		t.Fatalf("sample 3 = %d, want 32767", v)
	}
	if v := r.IntValue(samples[4], 0); v != -32767 {
		t.Fatalf("sample 4 = %d, want -32767", v)
	}
}

func TestWavDump_CloseWithNoSamplesIsNoop(t *testing.T) {
	dir := t.TempDir()
	d := NewWavDump(dir, zerolog.Nop())
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files, got %d", len(entries))
	}
}
