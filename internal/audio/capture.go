// Package audio owns microphone capture and speaker playback through
// PortAudio, plus capture level telemetry and an optional debug WAV dump.
package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// ErrBusy means the device is already delivering buffers to another owner.
// The microphone is a singleton; the caller must stop the current owner first.
var ErrBusy = errors.New("audio capture already in use")

const (
	// CaptureSampleRate is what the transcription server expects.
	CaptureSampleRate = 16000
	// CaptureFrames is the buffer size per callback, ~256ms at 16kHz.
	CaptureFrames = 4096
)

// Capture reads mono float32 PCM from the default input device. It satisfies
// the transcription session's audio source contract: Start delivers buffers
// to the callback until Stop.
type Capture struct {
	log     zerolog.Logger
	monitor *LevelMonitor
	dump    *WavDump

	mu      sync.Mutex
	stream  *portaudio.Stream
	started bool
}

// NewCapture builds a capture device. monitor and dump may be nil.
func NewCapture(log zerolog.Logger, monitor *LevelMonitor, dump *WavDump) *Capture {
	return &Capture{log: log, monitor: monitor, dump: dump}
}

// Start opens the default input stream. The callback receives a fresh copy of
// each buffer; PortAudio reuses its own.
func (c *Capture) Start(onBuffer func(samples []float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrBusy
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(CaptureSampleRate), CaptureFrames, func(in []float32) {
		samples := make([]float32, len(in))
		copy(samples, in)
		if c.monitor != nil {
			c.monitor.Observe(samples)
		}
		if c.dump != nil {
			c.dump.Append(samples)
		}
		onBuffer(samples)
	})
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("start input stream: %w", err)
	}

	c.stream = stream
	c.started = true
	c.log.Info().Int("sampleRate", CaptureSampleRate).Int("frames", CaptureFrames).Msg("microphone capture opened")
	return nil
}

// Stop closes the stream and releases the device.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.started = false

	if err := c.stream.Stop(); err != nil {
		c.log.Warn().Err(err).Msg("stream stop failed")
	}
	if err := c.stream.Close(); err != nil {
		c.log.Warn().Err(err).Msg("stream close failed")
	}
	c.stream = nil
	if err := portaudio.Terminate(); err != nil {
		c.log.Warn().Err(err).Msg("portaudio terminate failed")
	}
	c.log.Info().Msg("microphone capture released")
	return nil
}
