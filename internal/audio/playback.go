package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// PlaybackSampleRate matches the decoded avatar audio track.
const PlaybackSampleRate = 48000

// Player renders mono int16 PCM on the default output device. Frames are
// queued and the device callback drains them; when the queue runs dry the
// output is zero-filled.
type Player struct {
	log zerolog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	started bool
	pending []int16

	queue chan []int16
}

func NewPlayer(log zerolog.Logger) *Player {
	return &Player{log: log, queue: make(chan []int16, 100)}
}

// Start opens the default output stream.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(PlaybackSampleRate), 960, p.fill)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("start output stream: %w", err)
	}

	p.stream = stream
	p.started = true
	p.log.Info().Int("sampleRate", PlaybackSampleRate).Msg("speaker playback opened")
	return nil
}

// PlayPCM queues decoded samples for playback, dropping if the queue is full.
func (p *Player) PlayPCM(samples []int16) {
	select {
	case p.queue <- samples:
	default:
		p.log.Warn().Msg("playback queue full, dropping frame")
	}
}

// fill is the device callback.
func (p *Player) fill(out []int16) {
	n := 0
	for n < len(out) {
		if len(p.pending) == 0 {
			select {
			case frame := <-p.queue:
				p.pending = frame
			default:
				for ; n < len(out); n++ {
					out[n] = 0
				}
				return
			}
		}
		c := copy(out[n:], p.pending)
		p.pending = p.pending[c:]
		n += c
	}
}

// Stop closes the output stream.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil
	}
	p.started = false

	if err := p.stream.Stop(); err != nil {
		p.log.Warn().Err(err).Msg("output stream stop failed")
	}
	if err := p.stream.Close(); err != nil {
		p.log.Warn().Err(err).Msg("output stream close failed")
	}
	p.stream = nil
	if err := portaudio.Terminate(); err != nil {
		p.log.Warn().Err(err).Msg("portaudio terminate failed")
	}
	p.log.Info().Msg("speaker playback released")
	return nil
}
