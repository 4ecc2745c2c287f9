// Package conversation coordinates the two listening modes of the kiosk:
// wake-word standby and continuous transcription.
package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/priyanshuailifebot/Whisper-pipeline/internal/transcript"
)

// Mode is the active listening mode.
type Mode int

const (
	// ModeWakeWord is standby: a lightweight recognizer listens for the wake
	// phrase only.
	ModeWakeWord Mode = iota
	// ModeContinuous streams everything to transcription for the active
	// conversation.
	ModeContinuous
)

func (m Mode) String() string {
	if m == ModeContinuous {
		return "continuous"
	}
	return "wake-word"
}

// SpeechStream is a capture-plus-transcription subsystem. The microphone is
// a singleton, so at most one stream records at a time.
type SpeechStream interface {
	StartRecording() error
	StopRecording() error
	Events() <-chan transcript.Event
}

// AvatarControl is the subset of the avatar channel the coordinator needs.
type AvatarControl interface {
	Speaking() bool
}

// WakeDetector matches the wake phrase in recognized text.
type WakeDetector interface {
	Feed(text string) bool
	Reset()
}

// Coordinator owns the mode state machine. Wake-word moves to continuous on
// a detected wake phrase; continuous only ever returns to wake-word through
// an explicit reset (session timeout or operator request), never implicitly.
type Coordinator struct {
	wakeStream SpeechStream
	liveStream SpeechStream
	avatar     AvatarControl
	detector   WakeDetector
	dedup      *transcript.Deduplicator
	consume    func(text string)
	timeout    time.Duration
	log        zerolog.Logger

	mu         sync.Mutex
	mode       Mode
	wakePaused bool
	resetCh    chan struct{}
}

// New builds a coordinator. consume receives each accepted transcript from
// continuous mode; timeout is the inactivity window after which a continuous
// session resets to standby (0 disables it).
func New(wakeStream, liveStream SpeechStream, avatar AvatarControl, detector WakeDetector, consume func(text string), timeout time.Duration, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		wakeStream: wakeStream,
		liveStream: liveStream,
		avatar:     avatar,
		detector:   detector,
		dedup:      transcript.NewDeduplicator(),
		consume:    consume,
		timeout:    timeout,
		log:        log,
		resetCh:    make(chan struct{}, 1),
	}
}

// Mode returns the current listening mode.
func (c *Coordinator) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Run starts in wake-word mode and processes stream events until ctx ends.
func (c *Coordinator) Run(ctx context.Context) error {
	c.mu.Lock()
	c.mode = ModeWakeWord
	c.mu.Unlock()

	if err := c.wakeStream.StartRecording(); err != nil {
		c.log.Warn().Err(err).Msg("wake recognizer failed to start, retry on next reset")
	}
	c.log.Info().Msg("listening for wake phrase")

	var timer *time.Timer
	var timeoutCh <-chan time.Time
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timeoutCh = nil
		}
	}
	armTimer := func() {
		stopTimer()
		if c.timeout > 0 {
			timer = time.NewTimer(c.timeout)
			timeoutCh = timer.C
		}
	}
	defer stopTimer()

	for {
		select {
		case <-ctx.Done():
			_ = c.wakeStream.StopRecording()
			_ = c.liveStream.StopRecording()
			return ctx.Err()

		case ev := <-c.wakeStream.Events():
			c.handleWakeEvent(ev, armTimer)

		case ev := <-c.liveStream.Events():
			c.handleLiveEvent(ev, armTimer)

		case <-c.resetCh:
			stopTimer()
			c.toWakeWord()

		case <-timeoutCh:
			c.log.Info().Dur("timeout", c.timeout).Msg("conversation timed out")
			stopTimer()
			c.toWakeWord()
		}
	}
}

func (c *Coordinator) handleWakeEvent(ev transcript.Event, armTimer func()) {
	if ev.Kind != transcript.EventTranscript {
		return
	}
	c.mu.Lock()
	inWake := c.mode == ModeWakeWord
	c.mu.Unlock()
	if !inWake {
		return
	}
	// the recognizer is stopped while the avatar speaks; this guard covers
	// results already in flight
	if c.avatar.Speaking() {
		return
	}
	if !c.detector.Feed(ev.Text) {
		return
	}
	c.log.Info().Str("text", ev.Text).Msg("wake phrase detected")
	c.toContinuous()
	armTimer()
}

func (c *Coordinator) handleLiveEvent(ev transcript.Event, armTimer func()) {
	c.mu.Lock()
	inLive := c.mode == ModeContinuous
	c.mu.Unlock()
	if !inLive {
		return
	}
	switch ev.Kind {
	case transcript.EventTranscript:
		text, ok := c.dedup.Accept(ev.Text, ev.Segments)
		if !ok {
			return
		}
		armTimer()
		c.log.Debug().Str("text", text).Msg("transcript accepted")
		if c.consume != nil {
			c.consume(text)
		}
	case transcript.EventError:
		if ev.Err != nil {
			c.log.Warn().Err(ev.Err).Msg("transcription error")
		}
	case transcript.EventDisconnected:
		c.log.Warn().Msg("transcription stream ended")
	}
}

// toContinuous swaps the capture subsystems: wake recognizer off first, then
// the live stream, keeping the mic exclusive. The mutex is held across the
// whole swap so an observer callback cannot interleave a stale restart.
func (c *Coordinator) toContinuous() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.wakeStream.StopRecording(); err != nil {
		c.log.Warn().Err(err).Msg("wake recognizer stop failed")
	}
	if err := c.liveStream.StartRecording(); err != nil {
		c.log.Warn().Err(err).Msg("live stream start failed")
	}
	c.mode = ModeContinuous
	c.log.Info().Msg("conversation mode: continuous")
}

func (c *Coordinator) toWakeWord() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.liveStream.StopRecording(); err != nil {
		c.log.Warn().Err(err).Msg("live stream stop failed")
	}
	c.dedup.Reset()
	c.detector.Reset()
	c.mode = ModeWakeWord
	if !c.wakePaused {
		if err := c.wakeStream.StartRecording(); err != nil {
			c.log.Warn().Err(err).Msg("wake recognizer start failed")
		}
	}
	c.log.Info().Msg("conversation mode: wake-word")
}

// Reset explicitly returns to wake-word standby.
func (c *Coordinator) Reset() {
	select {
	case c.resetCh <- struct{}{}:
	default:
	}
}

// SpeakingStarted implements the avatar speaking observer. In wake-word mode
// the recognizer hears the speakers directly, so it is stopped outright for
// the duration. Continuous mode keeps streaming and relies on the echo
// cancellation in the capture path.
func (c *Coordinator) SpeakingStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	inWake := c.mode == ModeWakeWord
	c.wakePaused = inWake
	if !inWake {
		return
	}
	if err := c.wakeStream.StopRecording(); err != nil {
		c.log.Warn().Err(err).Msg("wake recognizer pause failed")
	}
	c.log.Debug().Msg("wake recognizer paused while avatar speaks")
}

// SpeakingStopped restarts the wake recognizer if it was paused. The mode
// check and the restart stay under one lock acquisition: a wake detection
// racing this callback must not leave the recognizer claiming the mic the
// live stream now owns.
func (c *Coordinator) SpeakingStopped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	paused := c.wakePaused
	c.wakePaused = false
	if !paused || c.mode != ModeWakeWord {
		return
	}
	if err := c.wakeStream.StartRecording(); err != nil {
		c.log.Warn().Err(err).Msg("wake recognizer resume failed")
	}
	c.log.Debug().Msg("wake recognizer resumed")
}
