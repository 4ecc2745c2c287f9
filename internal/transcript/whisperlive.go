// Package transcript streams microphone audio to a WhisperLive server over
// WebSocket and emits transcription events.
package transcript

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/priyanshuailifebot/Whisper-pipeline/internal/backoff"
)

// endOfAudio is the literal sentinel the server expects before a clean close.
const endOfAudio = "END_OF_AUDIO"

var (
	// ErrConnectTimeout means the server did not complete the handshake within
	// the connect timeout.
	ErrConnectTimeout = errors.New("transcription server connect timeout")
	// ErrReconnectFailed means every reconnect attempt was exhausted.
	ErrReconnectFailed = errors.New("transcription reconnect attempts exhausted")
	// ErrNotConnected is returned for operations that need an open socket.
	ErrNotConnected = errors.New("not connected to transcription server")
)

// AudioSource supplies mono float32 PCM buffers at the capture sample rate.
// Start begins delivering buffers to the callback until Stop is called.
type AudioSource interface {
	Start(onBuffer func(samples []float32)) error
	Stop() error
}

// Options configures a streaming transcription session.
type Options struct {
	ServerURL         string
	Language          string
	Model             string
	UseVAD            bool
	SendLastNSegments int
	NoSpeechThresh    float64
	EnableTranslation bool
	TargetLanguage    string
	Gain              float32
	ConnectTimeout    time.Duration
	Reconnect         backoff.Policy
}

// DefaultOptions returns the options used against a stock WhisperLive server.
func DefaultOptions(serverURL string) Options {
	return Options{
		ServerURL:         serverURL,
		Language:          "en",
		Model:             "small",
		UseVAD:            true,
		SendLastNSegments: 1,
		NoSpeechThresh:    0.6,
		Gain:              2.0,
		ConnectTimeout:    10 * time.Second,
		Reconnect:         backoff.Default(),
	}
}

// Session is a live transcription stream. Connect opens the socket and sends
// the config frame; audio flows once the server reports readiness.
type Session struct {
	opts   Options
	source AudioSource
	log    zerolog.Logger

	mu          sync.RWMutex
	wmu         sync.Mutex
	conn        *websocket.Conn
	uid         string
	connected   bool
	serverReady bool
	shouldRec   bool
	capturing   bool
	closed      bool

	audioData chan []byte
	events    chan Event
	stopCh    chan struct{}
}

// NewSession builds a session around the given audio source. The source is
// not opened until the server is ready and recording has been requested.
func NewSession(opts Options, source AudioSource, log zerolog.Logger) *Session {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.Gain == 0 {
		opts.Gain = 1.0
	}
	if opts.Reconnect.MaxAttempts == 0 {
		opts.Reconnect = backoff.Default()
	}
	return &Session{
		opts:      opts,
		source:    source,
		log:       log,
		audioData: make(chan []byte, 1000),
		events:    make(chan Event, 100),
		stopCh:    make(chan struct{}),
	}
}

// Events returns the channel carrying transcription events.
func (s *Session) Events() <-chan Event { return s.events }

// Connect dials the server and sends the configuration frame. A handshake
// that exceeds the connect timeout yields ErrConnectTimeout; other dial
// failures are returned as-is.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotConnected
	}
	if s.connected {
		return nil
	}
	if s.opts.ServerURL == "" {
		return fmt.Errorf("transcription server URL is empty")
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}

	s.conn = conn
	s.connected = true
	s.serverReady = false

	go s.handleMessages(conn)
	go s.sendAudioData()

	s.log.Info().Str("url", s.opts.ServerURL).Str("uid", s.uid).Msg("connected to transcription server")
	return nil
}

// dial opens the socket and sends the config frame. Callers hold s.mu.
func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	s.uid = uuid.NewString()

	dialer := websocket.Dialer{HandshakeTimeout: s.opts.ConnectTimeout}
	dialCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, s.opts.ServerURL, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrConnectTimeout
		}
		if resp != nil {
			return nil, fmt.Errorf("transcription server rejected handshake with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to transcription server: %w", err)
	}

	cfg := clientConfig{
		UID:               s.uid,
		Language:          s.opts.Language,
		Task:              "transcribe",
		Model:             s.opts.Model,
		UseVAD:            s.opts.UseVAD,
		SendLastNSegments: s.opts.SendLastNSegments,
		NoSpeechThresh:    s.opts.NoSpeechThresh,
		EnableTranslation: s.opts.EnableTranslation,
		TargetLanguage:    s.opts.TargetLanguage,
	}
	if err := conn.WriteJSON(cfg); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to send transcription config: %w", err)
	}
	return conn, nil
}

// StartRecording opens the audio source and begins streaming. If the server
// has not reported readiness yet the intent is remembered and capture starts
// the moment SERVER_READY arrives. A source open failure is returned so the
// caller can retry; it does not tear the session down.
func (s *Session) StartRecording() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if s.capturing {
		s.mu.Unlock()
		return nil
	}
	if !s.serverReady {
		s.shouldRec = true
		s.mu.Unlock()
		s.log.Debug().Msg("server not ready yet, recording will start on SERVER_READY")
		return nil
	}
	s.mu.Unlock()

	if err := s.startCapture(); err != nil {
		return err
	}
	s.mu.Lock()
	s.shouldRec = true
	s.mu.Unlock()
	return nil
}

// StopRecording stops audio capture but keeps the socket open.
func (s *Session) StopRecording() error {
	s.mu.Lock()
	s.shouldRec = false
	capturing := s.capturing
	s.capturing = false
	s.mu.Unlock()
	if !capturing {
		return nil
	}
	return s.source.Stop()
}

// Recording reports whether microphone capture is currently active.
func (s *Session) Recording() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capturing
}

// Connected reports whether the socket is open.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Session) startCapture() error {
	if err := s.source.Start(s.onCaptureBuffer); err != nil {
		s.log.Warn().Err(err).Msg("failed to open audio source")
		return fmt.Errorf("failed to open audio source: %w", err)
	}
	s.mu.Lock()
	s.capturing = true
	s.mu.Unlock()
	s.log.Info().Msg("audio capture started")
	return nil
}

func (s *Session) onCaptureBuffer(samples []float32) {
	data := encodeFloat32LE(samples, s.opts.Gain)
	select {
	case s.audioData <- data:
	default:
		s.log.Warn().Msg("audio buffer full, dropping packet")
	}
}

// Close stops capture, sends the end-of-audio sentinel and closes the socket.
// It is idempotent and never triggers a reconnect.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	capturing := s.capturing
	s.capturing = false
	s.shouldRec = false
	s.connected = false
	s.conn = nil
	close(s.stopCh)
	s.mu.Unlock()

	if capturing {
		_ = s.source.Stop()
	}
	if conn != nil {
		// the socket allows one writer at a time; wait out any in-flight
		// audio frame before the sentinel
		s.wmu.Lock()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(endOfAudio))
		s.wmu.Unlock()
		_ = conn.Close()
	}
	s.log.Info().Msg("transcription session closed")
	return nil
}

// handleMessages reads server frames until the connection drops. An unclean
// drop while the session is still active triggers the reconnect loop.
func (s *Session) handleMessages(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			stillActive := !s.closed && s.conn == conn
			if stillActive {
				s.connected = false
				s.serverReady = false
				s.conn = nil
			}
			s.mu.Unlock()
			if stillActive {
				s.log.Warn().Err(err).Msg("transcription connection lost")
				s.reconnect()
			}
			return
		}
		s.processMessage(message)
	}
}

func (s *Session) processMessage(message []byte) {
	var msg serverMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		s.log.Warn().Err(err).Msg("unparseable server message")
		return
	}

	switch {
	case msg.Message == "SERVER_READY":
		s.log.Info().Str("backend", msg.BackendHolder).Msg("transcription server ready")
		s.mu.Lock()
		s.serverReady = true
		resume := s.shouldRec && !s.capturing
		s.mu.Unlock()
		s.emit(Event{Kind: EventReady})
		if resume {
			if err := s.startCapture(); err != nil {
				s.log.Warn().Err(err).Msg("deferred recording start failed")
			}
		}
	case msg.Message == "DISCONNECT":
		s.log.Info().Msg("server requested disconnect")
		s.emit(Event{Kind: EventDisconnected})
		_ = s.Close()
	case msg.Status == "CONFIG_RECEIVED":
		s.log.Debug().Msg("server acknowledged config")
	case msg.Status == "WAIT":
		s.log.Info().Msg("server busy, client queued")
		s.emit(Event{Kind: EventWait})
	case msg.Status == "ERROR":
		s.log.Warn().Str("message", msg.Message).Msg("server error")
		s.emit(Event{Kind: EventError, Err: fmt.Errorf("server error: %s", msg.Message)})
	case msg.Status == "WARNING":
		s.log.Warn().Str("message", msg.Message).Msg("server warning")
	case len(msg.Segments) > 0:
		text := joinSegments(msg.Segments)
		if text == "" {
			return
		}
		s.emit(Event{
			Kind:               EventTranscript,
			Text:               text,
			Segments:           msg.Segments,
			TranslatedSegments: msg.TranslatedSegments,
		})
	case msg.Language != "":
		s.log.Info().Str("language", msg.Language).Float64("prob", msg.LanguageProb).Msg("language detected")
		s.emit(Event{Kind: EventLanguage, Language: msg.Language, LanguageProb: msg.LanguageProb})
	default:
		s.log.Debug().RawJSON("message", message).Msg("ignoring unknown server message")
	}
}

// reconnect retries the connection with exponential backoff and a fresh uid
// per attempt. Exhaustion emits a terminal error event and the session
// settles disconnected.
func (s *Session) reconnect() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	policy := s.opts.Reconnect
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := policy.Wait(ctx, attempt); err != nil {
			return
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		conn, err := s.dial(ctx)
		if err != nil {
			s.mu.Unlock()
			s.log.Warn().Err(err).Int("attempt", attempt).Int("max", policy.MaxAttempts).Msg("reconnect failed")
			continue
		}
		s.conn = conn
		s.connected = true
		s.serverReady = false
		s.mu.Unlock()

		s.log.Info().Int("attempt", attempt).Str("uid", s.uid).Msg("reconnected to transcription server")
		go s.handleMessages(conn)
		return
	}

	s.log.Error().Int("attempts", policy.MaxAttempts).Msg("giving up on transcription server")
	s.emit(Event{Kind: EventError, Err: ErrReconnectFailed})
	s.emit(Event{Kind: EventDisconnected})
}

// sendAudioData drains the audio queue onto the socket. Frames arriving while
// disconnected are dropped.
func (s *Session) sendAudioData() {
	for {
		select {
		case <-s.stopCh:
			return
		case data := <-s.audioData:
			s.mu.RLock()
			conn := s.conn
			ready := s.serverReady
			s.mu.RUnlock()
			if conn == nil || !ready {
				continue
			}
			s.wmu.Lock()
			err := conn.WriteMessage(websocket.BinaryMessage, data)
			s.wmu.Unlock()
			if err != nil {
				s.log.Warn().Err(err).Msg("failed to send audio frame")
			}
		}
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn().Int("kind", int(ev.Kind)).Msg("event buffer full, dropping event")
	}
}

// encodeFloat32LE applies gain with a hard clamp to [-1, 1] and serializes
// samples as little-endian float32, the wire format the server expects.
func encodeFloat32LE(samples []float32, gain float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, v := range samples {
		v *= gain
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func joinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
