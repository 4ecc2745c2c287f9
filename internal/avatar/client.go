// Package avatar drives the avatar backend over its HTTP control API:
// sending text to speak, interrupting, and tracking speaking status.
package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/priyanshuailifebot/Whisper-pipeline/internal/session"
)

// ErrInvalidSession means no media session has been negotiated yet; requests
// fail fast locally instead of hitting the backend with session id 0.
var ErrInvalidSession = errors.New("no valid avatar session")

// HTTPError reports a non-2xx control API response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("avatar API returned status %d: %s", e.Status, e.Body)
}

// SpeakingObserver receives speaking state transitions.
type SpeakingObserver interface {
	SpeakingStarted()
	SpeakingStopped()
}

// MonitorConfig tunes the speaking status poller.
type MonitorConfig struct {
	// SettleDelay gives the backend time to start producing audio before the
	// first poll.
	SettleDelay time.Duration
	// PollInterval between /is_speaking calls.
	PollInterval time.Duration
	// Negatives is how many consecutive false polls, after speech was first
	// observed, confirm the avatar finished.
	Negatives int
	// MaxPolls caps the monitor; exhaustion forces a speaking-end.
	MaxPolls int
}

// DefaultMonitorConfig matches the backend's observed timing.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		SettleDelay:  time.Second,
		PollInterval: 500 * time.Millisecond,
		Negatives:    3,
		MaxPolls:     100,
	}
}

// Client is the avatar control channel.
type Client struct {
	baseURL string
	http    *http.Client
	sess    *session.State
	log     zerolog.Logger
	monCfg  MonitorConfig

	observer SpeakingObserver
	speaking atomic.Bool

	monMu     sync.Mutex
	monCancel context.CancelFunc
}

// NewClient builds a control channel bound to the shared session state.
// observer may be nil.
func NewClient(baseURL string, sess *session.State, observer SpeakingObserver, monCfg MonitorConfig, log zerolog.Logger) *Client {
	if monCfg.PollInterval <= 0 {
		monCfg = DefaultMonitorConfig()
	}
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 10 * time.Second},
		sess:     sess,
		observer: observer,
		monCfg:   monCfg,
		log:      log,
	}
}

type humanRequest struct {
	Text      string `json:"text"`
	Type      string `json:"type"`
	Interrupt bool   `json:"interrupt"`
	SessionID int64  `json:"sessionid"`
	Language  string `json:"language"`
}

type speakingRequest struct {
	SessionID int64 `json:"sessionid"`
}

type speakingResponse struct {
	Code int  `json:"code"`
	Data bool `json:"data"`
}

// SendText sanitizes and language-tags text, submits it for the avatar to
// speak, and starts the speaking monitor. The speaking-start event is emitted
// optimistically before the backend confirms.
func (c *Client) SendText(ctx context.Context, text string) error {
	id := c.sess.ID()
	if id == 0 {
		return ErrInvalidSession
	}

	clean := SanitizeForSpeech(text)
	if clean == "" {
		return nil
	}
	lang := DetectLanguage(clean)

	req := humanRequest{
		Text:      clean,
		Type:      "echo",
		Interrupt: true,
		SessionID: id,
		Language:  lang,
	}
	c.log.Info().Int64("sessionid", id).Str("language", lang).Int("chars", len(clean)).Msg("sending text to avatar")
	if err := c.postJSON(ctx, "/human", req, nil); err != nil {
		return err
	}

	c.setSpeaking(true)
	c.startMonitor()
	return nil
}

// IsSpeaking polls the backend. Any transport failure, non-2xx status or
// nonzero response code reads as not speaking so the kiosk never deadlocks
// waiting on a broken status endpoint.
func (c *Client) IsSpeaking(ctx context.Context) bool {
	id := c.sess.ID()
	if id == 0 {
		return false
	}
	var resp speakingResponse
	if err := c.postJSON(ctx, "/is_speaking", speakingRequest{SessionID: id}, &resp); err != nil {
		c.log.Debug().Err(err).Msg("is_speaking poll failed, assuming idle")
		return false
	}
	if resp.Code != 0 {
		return false
	}
	return resp.Data
}

// Interrupt tells the avatar to stop talking immediately and force-ends the
// local speaking state.
func (c *Client) Interrupt(ctx context.Context) error {
	id := c.sess.ID()
	if id == 0 {
		return ErrInvalidSession
	}
	req := humanRequest{
		Text:      "",
		Type:      "echo",
		Interrupt: true,
		SessionID: id,
		Language:  "en",
	}
	err := c.postJSON(ctx, "/human", req, nil)
	c.stopMonitor()
	c.setSpeaking(false)
	return err
}

// Speaking reports the locally tracked speaking state.
func (c *Client) Speaking() bool { return c.speaking.Load() }

// WaitForIdle blocks until the avatar stops speaking or the deadline passes.
func (c *Client) WaitForIdle(ctx context.Context, max time.Duration) error {
	deadline := time.Now().Add(max)
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for {
		if !c.speaking.Load() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("avatar still speaking after %v", max)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Client) setSpeaking(v bool) {
	if c.speaking.Swap(v) == v {
		return
	}
	if c.observer == nil {
		return
	}
	if v {
		c.observer.SpeakingStarted()
	} else {
		c.observer.SpeakingStopped()
	}
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("avatar API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Status: resp.StatusCode, Body: string(data)}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("avatar API response unparseable: %w", err)
		}
	}
	return nil
}
