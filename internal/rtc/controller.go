package rtc

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrStartPending means a negotiation is already in flight.
var ErrStartPending = errors.New("media negotiation already in progress")

// Controller manages the lifecycle of the single media session. Every Start
// negotiates from scratch; a previous session is closed first.
type Controller struct {
	neg *Negotiator
	log zerolog.Logger

	mu       sync.Mutex
	starting bool
	current  *MediaSession
}

func NewController(neg *Negotiator, log zerolog.Logger) *Controller {
	return &Controller{neg: neg, log: log}
}

// Start negotiates a fresh media session. There is no automatic retry: a
// failure is returned to the caller, who decides whether to try again. Only
// one negotiation runs at a time; overlapping calls get ErrStartPending
// instead of racing to overwrite each other's session.
func (c *Controller) Start(ctx context.Context, cb Callbacks) error {
	c.mu.Lock()
	if c.starting {
		c.mu.Unlock()
		return ErrStartPending
	}
	c.starting = true
	old := c.current
	c.current = nil
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	ms, err := c.neg.Start(ctx, cb)
	c.mu.Lock()
	c.starting = false
	if err == nil {
		c.current = ms
	}
	c.mu.Unlock()
	return err
}

// Stop closes the current session if any.
func (c *Controller) Stop() error {
	c.mu.Lock()
	ms := c.current
	c.current = nil
	c.mu.Unlock()
	if ms == nil {
		return nil
	}
	return ms.Close()
}

// Active reports whether a negotiated session is held.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}
