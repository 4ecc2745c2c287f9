package avatar

import (
	"context"
	"time"
)

// startMonitor launches the speaking status poller. Only one monitor runs at
// a time; a new SendText replaces the previous one.
func (c *Client) startMonitor() {
	c.monMu.Lock()
	if c.monCancel != nil {
		c.monCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.monCancel = cancel
	c.monMu.Unlock()

	go c.runMonitor(ctx)
}

func (c *Client) stopMonitor() {
	c.monMu.Lock()
	if c.monCancel != nil {
		c.monCancel()
		c.monCancel = nil
	}
	c.monMu.Unlock()
}

// runMonitor polls /is_speaking until the avatar has verifiably finished.
// The speaking-end requires several consecutive negative polls after speech
// was first observed, so a brief pause between sentences does not end the
// turn early. If the poll cap is hit the monitor fails safe and ends the
// speaking state anyway.
func (c *Client) runMonitor(ctx context.Context) {
	settle := time.NewTimer(c.monCfg.SettleDelay)
	defer settle.Stop()
	select {
	case <-ctx.Done():
		return
	case <-settle.C:
	}

	ticker := time.NewTicker(c.monCfg.PollInterval)
	defer ticker.Stop()

	speechSeen := false
	negatives := 0
	for polls := 0; polls < c.monCfg.MaxPolls; polls++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if c.IsSpeaking(ctx) {
			speechSeen = true
			negatives = 0
			continue
		}
		if !speechSeen {
			continue
		}
		negatives++
		if negatives >= c.monCfg.Negatives {
			if ctx.Err() != nil {
				return
			}
			c.log.Debug().Int("negatives", negatives).Msg("avatar finished speaking")
			c.setSpeaking(false)
			return
		}
	}

	if ctx.Err() != nil {
		return
	}
	c.log.Warn().Int("polls", c.monCfg.MaxPolls).Msg("speaking monitor poll cap reached, forcing speaking-end")
	c.setSpeaking(false)
}
