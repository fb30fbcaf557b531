package master

import (
	"context"
	"time"

	"github.com/edgeplc/modmaster/internal/logging"
	"github.com/edgeplc/modmaster/internal/metrics"
	"github.com/edgeplc/modmaster/internal/transport"
)

const (
	reconnectBaseDelay = 2 * time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// connManager owns a device's transport handle and keeps it usable. A
// connection counts as usable only when the transport reports connected AND
// no transaction has failed on it since; a failed transaction marks the
// handle unhealthy and the next Ensure tears it down and reconnects.
type connManager struct {
	name string
	dial func() transport.Client
	log  *logging.Logger
	stat *metrics.Device

	client  transport.Client
	healthy bool

	baseDelay time.Duration
	maxDelay  time.Duration
	delay     time.Duration
}

func newConnManager(name string, dial func() transport.Client, log *logging.Logger, stat *metrics.Device) *connManager {
	return &connManager{
		name:      name,
		dial:      dial,
		log:       log,
		stat:      stat,
		baseDelay: reconnectBaseDelay,
		maxDelay:  reconnectMaxDelay,
		delay:     reconnectBaseDelay,
	}
}

// Ensure returns true when the connection is usable, reconnecting if it is
// not. It returns false only when ctx is cancelled mid-retry.
func (c *connManager) Ensure(ctx context.Context) bool {
	if c.client != nil && c.client.Connected() && c.healthy {
		return true
	}
	return c.connectWithRetry(ctx)
}

// MarkUnhealthy flags the current handle as broken. The transport may still
// report connected (the TCP session can outlive a slave that stopped
// answering), so the flag forces a full teardown on the next Ensure.
func (c *connManager) MarkUnhealthy() {
	c.healthy = false
}

// Disconnect closes the handle if one is open.
func (c *connManager) Disconnect() {
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	c.healthy = false
	c.stat.SetState(metrics.StateDisconnected)
}

// connectWithRetry retries until a connection succeeds or ctx is cancelled.
// Each attempt uses a fresh handle. Delay grows by half per attempt, capped
// at maxDelay, and resets on success.
func (c *connManager) connectWithRetry(ctx context.Context) bool {
	c.Disconnect()
	c.stat.SetState(metrics.StateConnecting)

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return false
		}

		client := c.dial()
		err := client.Connect()
		if err == nil {
			c.client = client
			c.healthy = true
			c.delay = c.baseDelay
			c.stat.SetState(metrics.StateConnected)
			if attempt > 1 {
				c.stat.IncReconnects()
			}
			c.log.Info("connected (attempt %d)", attempt)
			return true
		}
		client.Close()

		if attempt == 1 || attempt%10 == 0 {
			c.log.Error("connect attempt %d failed: %v (retrying in %v)", attempt, err, c.delay)
		}

		if !sleepCtx(ctx, c.delay) {
			return false
		}
		c.delay = time.Duration(float64(c.delay) * 1.5)
		if c.delay > c.maxDelay {
			c.delay = c.maxDelay
		}
	}
}

// sleepCtx sleeps for d in short slices so cancellation is picked up
// quickly. It returns false when ctx was cancelled before d elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	const slice = 100 * time.Millisecond
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		if remaining > slice {
			remaining = slice
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(remaining):
		}
	}
}
