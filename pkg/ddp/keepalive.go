package ddp

import (
	"context"
	"time"
)

// keepAliveInterval is the A3 ping cadence while we hold the opener role,
// spec.md §4.2.8.
const keepAliveInterval = 2 * time.Second

// serviceKeepAlive emits a ping when we are the opener, the session is
// established, and the interval has elapsed. Replies to peer pings are
// handled inline in dispatchControl as soon as they arrive, not here.
func (e *Engine) serviceKeepAlive(ctx context.Context) error {
	if !e.opener {
		return nil
	}
	switch e.State() {
	case StateReady, StatePaused:
	default:
		return nil
	}
	if time.Since(e.lastKeepaliveSent) < keepAliveInterval {
		return nil
	}
	if err := e.send(ctx, encodeControl([]byte{ctrlPingPrefix})); err != nil {
		return err
	}
	e.lastKeepaliveSent = time.Now()
	return nil
}

// Ping sends an immediate keep-alive ping outside the usual interval gate,
// for callers (pkg/presentation's pre-emption handling) that need to nudge
// the cluster right away rather than wait for the next serviceKeepAlive tick.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.send(ctx, encodeControl([]byte{ctrlPingPrefix})); err != nil {
		return err
	}
	e.lastKeepaliveSent = time.Now()
	return nil
}
