package supabase

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/signin/pkg/logger"
)

// refreshLoop refreshes the session a refresh margin before it expires.
// It wakes up whenever the session changes.
func (c *Client) refreshLoop(ctx context.Context) {
	defer c.wg.Done()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		var fire <-chan time.Time
		if d, ok := c.refreshDelay(time.Now()); ok {
			timer.Reset(d)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			return
		case <-c.kick:
			timer.Stop()
		case <-fire:
			c.refreshOnce(ctx)
		}
	}
}

// refreshDelay reports how long to wait before the next refresh, if one is due at all.
func (c *Client) refreshDelay(now time.Time) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || s.RefreshToken == "" {
		return 0, false
	}
	at := c.retryAt
	if at.IsZero() {
		exp := s.Expiry()
		if exp.IsZero() {
			return 0, false
		}
		at = exp.Add(-c.opts.refreshMargin)
	}
	return max(at.Sub(now), 0), true
}

func (c *Client) refreshOnce(ctx context.Context) {
	_, err := c.Refresh(ctx)
	c.observeRefresh(err)
	if err == nil {
		c.log.DebugContext(ctx, "session refreshed")
		return
	}
	if ctx.Err() != nil {
		return
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Rejected() {
		c.log.WarnContext(ctx, "refresh token rejected, signing out", logger.Error(err))
		c.clearSession(ctx)
		return
	}

	c.log.WarnContext(ctx, "session refresh failed", logger.Error(err))
	c.mu.Lock()
	c.retryAt = time.Now().Add(c.opts.retryInterval)
	c.mu.Unlock()
	c.status.Publish(refreshFailure(err))
}

func (c *Client) observeRefresh(err error) {
	for _, obs := range c.opts.observers {
		if ro, ok := obs.(RefreshObserver); ok {
			ro.Refreshed(err)
		}
	}
}
