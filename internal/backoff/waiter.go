// Package backoff implements the retry half of C16 Transport Resilience:
// when a Provider call fails with a usage-limit TransportError (spec.md
// §7), wait out the provider's own reset window instead of surfacing the
// failure to the calling agent immediately.
package backoff

import (
	"context"
	"time"
)

// tickInterval is how often BackoffLogger.LogBackoffTick fires while a
// wait is in progress.
const tickInterval = 1 * time.Second

// BackoffLogger receives live progress while TransportBackoff.Wait blocks.
// LogBackoffTick fires every tickInterval; LogBackoffAnnounce fires at the
// configured announce interval, meant for a less chatty log line.
type BackoffLogger interface {
	LogBackoffTick(remaining, total time.Duration)
	LogBackoffAnnounce(remaining, total time.Duration)
}

// TransportBackoff decides whether a usage-limit TransportError is worth
// waiting out, and if so blocks the calling goroutine until the provider's
// reset window has passed (plus a small safety buffer, since providers are
// not always exact about their own reset clock).
type TransportBackoff struct {
	maxWait      time.Duration
	announceInt  time.Duration
	safetyBuffer time.Duration
	logger       BackoffLogger
}

// NewTransportBackoff builds a TransportBackoff. logger may be nil.
func NewTransportBackoff(maxWait, announceInterval, safetyBuffer time.Duration, logger BackoffLogger) *TransportBackoff {
	return &TransportBackoff{
		maxWait:      maxWait,
		announceInt:  announceInterval,
		safetyBuffer: safetyBuffer,
		logger:       logger,
	}
}

// ShouldBackoff reports whether retry is the right response to info: it is
// not, once the provider's quoted reset window exceeds maxWait, since
// blocking a CRAFTER/GATE agent that long is worse than failing the wave
// fast. A nil info (no usage limit detected) means don't back off.
func (b *TransportBackoff) ShouldBackoff(info *UsageLimitInfo) bool {
	if info == nil {
		return false
	}
	return info.TimeUntilReset() <= b.maxWait
}

// Wait blocks until info's reset window (plus safety buffer) elapses,
// ticking the logger along the way, or until ctx is cancelled.
func (b *TransportBackoff) Wait(ctx context.Context, info *UsageLimitInfo) error {
	if info == nil {
		return nil
	}

	if info.IsExpired() {
		select {
		case <-time.After(b.safetyBuffer):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	total := b.TimeUntilClear(info)
	deadline := time.Now().Add(total)

	announce := time.NewTicker(b.announceInt)
	defer announce.Stop()
	tick := time.NewTicker(tickInterval)
	defer tick.Stop()

	if b.logger != nil {
		b.logger.LogBackoffTick(total, total)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case now := <-tick.C:
			remaining := deadline.Sub(now)
			if remaining <= 0 {
				return nil
			}
			if b.logger != nil {
				b.logger.LogBackoffTick(remaining, total)
			}

		case now := <-announce.C:
			remaining := deadline.Sub(now)
			if remaining <= 0 {
				return nil
			}
			if b.logger != nil {
				b.logger.LogBackoffAnnounce(remaining, total)
			}

		case <-time.After(time.Until(deadline)):
			return nil
		}
	}
}

// TimeUntilClear returns how long Wait would block for info, including the
// safety buffer.
func (b *TransportBackoff) TimeUntilClear(info *UsageLimitInfo) time.Duration {
	if info == nil {
		return 0
	}
	if info.IsExpired() {
		return b.safetyBuffer
	}
	return info.TimeUntilReset() + b.safetyBuffer
}
