package exchange

import (
	"context"
	"time"
)

// Schedule returns the tick the exchange is at and how long until its next
// replenishment. Late joiners catch up: 5s after a start with 1s ticks the
// exchange is at tick 6 and replenishes immediately.
func Schedule(start, now time.Time, tickLength time.Duration) (tick int, delay time.Duration) {
	if tickLength <= 0 {
		tickLength = time.Second
	}
	if start.After(now) {
		return 1, start.Sub(now)
	}
	elapsed := now.Sub(start)
	passed := (elapsed + tickLength - 1) / tickLength
	return int(passed) + 1, (tickLength - elapsed%tickLength) % tickLength
}

// runClock fires advance once after delay and then every tickLength until
// ctx is done.
func runClock(ctx context.Context, delay, tickLength time.Duration, advance func()) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil
	case <-timer.C:
	}
	advance()

	ticker := time.NewTicker(tickLength)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			advance()
		}
	}
}
