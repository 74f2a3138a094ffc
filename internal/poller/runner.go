// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Run drives t from one base ticker: Tick1ms every period, Tick10ms every
// tenth and Tick100ms every hundredth. No overlap; a slow tick delays the
// next one.
func Run(ctx context.Context, period time.Duration, t Ticker) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var n uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n++
			t.Tick1ms()
			if n%10 == 0 {
				t.Tick10ms()
			}
			if n%100 == 0 {
				t.Tick100ms()
			}
		}
	}
}
