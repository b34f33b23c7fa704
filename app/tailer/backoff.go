package tailer

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// cappedBackoff is repeater strategy with exponential delays limited by maxDelay.
// First tick is immediate, then up to retries ticks after growing delays.
type cappedBackoff struct {
	retries  int
	base     time.Duration
	maxDelay time.Duration
	factor   float64
	jitter   bool
}

// Start implements strategy.Interface. The channel is closed when retries exhausted or ctx canceled.
func (b *cappedBackoff) Start(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		if !b.tick(ctx, ch) {
			return
		}
		for i := 0; i < b.retries; i++ {
			timer := time.NewTimer(b.delay(i))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			if !b.tick(ctx, ch) {
				return
			}
		}
	}()
	return ch
}

func (b *cappedBackoff) tick(ctx context.Context, ch chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- struct{}{}:
		return true
	}
}

// delay for retry number n (0-based)
func (b *cappedBackoff) delay(n int) time.Duration {
	d := float64(b.base) * math.Pow(b.factor, float64(n))
	if b.jitter && d > 0 {
		d += rand.Float64() * d / 10 // up to 10%
	}
	if b.maxDelay > 0 && d > float64(b.maxDelay) {
		d = float64(b.maxDelay)
	}
	return time.Duration(d)
}
