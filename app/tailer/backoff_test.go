package tailer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCappedBackoff_delay(t *testing.T) {
	b := &cappedBackoff{base: 100 * time.Millisecond, maxDelay: time.Second, factor: 2}
	assert.Equal(t, 100*time.Millisecond, b.delay(0))
	assert.Equal(t, 200*time.Millisecond, b.delay(1))
	assert.Equal(t, 400*time.Millisecond, b.delay(2))
	assert.Equal(t, 800*time.Millisecond, b.delay(3))
	assert.Equal(t, time.Second, b.delay(4), "capped")
	assert.Equal(t, time.Second, b.delay(20), "capped")

	b.jitter = true
	for i := 0; i < 10; i++ {
		d := b.delay(1)
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.LessOrEqual(t, d, 220*time.Millisecond)
		assert.LessOrEqual(t, b.delay(10), time.Second)
	}
}

func TestCappedBackoff_Start(t *testing.T) {
	b := &cappedBackoff{retries: 3, base: time.Millisecond, maxDelay: 2 * time.Millisecond, factor: 2}
	ticks := 0
	for range b.Start(context.Background()) {
		ticks++
	}
	assert.Equal(t, 4, ticks, "first tick and 3 retries")
}

func TestCappedBackoff_StartCanceled(t *testing.T) {
	b := &cappedBackoff{retries: 3, base: time.Hour, maxDelay: time.Hour, factor: 2}
	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Start(ctx)
	<-ch
	cancel()
	_, ok := <-ch
	assert.False(t, ok, "channel closed on cancel")
}
