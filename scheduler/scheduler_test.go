package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingChecker struct {
	runs  atomic.Int32
	block chan struct{}
}

func (c *countingChecker) CheckAll(ctx context.Context) (int, int, error) {
	c.runs.Add(1)
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		}
	}
	return 1, 0, nil
}

func TestStart_InvalidSpec(t *testing.T) {
	pc := New(&countingChecker{}, "every tuesday")
	assert.Error(t, pc.Start(false))
}

func TestStart_RunNowAndSchedule(t *testing.T) {
	c := &countingChecker{}
	pc := New(c, "* * * * * *")
	require.NoError(t, pc.Start(true))
	defer pc.Stop()

	assert.Eventually(t, func() bool { return c.runs.Load() >= 2 }, 3*time.Second, 20*time.Millisecond)
}

func TestRun_SkipsOverlap(t *testing.T) {
	c := &countingChecker{block: make(chan struct{})}
	pc := New(c, "0 0 */12 * * *")

	go pc.Run()
	assert.Eventually(t, func() bool { return c.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	pc.Run() // returns immediately
	assert.Equal(t, int32(1), c.runs.Load())

	close(c.block)
	pc.Stop()
}

func TestStop_CancelsRunningCheck(t *testing.T) {
	c := &countingChecker{block: make(chan struct{})}
	pc := New(c, "0 0 */12 * * *")
	require.NoError(t, pc.Start(true))
	assert.Eventually(t, func() bool { return c.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		pc.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	pc.Stop()
}
