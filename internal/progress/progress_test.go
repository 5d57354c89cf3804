package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/gtc/internal/progress"
	"github.com/standardbeagle/gtc/testhelpers"
)

func TestReporter_StartAndFinishAlwaysFire(t *testing.T) {
	script := testhelpers.NewProgressScript()
	clock := testhelpers.NewFakeClock()
	r := progress.New(script.Func, progress.WithClock(clock.Now))

	require.True(t, r.Start(3))
	// all inside the throttle window
	assert.True(t, r.Advance())
	assert.True(t, r.Advance())
	assert.True(t, r.Advance())
	r.Finish()

	assert.Equal(t, []testhelpers.ProgressCall{
		{Current: 0, Total: 3},
		{Current: 3, Total: 3},
	}, script.Calls())
}

func TestReporter_Throttle(t *testing.T) {
	script := testhelpers.NewProgressScript()
	clock := testhelpers.NewFakeClock()
	r := progress.New(script.Func, progress.WithClock(clock.Now))

	r.Start(10)
	clock.Add(50 * time.Millisecond)
	r.Advance() // 1, throttled
	clock.Add(50 * time.Millisecond)
	r.Advance() // 2, window elapsed
	clock.Add(10 * time.Millisecond)
	r.Advance() // 3, throttled
	clock.Add(200 * time.Millisecond)
	r.AdvanceTo(7)
	r.Finish()

	assert.Equal(t, []testhelpers.ProgressCall{
		{Current: 0, Total: 10},
		{Current: 2, Total: 10},
		{Current: 7, Total: 10},
		{Current: 10, Total: 10},
	}, script.Calls())
}

func TestReporter_NonDecreasing(t *testing.T) {
	script := testhelpers.NewProgressScript()
	r := progress.New(script.Func, progress.WithClock(testhelpers.TickingClock(time.Second)))

	r.Start(5)
	r.AdvanceTo(3)
	r.AdvanceTo(1) // never moves backwards
	r.AdvanceTo(99)
	r.Advance()
	r.Finish()

	calls := script.Calls()
	require.NotEmpty(t, calls)
	for i := 1; i < len(calls); i++ {
		assert.GreaterOrEqual(t, calls[i].Current, calls[i-1].Current)
		assert.LessOrEqual(t, calls[i].Current, calls[i].Total)
	}
	assert.Equal(t, testhelpers.ProgressCall{Current: 0, Total: 5}, calls[0])
	assert.Equal(t, testhelpers.ProgressCall{Current: 5, Total: 5}, calls[len(calls)-1])
}

func TestReporter_CancellationIsSticky(t *testing.T) {
	script := testhelpers.NewProgressScript(true, true, false, true)
	r := progress.New(script.Func, progress.WithClock(testhelpers.TickingClock(time.Second)))

	assert.True(t, r.Start(10))
	assert.True(t, r.Advance())
	assert.False(t, r.Advance())
	assert.True(t, r.Cancelled())

	// later calls never consult the callback again
	assert.False(t, r.Advance())
	assert.False(t, r.AdvanceTo(8))
	assert.Len(t, script.Calls(), 3)
}

func TestReporter_CancelAtStart(t *testing.T) {
	script := testhelpers.NewProgressScript(false)
	r := progress.New(script.Func)

	assert.False(t, r.Start(4))
	assert.True(t, r.Cancelled())
}

func TestReporter_NilFunc(t *testing.T) {
	r := progress.New(nil, progress.WithClock(testhelpers.TickingClock(time.Second)))

	assert.True(t, r.Start(2))
	assert.True(t, r.Advance())
	assert.True(t, r.Advance())
	assert.NotPanics(t, r.Finish)
	assert.False(t, r.Cancelled())
	assert.Equal(t, 2, r.Current())
	assert.Equal(t, 2, r.Total())
}

func TestReporter_ContextCancelsInsideThrottleWindow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	script := testhelpers.NewProgressScript()
	clock := testhelpers.NewFakeClock()
	r := progress.New(script.Func, progress.WithClock(clock.Now), progress.WithContext(ctx))

	require.True(t, r.Start(3))
	assert.True(t, r.Advance())
	cancel()
	assert.False(t, r.Advance())
	assert.True(t, r.Cancelled())
	// only the start notification reached the callback
	assert.Len(t, script.Calls(), 1)
}

func TestReporter_CustomInterval(t *testing.T) {
	script := testhelpers.NewProgressScript()
	clock := testhelpers.NewFakeClock()
	r := progress.New(script.Func, progress.WithClock(clock.Now), progress.WithInterval(0))

	r.Start(3)
	r.Advance()
	r.Advance()
	assert.Len(t, script.Calls(), 3)
}

func TestFromContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fn := progress.FromContext(ctx, nil)
	assert.True(t, fn(0, 1))
	cancel()
	assert.False(t, fn(1, 1))

	script := testhelpers.NewProgressScript(false)
	fn = progress.FromContext(context.Background(), script.Func)
	assert.False(t, fn(0, 1))
	assert.Len(t, script.Calls(), 1)
}
