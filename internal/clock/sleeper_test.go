package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextSleeper(t *testing.T) {
	t.Parallel()

	require.NoError(t, Context.Sleep(context.Background(), time.Millisecond))
	require.NoError(t, Context.Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, Context.Sleep(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder
	require.NoError(t, r.Sleep(context.Background(), time.Minute))
	require.NoError(t, r.Sleep(context.Background(), 2*time.Minute))
	assert.Equal(t, []time.Duration{time.Minute, 2 * time.Minute}, r.Calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Sleep(ctx, time.Second), context.Canceled)
	assert.Len(t, r.Calls, 3)
}
