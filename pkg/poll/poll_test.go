package poll

import (
	"context"
	"errors"
	"testing"
	"time"
	"voicechanger/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() Options {
	return Options{
		Name:        "test",
		Interval:    time.Millisecond,
		MaxInterval: 2 * time.Millisecond,
		MaxWait:     time.Second,
	}
}

func TestUntilReturnsOnFirstReadyRead(t *testing.T) {
	values := []string{"none", "none", "block", "flex"}
	reads := 0

	got, err := Until(context.Background(), func(context.Context) (string, error) {
		v := values[reads]
		reads++
		return v, nil
	}, func(v string) bool { return v != "none" }, fastOptions())

	require.NoError(t, err)
	assert.Equal(t, "block", got)
	assert.Equal(t, 3, reads)
}

func TestUntilStopsOnReadError(t *testing.T) {
	boom := errors.New("driver gone")
	reads := 0

	_, err := Until(context.Background(), func(context.Context) (int, error) {
		reads++
		return 0, boom
	}, func(int) bool { return true }, fastOptions())

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, reads)
}

func TestUntilTimesOut(t *testing.T) {
	opts := fastOptions()
	opts.MaxWait = 20 * time.Millisecond

	_, err := Until(context.Background(), func(context.Context) (string, error) {
		return "", nil
	}, func(v string) bool { return v != "" }, opts)

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeTimeout))
	assert.Equal(t, "test", err.(*apperr.Error).Op)
}

func TestUntilHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reads := 0

	opts := fastOptions()
	opts.MaxWait = time.Minute

	_, err := Until(ctx, func(context.Context) (bool, error) {
		reads++
		if reads == 2 {
			cancel()
		}
		return false, nil
	}, func(v bool) bool { return v }, opts)

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeCancelled))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, reads)
}

func TestUntilNotifiesBetweenReads(t *testing.T) {
	var notified []int
	reads := 0

	opts := fastOptions()
	opts.Notify = func(n int, _ time.Duration) { notified = append(notified, n) }

	_, err := Until(context.Background(), func(context.Context) (int, error) {
		reads++
		return reads, nil
	}, func(v int) bool { return v == 3 }, opts)

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, notified)
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()

	assert.Equal(t, DefaultInterval, opts.Interval)
	assert.Equal(t, DefaultMaxInterval, opts.MaxInterval)
	assert.Equal(t, DefaultMultiplier, opts.Multiplier)
	assert.Equal(t, DefaultMaxWait, opts.MaxWait)
}
