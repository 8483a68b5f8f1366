package drip

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/drip/types"
)

func TestManualClock(t *testing.T) {
	ctx := context.Background()
	c := NewManualClock(10)

	assert.Equal(t, types.Height(15), c.Advance(5))
	require.NoError(t, c.Set(20))
	assert.ErrorIs(t, c.Set(19), ErrHeightBeforeCurrent)

	h, err := c.BlockHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Height(20), h)
}

func TestIntervalClock(t *testing.T) {
	genesis := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c, err := NewIntervalClock(genesis, 10*time.Minute)
	require.NoError(t, err)
	c.Base = 100

	tests := []struct {
		at   time.Time
		want types.Height
	}{
		{genesis.Add(-time.Hour), 100},
		{genesis, 100},
		{genesis.Add(9 * time.Minute), 100},
		{genesis.Add(10 * time.Minute), 101},
		{genesis.Add(24 * time.Hour), 244},
	}
	for _, tt := range tests {
		c.now = func() time.Time { return tt.at }
		h, err := c.BlockHeight(context.Background())
		require.NoError(t, err)
		assert.Equal(t, tt.want, h, tt.at)
	}

	_, err = NewIntervalClock(genesis, 0)
	assert.True(t, IsValidation(err))

	var zero IntervalClock
	_, err = zero.BlockHeight(context.Background())
	assert.ErrorIs(t, err, ErrClockUnavailable)
}
