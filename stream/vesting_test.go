package stream_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/drip/stream"
	"github.com/xraph/drip/types"
)

func newStream(start types.Height, duration uint64) *stream.Stream {
	terms := stream.ComputeTerms(1000, 100, duration)
	return &stream.Stream{
		ID:             1,
		Sender:         "alice",
		Recipient:      "bob",
		TotalAmount:    terms.Net,
		AmountPerBlock: terms.AmountPerBlock,
		StartBlock:     start,
		EndBlock:       start.Add(duration),
		LastClaimBlock: start,
		Status:         stream.StatusActive,
		FeeRate:        100,
		Fee:            terms.Fee,
	}
}

func TestComputeTerms(t *testing.T) {
	tests := []struct {
		name     string
		gross    types.Amount
		feeRate  uint64
		duration uint64
		want     stream.Terms
	}{
		{"100bps", 1000, 100, 10, stream.Terms{Gross: 1000, Fee: 10, Net: 990, AmountPerBlock: 99}},
		{"25bps floors fee", 1000, 25, 10, stream.Terms{Gross: 1000, Fee: 2, Net: 998, AmountPerBlock: 99}},
		{"zero fee", 5000, 0, 7, stream.Terms{Gross: 5000, Fee: 0, Net: 5000, AmountPerBlock: 714}},
		{"rate rounds to zero", 1000, 0, 2000, stream.Terms{Gross: 1000, Fee: 0, Net: 1000, AmountPerBlock: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stream.ComputeTerms(tt.gross, tt.feeRate, tt.duration))
		})
	}
}

func TestComputeClaimable(t *testing.T) {
	s := newStream(100, 10)

	tests := []struct {
		name   string
		at     types.Height
		amount types.Amount
		ended  bool
	}{
		{"before start", 50, 0, false},
		{"at start", 100, 0, false},
		{"midway", 105, 495, false},
		{"at end", 110, 990, true},
		{"after end", 500, 990, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := stream.ComputeClaimable(s, tt.at)
			assert.Equal(t, tt.amount, c.Amount)
			assert.Equal(t, tt.ended, c.Ended)
		})
	}
}

func TestComputeClaimableTerminal(t *testing.T) {
	for _, status := range []stream.Status{stream.StatusCancelled, stream.StatusCompleted} {
		s := newStream(100, 10)
		s.Status = status

		c := stream.ComputeClaimable(s, 105)
		assert.Zero(t, c.Amount)
		assert.True(t, c.Ended)
	}
}

func TestClaimCappedToRemaining(t *testing.T) {
	s := newStream(100, 10)
	s.ClaimedAmount = 980
	s.LastClaimBlock = 100

	c := stream.ComputeClaimable(s, 110)
	assert.Equal(t, types.Amount(10), c.Amount)
}

func TestEndedClaimIncludesRoundingRemainder(t *testing.T) {
	terms := stream.ComputeTerms(7_777, 100, 13)
	require.Equal(t, types.Amount(7_700), terms.Net)
	require.Equal(t, types.Amount(592), terms.AmountPerBlock)

	s := &stream.Stream{
		TotalAmount:    terms.Net,
		AmountPerBlock: terms.AmountPerBlock,
		StartBlock:     100,
		EndBlock:       113,
		LastClaimBlock: 100,
		Status:         stream.StatusActive,
	}

	before := stream.ComputeClaimable(s, 112)
	assert.Equal(t, types.Amount(592*12), before.Amount)
	assert.False(t, before.Ended)

	s.ApplyClaim(before, 112)
	last := stream.ComputeClaimable(s, 200)
	assert.True(t, last.Ended)
	assert.Equal(t, types.Amount(592+4), last.Amount)

	assert.True(t, s.ApplyClaim(last, 200))
	assert.Equal(t, s.TotalAmount, s.ClaimedAmount)
	assert.Zero(t, s.Remaining())
}

func TestApplyClaim(t *testing.T) {
	s := newStream(100, 10)

	c := stream.ComputeClaimable(s, 105)
	completed := s.ApplyClaim(c, 105)
	assert.False(t, completed)
	assert.Equal(t, types.Amount(495), s.ClaimedAmount)
	assert.Equal(t, types.Height(105), s.LastClaimBlock)

	c = stream.ComputeClaimable(s, 120)
	assert.Equal(t, types.Amount(495), c.Amount)
	completed = s.ApplyClaim(c, 120)
	assert.True(t, completed)
	assert.Equal(t, stream.StatusCompleted, s.Status)
	assert.Equal(t, s.TotalAmount, s.ClaimedAmount)
}

func TestCancel(t *testing.T) {
	s := newStream(100, 10)
	s.ApplyClaim(stream.ComputeClaimable(s, 102), 102)

	settlement := s.Cancel(105)
	assert.Equal(t, types.Amount(297), settlement.Claimed)
	assert.Equal(t, types.Amount(990-198-297), settlement.Refunded)
	assert.Equal(t, stream.StatusCancelled, s.Status)
	assert.LessOrEqual(t, s.ClaimedAmount, s.TotalAmount)

	assert.Zero(t, stream.ComputeClaimable(s, 1000).Amount)
}

func TestCancelBeforeStart(t *testing.T) {
	s := newStream(100, 10)

	settlement := s.Cancel(50)
	assert.Zero(t, settlement.Claimed)
	assert.Equal(t, s.TotalAmount, settlement.Refunded)
}

func TestPauseResumeShiftsSchedule(t *testing.T) {
	s := newStream(100, 10)
	before := totalPayable(s.Clone())

	s.Pause(104)
	require.NotNil(t, s.PauseStartBlock)

	// Preview while paused stops at the pause start.
	c := stream.ComputeClaimable(s, 108)
	assert.Equal(t, types.Amount(4*99), c.Amount)
	assert.False(t, c.Ended)

	span := s.Resume(110)
	assert.Equal(t, uint64(6), span)
	assert.Equal(t, types.Height(116), s.EndBlock)
	assert.Equal(t, uint64(6), s.PausedDuration)
	assert.Nil(t, s.PauseStartBlock)
	assert.Equal(t, types.Amount(990), s.TotalAmount)

	// Paused blocks never vest.
	assert.Equal(t, types.Amount(4*99), stream.ComputeClaimable(s, 110).Amount)
	assert.Equal(t, types.Amount(5*99), stream.ComputeClaimable(s, 111).Amount)

	assert.Equal(t, before, totalPayable(s))
}

func TestPauseBeforeStart(t *testing.T) {
	s := newStream(100, 10)
	before := totalPayable(s.Clone())

	s.Pause(90)
	s.Resume(95)

	assert.Equal(t, types.Height(115), s.EndBlock)
	assert.Equal(t, before, totalPayable(s))
}

// totalPayable claims at every block until the stream completes.
func totalPayable(s *stream.Stream) types.Amount {
	for h := s.StartBlock; s.Status == stream.StatusActive; h++ {
		c := stream.ComputeClaimable(s, h)
		if c.Amount > 0 || c.Ended {
			s.ApplyClaim(c, h)
		}
	}
	return s.ClaimedAmount
}

func TestListOptsMatches(t *testing.T) {
	s := newStream(100, 10)

	assert.True(t, stream.ListOpts{}.Matches(s))
	assert.True(t, stream.ListOpts{Sender: "alice", Status: stream.StatusActive}.Matches(s))
	assert.False(t, stream.ListOpts{Recipient: "alice"}.Matches(s))
	assert.False(t, stream.ListOpts{Status: stream.StatusPaused}.Matches(s))
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, items, stream.Page(items, 0, 0))
	assert.Equal(t, []int{2, 3}, stream.Page(items, 1, 2))
	assert.Equal(t, []int{5}, stream.Page(items, 4, 10))
	assert.Nil(t, stream.Page(items, 5, 1))
}

func TestCloneIsDeep(t *testing.T) {
	s := newStream(100, 10)
	s.Pause(103)

	c := s.Clone()
	*c.PauseStartBlock = 999
	assert.Equal(t, types.Height(103), *s.PauseStartBlock)

	a := &stream.Aggregate{Identity: "alice", Created: []uint64{1}}
	ac := a.Clone()
	ac.Created[0] = 7
	assert.Equal(t, uint64(1), a.Created[0])
}
