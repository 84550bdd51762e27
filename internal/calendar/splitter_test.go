package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitQuarterSlots_Hour(t *testing.T) {
	start := mustTime(t, 2024, 1, 1, 9, 0)
	end := mustTime(t, 2024, 1, 1, 10, 0)

	slots, err := SplitQuarterSlots(start, end, time.UTC)
	require.NoError(t, err)
	require.Len(t, slots, 4)

	for i, s := range slots {
		assert.Equal(t, SlotDuration, s.Duration(), "slot %d", i)
		assert.Zero(t, s.Start.Minute()%15, "slot %d", i)
		assert.True(t, s.Start.Equal(start.Add(time.Duration(i)*SlotDuration)), "slot %d", i)
	}
	assert.True(t, slots[3].End.Equal(end))
}

func TestSplitQuarterSlots_Misaligned(t *testing.T) {
	start := mustTime(t, 2024, 1, 1, 9, 10)
	end := mustTime(t, 2024, 1, 1, 10, 0)

	_, err := SplitQuarterSlots(start, end, time.UTC)
	require.ErrorIs(t, err, ErrMisalignedRange)

	var mis *MisalignedRangeError
	require.True(t, errors.As(err, &mis))
	assert.True(t, mis.Start.Equal(start))
	assert.True(t, mis.End.Equal(end))
	assert.Contains(t, err.Error(), "09:10:00")
}

func TestSplitQuarterSlots_SecondsAreMisaligned(t *testing.T) {
	start := mustTime(t, 2024, 1, 1, 9, 0).Add(30 * time.Second)
	end := mustTime(t, 2024, 1, 1, 10, 0)

	_, err := SplitQuarterSlots(start, end, time.UTC)
	require.ErrorIs(t, err, ErrMisalignedRange)
}

func TestSplitQuarterSlots_Empty(t *testing.T) {
	at := mustTime(t, 2024, 1, 1, 9, 0)

	_, err := SplitQuarterSlots(at, at, time.UTC)
	require.ErrorIs(t, err, ErrRangeTooSmall)
}

func TestSplitQuarterSlots_Reversed(t *testing.T) {
	_, err := SplitQuarterSlots(mustTime(t, 2024, 1, 1, 10, 0), mustTime(t, 2024, 1, 1, 9, 0), time.UTC)
	require.ErrorIs(t, err, ErrInvalidTimeRange)
}

func TestSplitQuarterSlots_HalfHourZone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, loc)
	slots, err := SplitQuarterSlots(start, start.Add(30*time.Minute), loc)
	require.NoError(t, err)
	require.Len(t, slots, 2)
}

func TestSlotsNeeded(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 15: 1, 16: 2, 30: 2, 45: 3, 60: 4}
	for minutes, want := range cases {
		assert.Equal(t, want, SlotsNeeded(minutes), "minutes=%d", minutes)
	}
}
