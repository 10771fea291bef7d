package clock

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/flybox/internal/logic"
)

func TestObserveSameDay(t *testing.T) {
	c := NewDayCounter(time.UTC, 0)

	got := c.Observe(time.Date(2026, 3, 1, 8, 15, 30, 0, time.UTC))
	assert.Equal(t, logic.Time{Day: 0, Hour: 8, Min: 15}, got)

	got = c.Observe(time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, logic.Time{Day: 0, Hour: 23, Min: 59}, got)
}

func TestObserveMidnightRollover(t *testing.T) {
	c := NewDayCounter(time.UTC, 0)
	c.Observe(time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC))

	got := c.Observe(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, logic.Time{Day: 1, Hour: 0, Min: 0}, got)
	assert.Equal(t, 1, c.Days())
}

func TestObserveSkippedDays(t *testing.T) {
	c := NewDayCounter(time.UTC, 0)
	c.Observe(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	got := c.Observe(time.Date(2026, 3, 4, 6, 0, 0, 0, time.UTC))
	assert.Equal(t, 3, got.Day)
}

func TestObserveStartDay(t *testing.T) {
	c := NewDayCounter(time.UTC, 5)
	got := c.Observe(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, 5, got.Day)
}

func TestObserveBackwardsKeepsDay(t *testing.T) {
	c := NewDayCounter(time.UTC, 0)
	c.Observe(time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC))
	c.Observe(time.Date(2026, 3, 3, 0, 5, 0, 0, time.UTC))

	got := c.Observe(time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, got.Day)
}

func TestObserveUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	c := NewDayCounter(loc, 0)

	// 22:30 UTC is 00:30 the next day in UTC+2.
	c.Observe(time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC))
	got := c.Observe(time.Date(2026, 3, 1, 22, 30, 0, 0, time.UTC))
	assert.Equal(t, logic.Time{Day: 1, Hour: 0, Min: 30}, got)
}

func TestObserveAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	c := NewDayCounter(loc, 0)

	// Clocks go forward on 2026-03-29; that day is 23 hours long.
	c.Observe(time.Date(2026, 3, 28, 12, 0, 0, 0, loc))
	c.Observe(time.Date(2026, 3, 29, 12, 0, 0, 0, loc))
	got := c.Observe(time.Date(2026, 3, 30, 0, 10, 0, 0, loc))
	assert.Equal(t, 2, got.Day)
}

func TestRewind(t *testing.T) {
	c := NewDayCounter(time.UTC, 4)
	c.Rewind(3)
	assert.Equal(t, 1, c.Days())
	c.Rewind(5)
	assert.Equal(t, 0, c.Days())
}
