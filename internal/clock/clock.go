// Package clock converts wall-clock time into schedule time by tracking how
// many calendar days have elapsed since the schedule started.
package clock

import (
	"time"

	"github.com/sweeney/flybox/internal/logic"
)

// DayCounter counts calendar date changes between observations.
// Not safe for concurrent use.
type DayCounter struct {
	loc     *time.Location
	days    int
	prev    time.Time // date of the previous observation (midnight)
	started bool
}

// NewDayCounter creates a counter starting at startDay in loc.
// A nil loc means time.Local.
func NewDayCounter(loc *time.Location, startDay int) *DayCounter {
	if loc == nil {
		loc = time.Local
	}
	if startDay < 0 {
		startDay = 0
	}
	return &DayCounter{loc: loc, days: startDay}
}

// Observe converts t into schedule time, advancing the day count by the
// number of calendar days since the previous observation. Time moving
// backwards (e.g. an RTC correction) never decreases the count.
func (c *DayCounter) Observe(t time.Time) logic.Time {
	t = t.In(c.loc)
	date := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
	if !c.started {
		c.prev = date
		c.started = true
	} else if date.After(c.prev) {
		c.days += daysBetween(c.prev, date)
		c.prev = date
	}
	return logic.Time{Day: c.days, Hour: t.Hour(), Min: t.Minute()}
}

// Days returns the current day count.
func (c *DayCounter) Days() int {
	return c.days
}

// Rewind subtracts n days, never going below zero. Used to loop a schedule.
func (c *DayCounter) Rewind(n int) {
	c.days -= n
	if c.days < 0 {
		c.days = 0
	}
}

// daysBetween counts calendar days from a to b, both at local midnight.
// Rounding absorbs DST days that are 23 or 25 hours long.
func daysBetween(a, b time.Time) int {
	return int((b.Sub(a) + 12*time.Hour) / (24 * time.Hour))
}
