package logic

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestTimeRoundTrip verifies NewTime keeps every valid field unchanged.
// Property: NewTime(d, h, m) == Time{d, h, m}
func TestTimeRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("time fields survive conversion", prop.ForAll(
		func(day, hour, min int) bool {
			tm, err := NewTime(day, hour, min)
			if err != nil {
				return false
			}
			return tm.Day == day && tm.Hour == hour && tm.Min == min
		},
		gen.IntRange(0, 3650),
		gen.IntRange(0, 23),
		gen.IntRange(0, 59),
	))

	properties.TestingRun(t)
}

// TestWindowMatchesGlobalMinute verifies window membership is exactly the
// half-open interval over global minutes.
func TestWindowMatchesGlobalMinute(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	toTime := func(g int) Time {
		return Time{Day: g / MinutesPerDay, Hour: (g % MinutesPerDay) / 60, Min: g % 60}
	}

	properties.Property("Evaluate agrees with start <= now < stop", prop.ForAll(
		func(start, stop, now int) bool {
			reg := NewRegistry()
			reg.Add(Event{Start: toTime(start), Stop: toTime(stop)})
			Evaluate(reg, toTime(now))
			return reg.At(0).Active == (start <= now && now < stop)
		},
		gen.IntRange(0, 5*MinutesPerDay),
		gen.IntRange(0, 5*MinutesPerDay),
		gen.IntRange(0, 5*MinutesPerDay),
	))

	properties.TestingRun(t)
}
