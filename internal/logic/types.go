// Package logic contains the pure scheduling logic for the lighting controller.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// The current time is always passed in as a Time value.
package logic

import (
	"errors"
	"fmt"
)

// MinutesPerDay is the single day length used for every global minute calculation.
const MinutesPerDay = 24 * 60

// NumChannels is the number of hardware lighting channels.
const NumChannels = 3

// ErrTimeRange is returned by NewTime when a field is out of range.
var ErrTimeRange = errors.New("logic: time field out of range")

// Time is a point in the schedule: days since the schedule started plus a
// wall-clock hour and minute.
type Time struct {
	Day  int
	Hour int
	Min  int
}

// NewTime converts raw (day, hour, minute) input into a Time.
// Returns ErrTimeRange if day is negative, hour is not 0-23 or minute is not 0-59.
func NewTime(day, hour, min int) (Time, error) {
	if day < 0 {
		return Time{}, fmt.Errorf("%w: day %d", ErrTimeRange, day)
	}
	if hour < 0 || hour > 23 {
		return Time{}, fmt.Errorf("%w: hour %d", ErrTimeRange, hour)
	}
	if min < 0 || min > 59 {
		return Time{}, fmt.Errorf("%w: minute %d", ErrTimeRange, min)
	}
	return Time{Day: day, Hour: hour, Min: min}, nil
}

// GlobalMinute returns the linear minute ordinal of t.
func (t Time) GlobalMinute() int {
	return t.Day*MinutesPerDay + t.Hour*60 + t.Min
}

// String formats t as "d<day> hh:mm".
func (t Time) String() string {
	return fmt.Sprintf("d%d %02d:%02d", t.Day, t.Hour, t.Min)
}

// Event is one scheduled lighting instruction.
type Event struct {
	Device    int  // channel index, 0..NumChannels-1
	Frequency int  // blink frequency in Hz; 0 = steady on
	Intensity int  // 0-255 input scale
	Sunset    bool // stored only; not consulted by the scheduler
	Start     Time
	Stop      Time
	Active    bool
}

// Registry is the ordered set of events loaded for a run.
// Records are only appended during load; afterwards only Active changes.
type Registry struct {
	events []Event
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends an event. The stored copy always starts inactive.
func (r *Registry) Add(e Event) {
	e.Active = false
	r.events = append(r.events, e)
}

// Len returns the number of events.
func (r *Registry) Len() int {
	return len(r.events)
}

// At returns a copy of the event at index i.
func (r *Registry) At(i int) Event {
	return r.events[i]
}

// Events returns a copy of all events in insertion order.
func (r *Registry) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ActiveFor returns the index of the first active event on the given device,
// or -1 if none is active.
func (r *Registry) ActiveFor(device int) int {
	for i := range r.events {
		if r.events[i].Active && r.events[i].Device == device {
			return i
		}
	}
	return -1
}

// ActiveCount returns how many events are currently active.
func (r *Registry) ActiveCount() int {
	n := 0
	for i := range r.events {
		if r.events[i].Active {
			n++
		}
	}
	return n
}

// Transition reports an event whose Active flag changed during evaluation.
type Transition struct {
	Index  int
	Event  Event // state after the change
	Active bool
}
