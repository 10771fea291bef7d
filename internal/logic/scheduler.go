package logic

import "fmt"

// Policy selects how the scheduler decides whether an event is active.
type Policy string

const (
	// PolicyWindow recomputes every event as start <= now < stop on each tick.
	// Missed ticks are harmless.
	PolicyWindow Policy = "window"

	// PolicyEdge only switches an event on when now equals its start minute
	// and off when now equals its stop minute. A tick that skips the exact
	// minute misses the transition.
	PolicyEdge Policy = "edge"
)

// ParsePolicy converts a configuration string into a Policy.
// An empty string selects PolicyWindow.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyWindow:
		return PolicyWindow, nil
	case PolicyEdge:
		return PolicyEdge, nil
	}
	return "", fmt.Errorf("logic: unknown scheduling policy %q", s)
}

// EvaluateFunc updates the Active flags of every event for the given time.
type EvaluateFunc func(reg *Registry, now Time) []Transition

// Func returns the evaluation function for p.
func (p Policy) Func() EvaluateFunc {
	if p == PolicyEdge {
		return EvaluateEdge
	}
	return Evaluate
}

// InWindow reports whether now falls inside [start, stop).
func InWindow(start, stop, now Time) bool {
	n := now.GlobalMinute()
	return start.GlobalMinute() <= n && n < stop.GlobalMinute()
}

// Evaluate recomputes Active for every event from its window and returns the
// events whose flag changed, in registry order.
func Evaluate(reg *Registry, now Time) []Transition {
	var out []Transition
	for i := range reg.events {
		e := &reg.events[i]
		active := InWindow(e.Start, e.Stop, now)
		if active != e.Active {
			e.Active = active
			out = append(out, Transition{Index: i, Event: *e, Active: active})
		}
	}
	return out
}

// EvaluateEdge switches events on at their exact start minute and off at their
// exact stop minute. Other ticks leave the flag unchanged.
func EvaluateEdge(reg *Registry, now Time) []Transition {
	var out []Transition
	n := now.GlobalMinute()
	for i := range reg.events {
		e := &reg.events[i]
		active := e.Active
		if n == e.Start.GlobalMinute() {
			active = true
		}
		// Stop wins when start == stop.
		if n == e.Stop.GlobalMinute() {
			active = false
		}
		if active != e.Active {
			e.Active = active
			out = append(out, Transition{Index: i, Event: *e, Active: active})
		}
	}
	return out
}
