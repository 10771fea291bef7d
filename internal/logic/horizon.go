package logic

// LongestStop returns the latest stop time across all events as a global
// minute. An empty registry returns 0.
func LongestStop(reg *Registry) int {
	longest := 0
	for i := range reg.events {
		if m := reg.events[i].Stop.GlobalMinute(); m > longest {
			longest = m
		}
	}
	return longest
}

// ScheduleDays returns the number of whole days needed to cover horizon
// minutes.
func ScheduleDays(horizon int) int {
	if horizon <= 0 {
		return 0
	}
	return (horizon + MinutesPerDay - 1) / MinutesPerDay
}
