// Package engine runs one control tick: it converts wall time to schedule
// time, evaluates the registry and drives each channel from its active event.
package engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/flybox/internal/actuator"
	"github.com/sweeney/flybox/internal/clock"
	"github.com/sweeney/flybox/internal/logic"
)

// Options configures an Engine.
type Options struct {
	Policy logic.Policy
	// Tick is the expected control loop interval, used only to warn about
	// blink frequencies the loop cannot honour.
	Tick time.Duration
	// Repeat loops the schedule once every event has ended.
	Repeat bool
}

// Counts tracks event transitions since startup.
type Counts struct {
	Starts   int
	Stops    int
	Restarts int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}

// Result describes what one tick did.
type Result struct {
	Now         logic.Time
	Transitions []logic.Transition
	Restarted   bool
}

// Engine owns the registry, the day counter and the actuator for a run.
// Not safe for concurrent use; Tick is called from the control loop only.
type Engine struct {
	reg           *logic.Registry
	act           *actuator.Actuator
	days          *clock.DayCounter
	eval          logic.EvaluateFunc
	horizon       int
	repeatDays    int
	log           zerolog.Logger
	counts        Counts
	startTime     time.Time
	lastHeartbeat time.Time
	now           logic.Time
}

// New creates an Engine whose schedule day 0 is the date of startTime. The
// actuator is initialised (all channels off).
func New(reg *logic.Registry, act *actuator.Actuator, days *clock.DayCounter, opts Options, startTime time.Time, log zerolog.Logger) *Engine {
	e := &Engine{
		reg:           reg,
		act:           act,
		days:          days,
		eval:          opts.Policy.Func(),
		horizon:       logic.LongestStop(reg),
		log:           log,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
	if opts.Repeat {
		e.repeatDays = logic.ScheduleDays(e.horizon)
	}

	for i, ev := range reg.Events() {
		if hp := actuator.HalfPeriod(ev.Frequency); ev.Frequency > 0 && opts.Tick > hp {
			log.Warn().Int("index", i).Int("frequency", ev.Frequency).Dur("half_period", hp).Dur("tick", opts.Tick).
				Msg("tick is slower than blink half-period; blink will be irregular")
		}
	}

	// Day 0 is the start date, not the date of the first tick.
	e.now = days.Observe(startTime)
	act.Init()
	return e
}

// Tick runs one scheduling and actuation pass for wall time t.
func (e *Engine) Tick(t time.Time) Result {
	var res Result
	now := e.days.Observe(t)

	if e.repeatDays > 0 && now.Day >= e.repeatDays {
		e.days.Rewind(now.Day / e.repeatDays * e.repeatDays)
		now.Day = e.days.Days()
		e.counts.Restarts++
		res.Restarted = true
		e.log.Info().Int("days", e.repeatDays).Msg("schedule complete, restarting at day 0")
	}
	e.now = now
	res.Now = now

	res.Transitions = e.eval(e.reg, now)
	for _, tr := range res.Transitions {
		if tr.Active {
			e.counts.Starts++
			continue
		}
		e.counts.Stops++
		if e.reg.ActiveFor(tr.Event.Device) < 0 {
			e.act.Kill(tr.Event.Device)
		}
	}

	for ch := 0; ch < logic.NumChannels; ch++ {
		idx := e.reg.ActiveFor(ch)
		if idx < 0 {
			continue
		}
		ev := e.reg.At(idx)
		e.act.Drive(ch, ev.Frequency, ev.Intensity, t)
	}
	return res
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// if interval is <= 0 (disabled).
func (e *Engine) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(e.lastHeartbeat) < interval {
		return nil
	}

	e.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(e.startTime),
		Counts:    e.counts,
	}
}

// Registry returns the engine's registry.
func (e *Engine) Registry() *logic.Registry {
	return e.reg
}

// Horizon returns the latest stop time in global minutes.
func (e *Engine) Horizon() int {
	return e.horizon
}

// Now returns the schedule time of the last tick.
func (e *Engine) Now() logic.Time {
	return e.now
}

// Counts returns the transition counts since startup.
func (e *Engine) Counts() Counts {
	return e.counts
}

// Channels returns a copy of the channel state.
func (e *Engine) Channels() [logic.NumChannels]actuator.Channel {
	return e.act.Channels()
}
