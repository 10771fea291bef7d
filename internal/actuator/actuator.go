// Package actuator turns active events into PWM duty levels on the lighting
// channels, including frequency-modulated blinking.
package actuator

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sweeney/flybox/internal/logic"
)

// MaxDutyCycle is the largest duty value accepted by the output (8-bit PWM).
const MaxDutyCycle = 255

// Output drives the hardware PWM channels.
type Output interface {
	// SetDuty sets the duty level (0..MaxDutyCycle) of a channel.
	SetDuty(channel, duty int) error
}

// Channel is the runtime state of one lighting channel.
type Channel struct {
	Pin        int // hardware output identifier
	IsOn       bool
	Duty       int // last duty written
	LastToggle time.Time
}

// Actuator owns the channel state and writes to the Output.
// Not safe for concurrent use; it belongs to the control loop.
type Actuator struct {
	out      Output
	channels [logic.NumChannels]Channel
	log      zerolog.Logger
	errLimit *rate.Limiter
}

// New creates an Actuator for the given output pins, one per channel.
func New(out Output, pins [logic.NumChannels]int, log zerolog.Logger) *Actuator {
	a := &Actuator{
		out: out,
		log: log,
		// at most one output error logged per 30s
		errLimit: rate.NewLimiter(rate.Every(30*time.Second), 1),
	}
	for i := range a.channels {
		a.channels[i].Pin = pins[i]
	}
	return a
}

// Init drives every channel to zero.
func (a *Actuator) Init() {
	for i := range a.channels {
		a.Kill(i)
	}
}

// Duty maps an intensity onto the duty range with a cubic curve,
// intensity^3 / 1e6 * MaxDutyCycle, clamped to [0, MaxDutyCycle].
func Duty(intensity int) int {
	if intensity <= 0 {
		return 0
	}
	i := float64(intensity)
	d := i * i * i / 1e6 * MaxDutyCycle
	if d >= MaxDutyCycle {
		return MaxDutyCycle
	}
	return int(d)
}

// HalfPeriod returns how long a channel blinking at frequency Hz stays in
// each state. Zero or negative frequencies return 0.
func HalfPeriod(frequency int) time.Duration {
	if frequency <= 0 {
		return 0
	}
	return time.Duration(500/frequency) * time.Millisecond
}

// Drive updates a channel for an active event. With frequency 0 the channel
// is held at the duty level. Otherwise the channel toggles between the duty
// level and off whenever a half-period has elapsed since the last toggle.
func (a *Actuator) Drive(device, frequency, intensity int, now time.Time) {
	if device < 0 || device >= len(a.channels) {
		return
	}
	ch := &a.channels[device]
	duty := Duty(intensity)

	if frequency <= 0 {
		a.write(device, duty)
		ch.IsOn = true
		return
	}

	if now.Sub(ch.LastToggle) < HalfPeriod(frequency) {
		return
	}
	ch.LastToggle = now
	if ch.IsOn {
		a.write(device, 0)
		ch.IsOn = false
	} else {
		a.write(device, duty)
		ch.IsOn = true
	}
}

// Kill forces a channel off.
func (a *Actuator) Kill(device int) {
	if device < 0 || device >= len(a.channels) {
		return
	}
	a.write(device, 0)
	a.channels[device].IsOn = false
}

// Channels returns a copy of the channel state.
func (a *Actuator) Channels() [logic.NumChannels]Channel {
	return a.channels
}

func (a *Actuator) write(device, duty int) {
	a.channels[device].Duty = duty
	if err := a.out.SetDuty(device, duty); err != nil {
		if a.errLimit.Allow() {
			a.log.Error().Err(err).Int("device", device).Int("duty", duty).Msg("set duty failed")
		}
	}
}
