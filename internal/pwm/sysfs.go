// Package pwm drives the lighting channels through the Linux sysfs PWM
// interface (/sys/class/pwm). The filesystem is injected so tests can run
// against an in-memory tree.
package pwm

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/spf13/afero"

	"github.com/sweeney/flybox/internal/actuator"
)

// ErrUnknownChannel is returned for a channel index with no PWM mapping.
var ErrUnknownChannel = errors.New("pwm: unknown channel")

// SysfsOutput implements actuator.Output on top of sysfs PWM files.
type SysfsOutput struct {
	fs     afero.Fs
	chip   string
	pwm    []int
	period time.Duration
	last   []int // last duty written per channel; -1 = unknown
}

// NewSysfsOutput creates an output for the given chip directory, e.g.
// /sys/class/pwm/pwmchip0. pwm lists the PWM index for each lighting channel.
// Call Open before the first SetDuty.
func NewSysfsOutput(fs afero.Fs, chip string, pwm []int, period time.Duration) *SysfsOutput {
	last := make([]int, len(pwm))
	for i := range last {
		last[i] = -1
	}
	return &SysfsOutput{
		fs:     fs,
		chip:   chip,
		pwm:    pwm,
		period: period,
		last:   last,
	}
}

// Open exports every PWM line, sets its period, zeroes the duty cycle and
// enables it.
func (o *SysfsOutput) Open() error {
	for ch, n := range o.pwm {
		dir := o.dir(n)
		exists, err := afero.DirExists(o.fs, dir)
		if err != nil {
			return fmt.Errorf("stat %s: %w", dir, err)
		}
		if !exists {
			if err := o.write(path.Join(o.chip, "export"), strconv.Itoa(n)); err != nil {
				return fmt.Errorf("export pwm%d: %w", n, err)
			}
		}
		if err := o.write(path.Join(dir, "period"), strconv.FormatInt(o.period.Nanoseconds(), 10)); err != nil {
			return fmt.Errorf("set period pwm%d: %w", n, err)
		}
		if err := o.SetDuty(ch, 0); err != nil {
			return err
		}
		if err := o.write(path.Join(dir, "enable"), "1"); err != nil {
			return fmt.Errorf("enable pwm%d: %w", n, err)
		}
	}
	return nil
}

// SetDuty writes the duty cycle for a channel. Values are clamped to
// [0, actuator.MaxDutyCycle] and scaled onto the PWM period. Repeated writes
// of the same value are skipped.
func (o *SysfsOutput) SetDuty(channel, duty int) error {
	if channel < 0 || channel >= len(o.pwm) {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, channel)
	}
	if duty < 0 {
		duty = 0
	}
	if duty > actuator.MaxDutyCycle {
		duty = actuator.MaxDutyCycle
	}
	if o.last[channel] == duty {
		return nil
	}

	ns := o.period.Nanoseconds() * int64(duty) / actuator.MaxDutyCycle
	p := path.Join(o.dir(o.pwm[channel]), "duty_cycle")
	if err := o.write(p, strconv.FormatInt(ns, 10)); err != nil {
		o.last[channel] = -1
		return fmt.Errorf("set duty pwm%d: %w", o.pwm[channel], err)
	}
	o.last[channel] = duty
	return nil
}

// Close zeroes and disables every line, then unexports it.
func (o *SysfsOutput) Close() error {
	var errs []error
	for ch, n := range o.pwm {
		if err := o.SetDuty(ch, 0); err != nil {
			errs = append(errs, err)
		}
		if err := o.write(path.Join(o.dir(n), "enable"), "0"); err != nil {
			errs = append(errs, fmt.Errorf("disable pwm%d: %w", n, err))
		}
		if err := o.write(path.Join(o.chip, "unexport"), strconv.Itoa(n)); err != nil {
			errs = append(errs, fmt.Errorf("unexport pwm%d: %w", n, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func (o *SysfsOutput) dir(n int) string {
	return path.Join(o.chip, "pwm"+strconv.Itoa(n))
}

func (o *SysfsOutput) write(p, value string) error {
	return afero.WriteFile(o.fs, p, []byte(value), 0o644)
}
