//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealPanel drives the panel lines through the Linux GPIO character device.
type RealPanel struct {
	chip *gpiocdev.Chip
	knob *gpiocdev.Line
	ir   *gpiocdev.Line
}

// NewRealPanel requests the knob and IR lines on the named chip.
func NewRealPanel(chipName string, knobPin, irPin int) (*RealPanel, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// The knob switches to ground, so it reads active low with a pull-up.
	knob, err := chip.RequestLine(knobPin, gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.AsActiveLow)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request knob pin %d: %w", knobPin, err)
	}

	// IR starts on; it is only switched off when the controller halts.
	ir, err := chip.RequestLine(irPin, gpiocdev.AsOutput(1))
	if err != nil {
		knob.Close()
		chip.Close()
		return nil, fmt.Errorf("request IR pin %d: %w", irPin, err)
	}

	return &RealPanel{
		chip: chip,
		knob: knob,
		ir:   ir,
	}, nil
}

// KnobPressed returns true while the knob button is held.
func (p *RealPanel) KnobPressed() (bool, error) {
	v, err := p.knob.Value()
	if err != nil {
		return false, fmt.Errorf("read knob pin: %w", err)
	}
	return v == 1, nil
}

// SetIR drives the IR enable line.
func (p *RealPanel) SetIR(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := p.ir.SetValue(v); err != nil {
		return fmt.Errorf("set IR pin: %w", err)
	}
	return nil
}

// Close releases GPIO resources.
// The IR line is returned to an input with pull-down (Pi boot default) so
// the illuminator is not left driven after shutdown.
func (p *RealPanel) Close() error {
	var errs []error

	if p.ir != nil {
		if err := p.ir.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure IR pin: %w", err))
		}
		if err := p.ir.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close IR pin: %w", err))
		}
	}
	if p.knob != nil {
		if err := p.knob.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close knob pin: %w", err))
		}
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
