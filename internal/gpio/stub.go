//go:build !linux

package gpio

import "errors"

// RealPanel is not available on non-Linux platforms.
type RealPanel struct{}

// NewRealPanel returns an error on non-Linux platforms.
func NewRealPanel(chipName string, knobPin, irPin int) (*RealPanel, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// KnobPressed is not implemented on non-Linux platforms.
func (p *RealPanel) KnobPressed() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// SetIR is not implemented on non-Linux platforms.
func (p *RealPanel) SetIR(on bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (p *RealPanel) Close() error {
	return nil
}
