// Package gpio provides the front panel lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Panel is the controller's front panel: a reset knob push button and the
// IR illumination enable line.
type Panel interface {
	// KnobPressed reports whether the knob button is currently held down.
	KnobPressed() (bool, error)

	// SetIR switches the IR illumination line.
	SetIR(on bool) error

	// Close releases GPIO resources.
	Close() error
}

// Pin defaults (BCM numbering)
const (
	DefaultKnobPin = 17
	DefaultIRPin   = 27
)
