package actuator

import "time"

// FakeOutput records duty writes for test assertions.
type FakeOutput struct {
	// Writes contains every SetDuty call in order.
	Writes []Write

	// Duty holds the last duty written per channel.
	Duty map[int]int

	// Err, if set, is returned by SetDuty. The write is still recorded.
	Err error

	// Now, if set, stamps each write.
	Now func() time.Time
}

// Write is a single recorded SetDuty call.
type Write struct {
	Channel int
	Duty    int
	At      time.Time
}

// NewFakeOutput creates an empty FakeOutput.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{Duty: make(map[int]int)}
}

// SetDuty records the write.
func (f *FakeOutput) SetDuty(channel, duty int) error {
	w := Write{Channel: channel, Duty: duty}
	if f.Now != nil {
		w.At = f.Now()
	}
	f.Writes = append(f.Writes, w)
	f.Duty[channel] = duty
	return f.Err
}

// WritesFor returns the writes made to one channel.
func (f *FakeOutput) WritesFor(channel int) []Write {
	var out []Write
	for _, w := range f.Writes {
		if w.Channel == channel {
			out = append(out, w)
		}
	}
	return out
}

// Reset clears recorded writes.
func (f *FakeOutput) Reset() {
	f.Writes = nil
	f.Duty = make(map[int]int)
	f.Err = nil
}
