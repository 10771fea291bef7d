package gpio

// FakePanel is a test double that returns scripted knob readings and
// records IR changes.
type FakePanel struct {
	// Presses contains scripted knob readings.
	// Each call to KnobPressed() consumes the next one.
	Presses []bool

	// index tracks current position in Presses
	index int

	// IR is the current IR line state.
	IR bool

	// IRWrites records every SetIR call.
	IRWrites []bool

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by KnobPressed()
	ReadError error
}

// NewFakePanel creates a FakePanel with the given knob readings and IR on.
func NewFakePanel(presses []bool) *FakePanel {
	return &FakePanel{Presses: presses, IR: true}
}

// KnobPressed returns the next scripted reading.
// If readings are exhausted, returns the last one repeatedly; with no
// readings the knob is never pressed.
func (f *FakePanel) KnobPressed() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Presses) == 0 {
		return false, nil
	}

	pressed := f.Presses[f.index]
	if f.index < len(f.Presses)-1 {
		f.index++
	}
	return pressed, nil
}

// SetIR records the IR state.
func (f *FakePanel) SetIR(on bool) error {
	f.IR = on
	f.IRWrites = append(f.IRWrites, on)
	return nil
}

// Close marks the panel as closed.
func (f *FakePanel) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the panel to the beginning of its readings.
func (f *FakePanel) Reset() {
	f.index = 0
	f.Closed = false
	f.IRWrites = nil
}
