// Package display shows operator messages. The controller uses it once, to
// report that it has halted.
package display

import (
	"fmt"
	"io"
	"strings"
)

// Display shows a multi-line message, replacing whatever was shown before.
type Display interface {
	Show(lines []string) error
}

// HaltMessage is shown when the event file cannot be loaded.
var HaltMessage = []string{
	"Error: No file found",
	"Press knob to",
	"restart",
}

// Width is the character width of the panel display.
const Width = 20

// Console renders messages as a framed block on a text stream.
type Console struct {
	w io.Writer
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Show writes the lines inside a frame, truncating each to Width.
func (c *Console) Show(lines []string) error {
	var b strings.Builder
	border := "+" + strings.Repeat("-", Width) + "+\n"
	b.WriteString(border)
	for _, l := range lines {
		if len(l) > Width {
			l = l[:Width]
		}
		fmt.Fprintf(&b, "|%-*s|\n", Width, l)
	}
	b.WriteString(border)
	_, err := io.WriteString(c.w, b.String())
	return err
}

// Fake records shown messages.
type Fake struct {
	Shown [][]string
	Err   error
}

// Show records the lines.
func (f *Fake) Show(lines []string) error {
	cp := make([]string, len(lines))
	copy(cp, lines)
	f.Shown = append(f.Shown, cp)
	return f.Err
}
