package events

import "fmt"

// LoadError reports that the event source could not be read at all.
// The controller cannot run a schedule without it.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("events: load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// MalformedRecordError reports a single descriptor that was skipped.
type MalformedRecordError struct {
	Index int    // position in the source array
	Field string // offending field, empty when the whole record is unusable
	Err   error
}

func (e *MalformedRecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("events: record %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("events: record %d: field %q: %v", e.Index, e.Field, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }
