// Package events loads the lighting schedule from its JSON event file.
//
// The file holds a JSON array of descriptors:
//
//	[{"group":0,"start_day":0,"start_hour":8,"start_min":0,
//	  "end_day":0,"end_hour":20,"end_min":0,
//	  "intensity":80,"frequency":0,"sunset":"false"}, ...]
//
// A descriptor that cannot be used is logged and skipped; only an unreadable
// file fails the load.
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/sweeney/flybox/internal/logic"
)

// MaxIntensity is the top of the intensity input scale.
const MaxIntensity = 255

var (
	errMissing    = errors.New("missing")
	errRange      = errors.New("out of range")
	errNotAnArray = errors.New("top level is not a JSON array")
)

// Descriptor is the raw form of one event as it appears in the file.
type Descriptor struct {
	Group     int  `json:"group"`
	StartDay  int  `json:"start_day"`
	StartHour int  `json:"start_hour"`
	StartMin  int  `json:"start_min"`
	EndDay    int  `json:"end_day"`
	EndHour   int  `json:"end_hour"`
	EndMin    int  `json:"end_min"`
	Intensity int  `json:"intensity"`
	Frequency int  `json:"frequency"`
	Sunset    bool `json:"-"`
}

// Result summarises a load.
type Result struct {
	Loaded  int
	Skipped int
	Errors  []*MalformedRecordError
}

// Load reads the event file at path and builds a registry in file order.
// It returns a *LoadError if the file is missing, unreadable or not a JSON
// array. Malformed descriptors are logged, counted in Result and skipped.
func Load(fs afero.Fs, path string, log zerolog.Logger) (*logic.Registry, Result, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, Result{}, &LoadError{Path: path, Err: err}
	}

	reg, res, err := Decode(data, log)
	if err != nil {
		return nil, Result{}, &LoadError{Path: path, Err: err}
	}
	return reg, res, nil
}

// Decode builds a registry from the raw JSON document.
func Decode(data []byte, log zerolog.Logger) (*logic.Registry, Result, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, Result{}, errNotAnArray
		}
		return nil, Result{}, fmt.Errorf("decode: %w", err)
	}
	if raw == nil {
		// "null" decodes without error.
		return nil, Result{}, errNotAnArray
	}

	reg := logic.NewRegistry()
	var res Result
	for i, msg := range raw {
		d, err := parseDescriptor(i, msg)
		if err == nil {
			var ev logic.Event
			ev, err = d.toEvent(i)
			if err == nil {
				if ev.Stop.GlobalMinute() <= ev.Start.GlobalMinute() {
					log.Warn().Int("index", i).Stringer("start", ev.Start).Stringer("stop", ev.Stop).
						Msg("event stops before it starts; it will never be active")
				}
				reg.Add(ev)
				res.Loaded++
				continue
			}
		}

		var mre *MalformedRecordError
		if !errors.As(err, &mre) {
			mre = &MalformedRecordError{Index: i, Err: err}
		}
		log.Error().Err(mre).Msg("skipping malformed event")
		res.Skipped++
		res.Errors = append(res.Errors, mre)
	}
	return reg, res, nil
}

func parseDescriptor(index int, msg json.RawMessage) (Descriptor, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err != nil || fields == nil {
		return Descriptor{}, &MalformedRecordError{Index: index, Err: errors.New("not a JSON object")}
	}

	var d Descriptor
	ints := []struct {
		key string
		dst *int
	}{
		{"group", &d.Group},
		{"start_day", &d.StartDay},
		{"start_hour", &d.StartHour},
		{"start_min", &d.StartMin},
		{"end_day", &d.EndDay},
		{"end_hour", &d.EndHour},
		{"end_min", &d.EndMin},
		{"intensity", &d.Intensity},
		{"frequency", &d.Frequency},
	}
	for _, f := range ints {
		v, ok := fields[f.key]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return Descriptor{}, &MalformedRecordError{Index: index, Field: f.key, Err: errMissing}
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return Descriptor{}, &MalformedRecordError{Index: index, Field: f.key, Err: err}
		}
	}
	d.Sunset = parseSunset(fields["sunset"])
	return d, nil
}

// parseSunset accepts the string "true" and the bool true. Anything else,
// including a missing field, is false.
func parseSunset(v json.RawMessage) bool {
	if v == nil {
		return false
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s == "true"
	}
	var b bool
	if json.Unmarshal(v, &b) == nil {
		return b
	}
	return false
}

func (d Descriptor) toEvent(index int) (logic.Event, error) {
	if d.Group < 0 || d.Group >= logic.NumChannels {
		return logic.Event{}, &MalformedRecordError{Index: index, Field: "group",
			Err: fmt.Errorf("%w: %d (channels 0-%d)", errRange, d.Group, logic.NumChannels-1)}
	}
	if d.Intensity < 0 || d.Intensity > MaxIntensity {
		return logic.Event{}, &MalformedRecordError{Index: index, Field: "intensity",
			Err: fmt.Errorf("%w: %d", errRange, d.Intensity)}
	}
	if d.Frequency < 0 {
		return logic.Event{}, &MalformedRecordError{Index: index, Field: "frequency",
			Err: fmt.Errorf("%w: %d", errRange, d.Frequency)}
	}

	start, err := logic.NewTime(d.StartDay, d.StartHour, d.StartMin)
	if err != nil {
		return logic.Event{}, &MalformedRecordError{Index: index, Field: "start", Err: err}
	}
	stop, err := logic.NewTime(d.EndDay, d.EndHour, d.EndMin)
	if err != nil {
		return logic.Event{}, &MalformedRecordError{Index: index, Field: "end", Err: err}
	}

	return logic.Event{
		Device:    d.Group,
		Frequency: d.Frequency,
		Intensity: d.Intensity,
		Sunset:    d.Sunset,
		Start:     start,
		Stop:      stop,
	}, nil
}
