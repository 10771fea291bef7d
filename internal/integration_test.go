package internal

import (
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/sweeney/flybox/internal/actuator"
	"github.com/sweeney/flybox/internal/clock"
	"github.com/sweeney/flybox/internal/engine"
	"github.com/sweeney/flybox/internal/events"
	"github.com/sweeney/flybox/internal/logic"
	"github.com/sweeney/flybox/internal/mqtt"
	"github.com/sweeney/flybox/internal/pwm"
)

const (
	chip       = "/sys/class/pwm/pwmchip0"
	eventsFile = "/boot/flybox/events.json"
	// 255µs makes one duty step exactly 1000ns.
	period = 255 * time.Microsecond
)

var start = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type rig struct {
	fs        afero.Fs
	out       *pwm.SysfsOutput
	publisher *mqtt.FakePublisher
	engine    *engine.Engine
}

// newRig loads doc from an in-memory event file and wires it to sysfs PWM on
// the same in-memory filesystem.
func newRig(t *testing.T, doc string, opts engine.Options) *rig {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, eventsFile, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, _, err := events.Load(fs, eventsFile, zerolog.Nop())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	out := pwm.NewSysfsOutput(fs, chip, []int{0, 1, 2}, period)
	if err := out.Open(); err != nil {
		t.Fatalf("open pwm: %v", err)
	}
	act := actuator.New(out, [3]int{0, 1, 2}, zerolog.Nop())
	eng := engine.New(reg, act, clock.NewDayCounter(time.UTC, 0), opts, start, zerolog.Nop())

	return &rig{fs: fs, out: out, publisher: mqtt.NewFakePublisher(), engine: eng}
}

// tick runs one control pass and publishes its transitions like the run loop.
func (r *rig) tick(t *testing.T, now time.Time) engine.Result {
	t.Helper()
	res := r.engine.Tick(now)
	for _, tr := range res.Transitions {
		if err := r.publisher.Publish(mqtt.Event{Timestamp: now, Now: res.Now, Transition: tr}); err != nil {
			t.Logf("publish error: %v", err)
		}
	}
	return res
}

func (r *rig) dutyNs(t *testing.T, pwmIndex int) string {
	t.Helper()
	b, err := afero.ReadFile(r.fs, chip+"/pwm"+strconv.Itoa(pwmIndex)+"/duty_cycle")
	if err != nil {
		t.Fatalf("read duty_cycle: %v", err)
	}
	return string(b)
}

// TestIntegrationFullDay runs a two-channel schedule minute by minute through
// a whole day and checks transitions, payloads and the PWM files.
func TestIntegrationFullDay(t *testing.T) {
	doc := `[
  {"group":0,"start_day":0,"start_hour":8,"start_min":0,"end_day":0,"end_hour":20,"end_min":0,"intensity":100,"frequency":0,"sunset":"false"},
  {"group":2,"start_day":0,"start_hour":12,"start_min":30,"end_day":0,"end_hour":13,"end_min":0,"intensity":50,"frequency":0,"sunset":true}
]`
	r := newRig(t, doc, engine.Options{})

	for m := 0; m < 24*60; m++ {
		now := start.Add(time.Duration(m) * time.Minute)
		r.tick(t, now)

		switch m {
		case 7*60 + 59:
			if got := r.dutyNs(t, 0); got != "0" {
				t.Errorf("07:59 channel 0 duty: got %s, want 0", got)
			}
		case 12 * 60:
			if got := r.dutyNs(t, 0); got != "255000" {
				t.Errorf("12:00 channel 0 duty: got %s, want 255000", got)
			}
		case 12*60 + 45:
			if got := r.dutyNs(t, 2); got != "31000" {
				t.Errorf("12:45 channel 2 duty: got %s, want 31000", got)
			}
		}
	}

	if got := r.dutyNs(t, 0); got != "0" {
		t.Errorf("end of day channel 0 duty: got %s, want 0", got)
	}
	if got := r.dutyNs(t, 2); got != "0" {
		t.Errorf("end of day channel 2 duty: got %s, want 0", got)
	}

	want := []struct {
		device int
		typ    string
		at     string
	}{
		{0, mqtt.EventStart, "d0 08:00"},
		{2, mqtt.EventStart, "d0 12:30"},
		{2, mqtt.EventStop, "d0 13:00"},
		{0, mqtt.EventStop, "d0 20:00"},
	}
	if len(r.publisher.Payloads) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(r.publisher.Payloads))
	}
	for i, w := range want {
		var parsed mqtt.Payload
		if err := json.Unmarshal(r.publisher.Payloads[i], &parsed); err != nil {
			t.Fatalf("payload %d: invalid JSON: %v", i, err)
		}
		e := parsed.Event
		if e.Device != w.device || e.Type != w.typ || e.ScheduleTime != w.at {
			t.Errorf("event %d: got device=%d type=%s at=%s, want %d %s %s", i, e.Device, e.Type, e.ScheduleTime, w.device, w.typ, w.at)
		}
	}
	if !r.publisher.Events[1].Transition.Event.Sunset {
		t.Error("sunset flag should be carried through to the published event")
	}
}

// TestIntegrationMultiDayRepeat checks day rollover across midnight and the
// schedule looping back to day 0.
func TestIntegrationMultiDayRepeat(t *testing.T) {
	doc := `[
  {"group":1,"start_day":1,"start_hour":22,"start_min":0,"end_day":2,"end_hour":2,"end_min":0,"intensity":100,"frequency":0}
]`
	r := newRig(t, doc, engine.Options{Repeat: true})

	if r.engine.Horizon() != 2*24*60+2*60 {
		t.Fatalf("horizon: got %d", r.engine.Horizon())
	}

	at := func(day, hour int) time.Time {
		return start.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
	}

	r.tick(t, at(0, 0))
	r.tick(t, at(1, 21))
	if r.engine.Channels()[1].IsOn {
		t.Error("d1 21:00 should be off")
	}
	r.tick(t, at(1, 23))
	if !r.engine.Channels()[1].IsOn {
		t.Error("d1 23:00 should be on")
	}
	r.tick(t, at(2, 1))
	if !r.engine.Channels()[1].IsOn {
		t.Error("d2 01:00 should still be on after midnight")
	}
	r.tick(t, at(2, 2))
	if r.engine.Channels()[1].IsOn {
		t.Error("d2 02:00 should be off")
	}

	// Three days of schedule: wall day 3 is schedule day 0 again.
	res := r.tick(t, at(3, 0))
	if !res.Restarted || res.Now.Day != 0 {
		t.Errorf("expected restart to day 0, got restarted=%v day=%d", res.Restarted, res.Now.Day)
	}
	r.tick(t, at(4, 23))
	if !r.engine.Channels()[1].IsOn {
		t.Error("event should run again on the second pass")
	}
}

// TestIntegrationBlinkWritesPWM drives a 10Hz event at a 10ms tick and checks
// the PWM file alternates between the duty level and zero.
func TestIntegrationBlinkWritesPWM(t *testing.T) {
	doc := `[
  {"group":0,"start_day":0,"start_hour":0,"start_min":0,"end_day":0,"end_hour":1,"end_min":0,"intensity":100,"frequency":10}
]`
	r := newRig(t, doc, engine.Options{Tick: 10 * time.Millisecond})

	var seen []string
	for ms := 0; ms < 200; ms += 10 {
		r.tick(t, start.Add(time.Duration(ms)*time.Millisecond))
		if d := r.dutyNs(t, 0); len(seen) == 0 || seen[len(seen)-1] != d {
			seen = append(seen, d)
		}
	}

	want := []string{"255000", "0", "255000", "0"}
	if len(seen) != len(want) {
		t.Fatalf("duty sequence: got %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("duty sequence: got %v, want %v", seen, want)
			break
		}
	}
}

// TestIntegrationEdgePolicy checks the legacy policy only reacts on the exact
// start and stop minutes.
func TestIntegrationEdgePolicy(t *testing.T) {
	doc := `[
  {"group":0,"start_day":0,"start_hour":8,"start_min":0,"end_day":0,"end_hour":9,"end_min":0,"intensity":100,"frequency":0}
]`
	r := newRig(t, doc, engine.Options{Policy: logic.PolicyEdge})

	r.tick(t, start.Add(8*time.Hour+time.Minute))
	if r.engine.Channels()[0].IsOn {
		t.Error("edge policy must not start an event after its start minute")
	}

	r.tick(t, start.Add(9*time.Hour))
	r.tick(t, start.AddDate(0, 0, 1).Add(8*time.Hour))
	if r.engine.Channels()[0].IsOn {
		t.Error("d0 event must not fire on day 1")
	}
}

// TestIntegrationPublishFailureDoesNotStopOutputs verifies outputs keep
// following the schedule when the broker is unreachable.
func TestIntegrationPublishFailureDoesNotStopOutputs(t *testing.T) {
	doc := `[
  {"group":0,"start_day":0,"start_hour":0,"start_min":0,"end_day":0,"end_hour":1,"end_min":0,"intensity":100,"frequency":0}
]`
	r := newRig(t, doc, engine.Options{})
	r.publisher.PublishError = errors.New("broker down")

	r.tick(t, start)
	if got := r.dutyNs(t, 0); got != "255000" {
		t.Errorf("duty: got %s, want 255000", got)
	}
	if len(r.publisher.Events) != 0 {
		t.Errorf("failed publishes should not be recorded")
	}
}

// TestIntegrationMissingFile checks the load error the controller halts on.
func TestIntegrationMissingFile(t *testing.T) {
	_, _, err := events.Load(afero.NewMemMapFs(), eventsFile, zerolog.Nop())
	var loadErr *events.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if loadErr.Path != eventsFile {
		t.Errorf("path: got %q", loadErr.Path)
	}
}

// TestIntegrationCloseZeroesOutputs checks shutdown leaves every line off.
func TestIntegrationCloseZeroesOutputs(t *testing.T) {
	doc := `[
  {"group":0,"start_day":0,"start_hour":0,"start_min":0,"end_day":0,"end_hour":1,"end_min":0,"intensity":100,"frequency":0}
]`
	r := newRig(t, doc, engine.Options{})
	r.tick(t, start)

	if err := r.out.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := r.dutyNs(t, 0); got != "0" {
		t.Errorf("duty after close: got %s, want 0", got)
	}
	b, _ := afero.ReadFile(r.fs, chip+"/pwm0/enable")
	if string(b) != "0" {
		t.Errorf("enable after close: got %q, want 0", b)
	}
}
