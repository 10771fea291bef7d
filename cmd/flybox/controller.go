package main

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/sweeney/flybox/internal/actuator"
	"github.com/sweeney/flybox/internal/clock"
	"github.com/sweeney/flybox/internal/display"
	"github.com/sweeney/flybox/internal/engine"
	"github.com/sweeney/flybox/internal/events"
	"github.com/sweeney/flybox/internal/gpio"
	"github.com/sweeney/flybox/internal/mqtt"
	"github.com/sweeney/flybox/internal/status"
)

type controllerDeps struct {
	fs         afero.Fs
	eventsFile string
	engine     engine.Options
	loc        *time.Location
	startDay   int
	heartbeat  time.Duration
	act        *actuator.Actuator
	panel      gpio.Panel
	display    display.Display
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	log        zerolog.Logger
	now        func() time.Time
	// notify sends a sd_notify state string; nil disables it.
	notify func(state string)
	// watchdog is the systemd watchdog interval, 0 when disabled.
	watchdog time.Duration
}

// controller owns one run of the schedule: load, then either the control
// loop or the halt state. It is driven from a single goroutine.
type controller struct {
	controllerDeps
	panelErrLimit *rate.Limiter
	lastPing      time.Time
}

func newController(d controllerDeps) *controller {
	return &controller{
		controllerDeps: d,
		panelErrLimit:  rate.NewLimiter(rate.Every(30*time.Second), 1),
	}
}

// run loads the event file and runs the schedule until a signal arrives.
// A load failure enters the halt state; a knob press there starts over.
func (c *controller) run(tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		reg, res, err := events.Load(c.fs, c.eventsFile, c.log)
		if err != nil {
			var loadErr *events.LoadError
			if !errors.As(err, &loadErr) {
				return err
			}
			reset, err := c.halt(loadErr, tick, sig)
			if err != nil || !reset {
				return err
			}
			continue
		}

		days := clock.NewDayCounter(c.loc, c.startDay)
		eng := engine.New(reg, c.act, days, c.engine, c.now(), c.log)
		c.tracker.SetSchedule(res.Loaded, res.Skipped, eng.Horizon())
		if err := c.panel.SetIR(true); err != nil {
			c.log.Warn().Err(err).Msg("ir enable failed")
		}
		c.sdNotify(daemon.SdNotifyReady)
		c.sdNotify(fmt.Sprintf("STATUS=running, %d events", res.Loaded))
		c.log.Info().
			Int("loaded", res.Loaded).
			Int("skipped", res.Skipped).
			Int("horizon", eng.Horizon()).
			Msg("schedule loaded")

		return c.runLoop(eng, tick, sig)
	}
}

func (c *controller) runLoop(eng *engine.Engine, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			return c.shutdown(s)

		case <-tick:
			t := c.now()
			res := eng.Tick(t)
			c.pingWatchdog(t)

			for _, tr := range res.Transitions {
				c.log.Info().
					Int("index", tr.Index).
					Int("device", tr.Event.Device).
					Bool("active", tr.Active).
					Stringer("at", res.Now).
					Msg("event")
				if err := c.publisher.Publish(mqtt.Event{Timestamp: t, Now: res.Now, Transition: tr}); err != nil {
					c.log.Warn().Err(err).Msg("publish error")
					// Don't stop the schedule on publish failure
				}
			}

			// Update status tracker for HTTP consumers
			c.tracker.Update(res.Now, status.ChannelStates(eng.Channels(), eng.Registry()), eng.Counts())
			if c.mqttStatus != nil {
				c.tracker.SetMQTTConnected(c.mqttStatus.IsConnected())
			}

			if hb := eng.CheckHeartbeat(t, c.heartbeat); hb != nil {
				c.log.Info().
					Dur("uptime", hb.Uptime).
					Int("starts", hb.Counts.Starts).
					Int("stops", hb.Counts.Stops).
					Msg("heartbeat")
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					c.tracker.SetNetwork(net)
				}
				snap := c.tracker.Snapshot()
				event := mqtt.SystemEvent{
					Timestamp:  hb.Timestamp,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
				}
				if err := c.publisher.PublishSystem(event); err != nil {
					c.log.Warn().Err(err).Msg("heartbeat publish error")
				}
			}
		}
	}
}

// halt reports the load failure once, switches every output off and then
// only watches the knob. It returns true when the knob asks for a reset.
func (c *controller) halt(loadErr *events.LoadError, tick <-chan time.Time, sig <-chan os.Signal) (bool, error) {
	c.log.Error().Err(loadErr).Msg("event file unavailable, halted")

	if err := c.display.Show(display.HaltMessage); err != nil {
		c.log.Warn().Err(err).Msg("display error")
	}
	if err := c.panel.SetIR(false); err != nil {
		c.log.Warn().Err(err).Msg("ir disable failed")
	}
	c.act.Init()
	c.tracker.SetHalted(loadErr.Error())
	c.sdNotify(daemon.SdNotifyReady)
	c.sdNotify("STATUS=halted: " + loadErr.Error())

	snap := c.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  c.now(),
		Event:      "HALT",
		Reason:     loadErr.Error(),
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "HALT", loadErr.Error()),
	}
	if err := c.publisher.PublishSystem(event); err != nil {
		c.log.Warn().Err(err).Msg("failed to publish halt event")
	}

	// A knob held down on entry must be released before it counts.
	wasPressed := true
	for {
		select {
		case s := <-sig:
			return false, c.shutdown(s)

		case <-tick:
			if c.watchdog > 0 {
				c.pingWatchdog(c.now())
			}
			pressed, err := c.panel.KnobPressed()
			if err != nil {
				if c.panelErrLimit.Allow() {
					c.log.Warn().Err(err).Msg("knob read error")
				}
				continue
			}
			if pressed && !wasPressed {
				c.log.Info().Msg("knob pressed, restarting")
				reset := mqtt.SystemEvent{Timestamp: c.now(), Event: "RESET", Reason: "KNOB"}
				if err := c.publisher.PublishSystem(reset); err != nil {
					c.log.Warn().Err(err).Msg("failed to publish reset event")
				}
				return true, nil
			}
			wasPressed = pressed
		}
	}
}

func (c *controller) shutdown(s os.Signal) error {
	name := signalName(s)
	c.log.Info().Str("signal", name).Msg("shutting down")
	c.sdNotify(daemon.SdNotifyStopping)

	event := mqtt.SystemEvent{
		Timestamp: c.now(),
		Event:     "SHUTDOWN",
		Reason:    name,
		Retained:  true,
	}
	if c.tracker != nil {
		if c.mqttStatus != nil {
			c.tracker.SetMQTTConnected(c.mqttStatus.IsConnected())
		}
		event.RawPayload = status.FormatStatusEvent(c.tracker.Snapshot(), "SHUTDOWN", name)
	}
	if err := c.publisher.PublishSystem(event); err != nil {
		c.log.Warn().Err(err).Msg("failed to publish shutdown event")
	}
	return nil
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func (c *controller) sdNotify(state string) {
	if c.notify != nil {
		c.notify(state)
	}
}

// pingWatchdog notifies systemd at half the watchdog interval.
func (c *controller) pingWatchdog(t time.Time) {
	if c.watchdog <= 0 || t.Sub(c.lastPing) < c.watchdog/2 {
		return
	}
	c.lastPing = t
	c.sdNotify(daemon.SdNotifyWatchdog)
}
