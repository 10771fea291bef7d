// Command flybox runs the scheduled lighting controller: it loads the event
// file, drives the three PWM lighting channels and reports status over MQTT
// and HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"github.com/sweeney/flybox/internal/actuator"
	"github.com/sweeney/flybox/internal/config"
	"github.com/sweeney/flybox/internal/display"
	"github.com/sweeney/flybox/internal/engine"
	"github.com/sweeney/flybox/internal/events"
	"github.com/sweeney/flybox/internal/gpio"
	"github.com/sweeney/flybox/internal/logging"
	"github.com/sweeney/flybox/internal/logic"
	"github.com/sweeney/flybox/internal/mqtt"
	"github.com/sweeney/flybox/internal/pwm"
	"github.com/sweeney/flybox/internal/status"
	"github.com/sweeney/flybox/internal/web"
)

var version = "dev"

type options struct {
	configPath    string
	eventsFile    string
	httpAddr      string
	httpSet       bool
	printSchedule bool
}

var opts options

var flags = []cli.Flag{
	cli.StringFlag{
		Name:        "config, c",
		Usage:       "path to the YAML configuration file",
		EnvVar:      "FLYBOX_CONFIG",
		Destination: &opts.configPath,
	},
	cli.StringFlag{
		Name:        "events, e",
		Usage:       "event file to load (overrides schedule.events_file)",
		Destination: &opts.eventsFile,
	},
	cli.StringFlag{
		Name:        "http",
		Usage:       `HTTP status address ("" disables, overrides http.addr)`,
		Destination: &opts.httpAddr,
	},
	cli.BoolFlag{
		Name:        "print-schedule, p",
		Usage:       "load the event file, print the schedule and exit",
		Destination: &opts.printSchedule,
	},
}

func main() {
	app := cli.App{
		Name:      "flybox",
		HelpName:  "flybox",
		Usage:     "scheduled lighting controller",
		Version:   version,
		UsageText: "flybox [--config file] [--events file] [--print-schedule]",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			opts.httpSet = c.IsSet("http")
			return run(opts)
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.eventsFile != "" {
		cfg.Schedule.EventsFile = o.eventsFile
	}
	if o.httpSet {
		cfg.HTTP.Addr = o.httpAddr
	}

	logger := logging.New(cfg.Logging)
	fs := afero.NewOsFs()

	if o.printSchedule {
		reg, res, err := events.Load(fs, cfg.Schedule.EventsFile, logging.Component(logger, "events"))
		if err != nil {
			return err
		}
		printSchedule(os.Stdout, reg, res)
		return nil
	}

	policy, err := logic.ParsePolicy(cfg.Schedule.Policy)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Initialize PWM outputs
	out := pwm.NewSysfsOutput(fs, cfg.Channels.PWMChip, cfg.Channels.PWM, cfg.Channels.Period)
	if err := out.Open(); err != nil {
		return fmt.Errorf("init pwm: %w", err)
	}
	defer out.Close()

	// Initialize front panel
	panel, err := gpio.NewRealPanel(cfg.Panel.Chip, cfg.Panel.KnobPin, cfg.Panel.IRPin)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer panel.Close()

	// Initialize MQTT
	var (
		publisher  mqtt.Publisher        = mqtt.Discard{}
		mqttStatus mqtt.ConnectionStatus = mqtt.Discard{}
	)
	if cfg.MQTT.Broker != "" {
		p := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID, logging.Component(logger, "mqtt"))
		publisher, mqttStatus = p, p
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		EventsFile:  cfg.Schedule.EventsFile,
		Policy:      string(policy),
		TickMs:      cfg.Schedule.Tick.Milliseconds(),
		HeartbeatMs: cfg.MQTT.Heartbeat.Milliseconds(),
		Repeat:      cfg.Schedule.Repeat,
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		logger.Warn().Err(err).Msg("failed to publish startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, logging.Component(logger, "web"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	logger.Info().
		Str("events", cfg.Schedule.EventsFile).
		Str("policy", string(policy)).
		Dur("tick", cfg.Schedule.Tick).
		Str("broker", cfg.MQTT.Broker).
		Msg("started")

	ticker := time.NewTicker(cfg.Schedule.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	watchdog, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn().Err(err).Msg("systemd watchdog misconfigured")
	}

	pins := [logic.NumChannels]int{cfg.Channels.PWM[0], cfg.Channels.PWM[1], cfg.Channels.PWM[2]}
	c := newController(controllerDeps{
		fs:         fs,
		eventsFile: cfg.Schedule.EventsFile,
		engine: engine.Options{
			Policy: policy,
			Tick:   cfg.Schedule.Tick,
			Repeat: cfg.Schedule.Repeat,
		},
		loc:        loc,
		startDay:   cfg.Schedule.StartDay,
		heartbeat:  cfg.MQTT.Heartbeat,
		act:        actuator.New(out, pins, logging.Component(logger, "actuator")),
		panel:      panel,
		display:    display.NewConsole(os.Stdout),
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		log:        logging.Component(logger, "controller"),
		now:        time.Now,
		notify:     sdNotify(logger),
		watchdog:   watchdog,
	})
	return c.run(ticker.C, sigCh)
}

// sdNotify returns a notifier that reports state to systemd. Outside systemd
// SdNotify is a no-op.
func sdNotify(log zerolog.Logger) func(string) {
	return func(state string) {
		if _, err := daemon.SdNotify(false, state); err != nil {
			log.Debug().Err(err).Str("state", state).Msg("sd_notify failed")
		}
	}
}

// printSchedule writes one line per event followed by the schedule length.
func printSchedule(w io.Writer, reg *logic.Registry, res events.Result) {
	for i, e := range reg.Events() {
		mode := "steady"
		if e.Frequency > 0 {
			mode = fmt.Sprintf("%dHz", e.Frequency)
		}
		sunset := ""
		if e.Sunset {
			sunset = " sunset"
		}
		fmt.Fprintf(w, "%3d  ch%d  %s -> %s  intensity=%d duty=%d %s%s\n",
			i, e.Device, e.Start, e.Stop, e.Intensity, actuator.Duty(e.Intensity), mode, sunset)
	}
	horizon := logic.LongestStop(reg)
	fmt.Fprintf(w, "loaded=%d skipped=%d horizon=%d min (%d days)\n",
		res.Loaded, res.Skipped, horizon, logic.ScheduleDays(horizon))
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
