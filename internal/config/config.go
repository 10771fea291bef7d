// Package config loads the controller configuration from YAML with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/flybox/internal/gpio"
	"github.com/sweeney/flybox/internal/logging"
)

// Config is the root configuration structure.
type Config struct {
	Schedule ScheduleConfig `yaml:"schedule"`
	Channels ChannelsConfig `yaml:"channels"`
	Panel    PanelConfig    `yaml:"panel"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  logging.Config `yaml:"logging"`
}

// ScheduleConfig controls event loading and evaluation.
type ScheduleConfig struct {
	EventsFile string        `yaml:"events_file"`
	Policy     string        `yaml:"policy"` // window or edge
	Tick       time.Duration `yaml:"tick"`
	Timezone   string        `yaml:"timezone"`
	StartDay   int           `yaml:"start_day"`
	// Repeat restarts the schedule at day 0 once every event has ended.
	Repeat bool `yaml:"repeat"`
}

// ChannelsConfig maps lighting channels onto sysfs PWM outputs.
type ChannelsConfig struct {
	PWMChip string        `yaml:"pwm_chip"` // e.g. /sys/class/pwm/pwmchip0
	PWM     []int         `yaml:"pwm"`      // pwm index per channel, in channel order
	Period  time.Duration `yaml:"period"`
}

// PanelConfig contains the front panel GPIO lines.
type PanelConfig struct {
	Chip    string `yaml:"chip"`
	KnobPin int    `yaml:"knob_pin"`
	IRPin   int    `yaml:"ir_pin"`
}

// MQTTConfig contains telemetry broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// HTTPConfig contains the status server address. Empty disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Defaults returns the configuration used when no file overrides a value.
func Defaults() Config {
	return Config{
		Schedule: ScheduleConfig{
			EventsFile: "/boot/flybox/events.json",
			Policy:     "window",
			Tick:       10 * time.Millisecond,
			Timezone:   "Local",
		},
		Channels: ChannelsConfig{
			PWMChip: "/sys/class/pwm/pwmchip0",
			PWM:     []int{0, 1, 2},
			Period:  200 * time.Microsecond,
		},
		Panel: PanelConfig{
			Chip:    "gpiochip0",
			KnobPin: gpio.DefaultKnobPin,
			IRPin:   gpio.DefaultIRPin,
		},
		MQTT: MQTTConfig{
			ClientID:  "flybox",
			Heartbeat: 15 * time.Minute,
		},
		HTTP: HTTPConfig{Addr: ":80"},
		Logging: logging.Config{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
	}
}

// Load reads path on top of Defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping existing values for absent keys.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Environment variable names for overrides.
const (
	envEventsFile = "FLYBOX_EVENTS_FILE"
	envPolicy     = "FLYBOX_POLICY"
	envTimezone   = "FLYBOX_TIMEZONE"
	envStartDay   = "FLYBOX_START_DAY"
	envBroker     = "FLYBOX_MQTT_BROKER"
	envHTTPAddr   = "FLYBOX_HTTP_ADDR"
	envLogLevel   = "FLYBOX_LOG_LEVEL"
)

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(envEventsFile); v != "" {
		cfg.Schedule.EventsFile = v
	}
	if v := getenv(envPolicy); v != "" {
		cfg.Schedule.Policy = v
	}
	if v := getenv(envTimezone); v != "" {
		cfg.Schedule.Timezone = v
	}
	if v := getenv(envStartDay); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Schedule.StartDay = n
		}
	}
	if v, ok := lookup(getenv, envBroker); ok {
		cfg.MQTT.Broker = v
	}
	if v, ok := lookup(getenv, envHTTPAddr); ok {
		cfg.HTTP.Addr = v
	}
	if v := getenv(envLogLevel); v != "" {
		cfg.Logging.Level = v
	}
}

// lookup treats the literal "off" as an explicit empty value.
func lookup(getenv func(string) string, key string) (string, bool) {
	v := getenv(key)
	if v == "" {
		return "", false
	}
	if strings.EqualFold(v, "off") {
		return "", true
	}
	return v, true
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid value")

// Validate checks value ranges. It returns the first problem found.
func (c Config) Validate() error {
	if c.Schedule.EventsFile == "" {
		return fmt.Errorf("%w: schedule.events_file is empty", ErrInvalid)
	}
	switch c.Schedule.Policy {
	case "", "window", "edge":
	default:
		return fmt.Errorf("%w: schedule.policy %q (want window or edge)", ErrInvalid, c.Schedule.Policy)
	}
	if c.Schedule.Tick <= 0 {
		return fmt.Errorf("%w: schedule.tick must be positive", ErrInvalid)
	}
	if c.Schedule.StartDay < 0 {
		return fmt.Errorf("%w: schedule.start_day %d is negative", ErrInvalid, c.Schedule.StartDay)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: schedule.timezone: %v", ErrInvalid, err)
	}
	if len(c.Channels.PWM) != 3 {
		return fmt.Errorf("%w: channels.pwm needs 3 entries, got %d", ErrInvalid, len(c.Channels.PWM))
	}
	if c.Channels.Period <= 0 {
		return fmt.Errorf("%w: channels.period must be positive", ErrInvalid)
	}
	if c.MQTT.Heartbeat < 0 {
		return fmt.Errorf("%w: mqtt.heartbeat is negative", ErrInvalid)
	}
	return nil
}

// Location resolves the schedule timezone.
func (c Config) Location() (*time.Location, error) {
	switch c.Schedule.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	return time.LoadLocation(c.Schedule.Timezone)
}
