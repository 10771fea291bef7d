// Package status provides a thread-safe status tracker for the flybox controller.
// It is read by the HTTP handlers and the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/flybox/internal/actuator"
	"github.com/sweeney/flybox/internal/engine"
	"github.com/sweeney/flybox/internal/logic"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains controller configuration for display.
type Config struct {
	EventsFile  string
	Policy      string
	TickMs      int64
	HeartbeatMs int64
	Repeat      bool
	Broker      string
	HTTPAddr    string
}

// ChannelState is the output state of one lighting channel.
type ChannelState struct {
	Pin   int
	On    bool
	Duty  int
	Event int // index of the event driving the channel, -1 when idle
}

// Snapshot is a point-in-time view of controller state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Schedule      logic.Time
	Channels      []ChannelState
	Counts        engine.Counts
	Loaded        int
	Skipped       int
	Horizon       int
	Halted        bool
	HaltReason    string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the controller started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// ChannelStates pairs actuator channel state with the event driving each channel.
func ChannelStates(chs [logic.NumChannels]actuator.Channel, reg *logic.Registry) []ChannelState {
	out := make([]ChannelState, len(chs))
	for i, ch := range chs {
		idx := -1
		if reg != nil {
			idx = reg.ActiveFor(i)
		}
		out[i] = ChannelState{Pin: ch.Pin, On: ch.IsOn, Duty: ch.Duty, Event: idx}
	}
	return out
}

// Tracker holds mutable controller state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker returns a Tracker for a controller started at startTime.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// SetSchedule records the outcome of loading the event file and clears any halt.
func (t *Tracker) SetSchedule(loaded, skipped, horizon int) {
	t.mu.Lock()
	t.snap.Loaded = loaded
	t.snap.Skipped = skipped
	t.snap.Horizon = horizon
	t.snap.Halted = false
	t.snap.HaltReason = ""
	t.mu.Unlock()
}

// SetHalted marks the controller as halted on a load failure.
func (t *Tracker) SetHalted(reason string) {
	t.mu.Lock()
	t.snap.Halted = true
	t.snap.HaltReason = reason
	t.snap.Loaded = 0
	t.snap.Skipped = 0
	t.snap.Horizon = 0
	t.snap.Channels = nil
	t.mu.Unlock()
}

// Update sets schedule time, channel states and transition counts.
func (t *Tracker) Update(now logic.Time, channels []ChannelState, counts engine.Counts) {
	t.mu.Lock()
	t.snap.Schedule = now
	t.snap.Channels = channels
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected records whether the broker connection is up.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork replaces the network info read from the pi-helper environment.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the controller state.
// Now is stamped at the time of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Channels = append([]ChannelState(nil), t.snap.Channels...)
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
