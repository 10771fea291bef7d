package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	State         string        `json:"state"`
	HaltReason    string        `json:"halt_reason,omitempty"`
	ScheduleTime  string        `json:"schedule_time"`
	GlobalMinute  int           `json:"global_minute"`
	Channels      []ChannelJSON `json:"channels"`
	Events        EventsJSON    `json:"events"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// Controller states.
const (
	StateRunning = "RUNNING"
	StateHalted  = "HALTED"
)

// ChannelJSON is the JSON representation of one channel.
type ChannelJSON struct {
	Channel int  `json:"channel"`
	Pin     int  `json:"pin"`
	On      bool `json:"on"`
	Duty    int  `json:"duty"`
	Event   int  `json:"event"`
}

// EventsJSON summarises the registry and transitions since startup.
type EventsJSON struct {
	Loaded   int `json:"loaded"`
	Skipped  int `json:"skipped"`
	Horizon  int `json:"horizon_minutes"`
	Starts   int `json:"starts"`
	Stops    int `json:"stops"`
	Restarts int `json:"restarts"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of controller config.
type ConfigJSON struct {
	EventsFile  string `json:"events_file"`
	Policy      string `json:"policy"`
	TickMs      int64  `json:"tick_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Repeat      bool   `json:"repeat"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	state := StateRunning
	if snap.Halted {
		state = StateHalted
	}

	channels := make([]ChannelJSON, len(snap.Channels))
	for i, ch := range snap.Channels {
		channels[i] = ChannelJSON{Channel: i, Pin: ch.Pin, On: ch.On, Duty: ch.Duty, Event: ch.Event}
	}

	inner := StatusInner{
		State:        state,
		HaltReason:   snap.HaltReason,
		ScheduleTime: snap.Schedule.String(),
		GlobalMinute: snap.Schedule.GlobalMinute(),
		Channels:     channels,
		Events: EventsJSON{
			Loaded:   snap.Loaded,
			Skipped:  snap.Skipped,
			Horizon:  snap.Horizon,
			Starts:   snap.Counts.Starts,
			Stops:    snap.Counts.Stops,
			Restarts: snap.Counts.Restarts,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			EventsFile:  snap.Config.EventsFile,
			Policy:      snap.Config.Policy,
			TickMs:      snap.Config.TickMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Repeat:      snap.Config.Repeat,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the compact JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
