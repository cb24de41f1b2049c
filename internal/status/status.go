// Package status provides a thread-safe status tracker for the level-sensor
// monitor. It is read by the HTTP handlers and the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/level-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains monitor configuration for display.
type Config struct {
	Mode        string // "uart" or "level"
	Port        string // serial device, websocket URL, or gpio chip
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// SensorInfo is what the monitor learned from the sensor at startup.
// Sensitivity and CalibrationMode are 0xFF until a self-check succeeds.
type SensorInfo struct {
	BeginCode       int
	SelfCheckOK     bool
	Sensitivity     uint8
	CalibrationMode uint8
}

// Snapshot is a point-in-time view of monitor state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Water         logic.State
	Baselined     bool
	Counts        logic.EventCounts
	Sensor        SensorInfo
	LastReadError string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the monitor started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable monitor state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Sensor:    SensorInfo{Sensitivity: 0xFF, CalibrationMode: 0xFF},
		},
	}
}

// Update sets the water state, baseline status, and event counts.
// Called from the monitor loop on every tick.
func (t *Tracker) Update(water logic.State, baselined bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Water = water
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetSensor records the startup handshake and self-check outcome.
func (t *Tracker) SetSensor(info SensorInfo) {
	t.mu.Lock()
	t.snap.Sensor = info
	t.mu.Unlock()
}

// SetReadError records the most recent sensor read failure; nil clears it.
func (t *Tracker) SetReadError(err error) {
	t.mu.Lock()
	if err != nil {
		t.snap.LastReadError = err.Error()
	} else {
		t.snap.LastReadError = ""
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the monitor state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
