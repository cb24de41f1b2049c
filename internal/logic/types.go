// Package logic contains the pure water-state tracking for the monitor.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the debounced water state at the sensor.
type State string

const (
	StateWet State = "WET"
	StateDry State = "DRY"
)

// EventType represents a state transition event.
type EventType string

const (
	EventWaterDetected EventType = "WATER_DETECTED"
	EventWaterCleared  EventType = "WATER_CLEARED"
)

// Event represents a state transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	State     State
}

// channelState tracks debounce state for the sensor channel.
type channelState struct {
	// Current stable (debounced) state
	Stable State
	// Pending state during debounce
	Pending State
	// Time when pending state was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}

// Input represents a single DetectWater sample.
type Input struct {
	Wet  bool
	Time time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Detected   int
	Cleared    int
	ReadErrors int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	State     State
	Counts    EventCounts
}
