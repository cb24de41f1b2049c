package logic

import "time"

// Detector debounces water samples and detects WET/DRY transitions.
type Detector struct {
	debounceDuration time.Duration
	ch               channelState
	startTime        time.Time
	eventCounts      EventCounts
	lastHeartbeat    time.Time
}

// NewDetector creates a new transition detector with the given debounce duration.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(debounceDuration time.Duration, startTime time.Time) *Detector {
	return &Detector{
		debounceDuration: debounceDuration,
		startTime:        startTime,
		lastHeartbeat:    startTime,
	}
}

// Process takes a new sample and returns the event to emit, if any.
// Nothing is returned until a baseline is established.
func (d *Detector) Process(input Input) *Event {
	newState := boolToState(input.Wet)
	ch := &d.ch

	// First observations establish the baseline
	if !ch.Baselined {
		if ch.Pending != newState {
			ch.Pending = newState
			ch.PendingSince = input.Time
			return nil
		}
		if input.Time.Sub(ch.PendingSince) >= d.debounceDuration {
			ch.Stable = newState
			ch.Baselined = true
			ch.Pending = ""
		}
		return nil
	}

	if newState == ch.Stable {
		ch.Pending = ""
		return nil
	}

	if ch.Pending != newState {
		ch.Pending = newState
		ch.PendingSince = input.Time
		return nil
	}

	if input.Time.Sub(ch.PendingSince) < d.debounceDuration {
		return nil
	}

	ch.Stable = newState
	ch.Pending = ""

	e := &Event{Timestamp: input.Time, State: newState}
	if newState == StateWet {
		e.Type = EventWaterDetected
		d.eventCounts.Detected++
	} else {
		e.Type = EventWaterCleared
		d.eventCounts.Cleared++
	}
	return e
}

// RecordReadError counts a failed sensor read. The debounce state is left
// untouched so a transient error never produces an event.
func (d *Detector) RecordReadError() {
	d.eventCounts.ReadErrors++
}

func boolToState(wet bool) State {
	if wet {
		return StateWet
	}
	return StateDry
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.ch.Baselined
}

// CurrentState returns the current stable state, or "" before baseline.
func (d *Detector) CurrentState() State {
	return d.ch.Stable
}

// Counts returns the event counts since startup.
func (d *Detector) Counts() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.ch.Baselined {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		State:     d.ch.Stable,
		Counts:    d.eventCounts,
	}
}
