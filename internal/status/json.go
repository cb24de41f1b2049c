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
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Water         string       `json:"water"`
	Ready         bool         `json:"ready"`
	LastReadError string       `json:"last_read_error,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Sensor        SensorJSON   `json:"sensor"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// SensorJSON reports what the sensor said at startup. Sensitivity and
// calibration mode are omitted until a self-check has succeeded.
type SensorJSON struct {
	Mode            string `json:"mode"`
	BeginCode       int    `json:"begin_code"`
	SelfCheckOK     bool   `json:"self_check_ok"`
	Sensitivity     *uint8 `json:"sensitivity,omitempty"`
	CalibrationMode *uint8 `json:"calibration_mode,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Detected   int `json:"water_detected"`
	Cleared    int `json:"water_cleared"`
	ReadErrors int `json:"read_errors"`
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

// ConfigJSON is the JSON representation of monitor config.
type ConfigJSON struct {
	Mode        string `json:"mode"`
	Port        string `json:"port"`
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	water := string(snap.Water)
	if water == "" {
		water = "UNKNOWN"
	}

	sensor := SensorJSON{
		Mode:        snap.Config.Mode,
		BeginCode:   snap.Sensor.BeginCode,
		SelfCheckOK: snap.Sensor.SelfCheckOK,
	}
	if snap.Sensor.Sensitivity != 0xFF {
		v := snap.Sensor.Sensitivity
		sensor.Sensitivity = &v
	}
	if snap.Sensor.CalibrationMode != 0xFF {
		v := snap.Sensor.CalibrationMode
		sensor.CalibrationMode = &v
	}

	return StatusInner{
		Water:         water,
		Ready:         snap.Baselined,
		LastReadError: snap.LastReadError,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Sensor:        sensor,
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Detected:   snap.Counts.Detected,
			Cleared:    snap.Counts.Cleared,
			ReadErrors: snap.Counts.ReadErrors,
		},
		Config: ConfigJSON{
			Mode:        snap.Config.Mode,
			Port:        snap.Config.Port,
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
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
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
