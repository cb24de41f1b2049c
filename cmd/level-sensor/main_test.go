package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/level-sensor/internal/clock"
	"github.com/sweeney/level-sensor/internal/gpio"
	"github.com/sweeney/level-sensor/internal/logic"
	"github.com/sweeney/level-sensor/internal/mqtt"
	"github.com/sweeney/level-sensor/internal/sensor"
	"github.com/sweeney/level-sensor/internal/status"
	"github.com/sweeney/level-sensor/internal/stream"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want %q", info.Status, "connected")
	}
	if info.IP != "" {
		t.Errorf("IP: got %q, want empty", info.IP)
	}
}

// --- runLoop tests ---

// fakeNow returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Only called from runLoop's goroutine.
func fakeNow(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// repeat returns n copies of level.
func repeat(level gpio.Level, n int) []gpio.Level {
	out := make([]gpio.Level, n)
	for i := range out {
		out[i] = level
	}
	return out
}

func concat(parts ...[]gpio.Level) []gpio.Level {
	var out []gpio.Level
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// levelSensor builds a level-mode sensor whose OUT pin returns samples.
func levelSensor(samples []gpio.Level) *sensor.Sensor {
	return sensor.NewLevel(sensor.LevelConfig{Out: gpio.NewFakePin(samples...)},
		sensor.WithClock(clock.NewFake(epoch)))
}

// faultSensor wraps a sensor and fails reads in [faultStart, faultEnd).
type faultSensor struct {
	inner      waterSensor
	call       int
	faultStart int
	faultEnd   int
}

func (f *faultSensor) DetectWater() (bool, error) {
	i := f.call
	f.call++
	if i >= f.faultStart && i < f.faultEnd {
		return false, errors.New("sensor fault")
	}
	return f.inner.DetectWater()
}

// runRunLoop drives runLoop for nTicks and then delivers sig.
func runRunLoop(t *testing.T, ws waterSensor, pub *mqtt.FakePublisher, tracker *status.Tracker, debounce, heartbeat time.Duration, now func() time.Time, nTicks int, sig os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sigCh := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(ws, pub, pub, tracker, debounce, heartbeat, now, tick, sigCh)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sigCh <- sig

	return <-errCh
}

func TestRunLoopNoEventsAtBaseline(t *testing.T) {
	samples := repeat(gpio.Low, 4)
	pub := mqtt.NewFakePublisher()

	err := runRunLoop(t, levelSensor(samples), pub, nil, 250*time.Millisecond, 0, fakeNow(epoch, 100*time.Millisecond), len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(pub.Events) != 0 {
		t.Errorf("expected 0 water events, got %d", len(pub.Events))
	}
	if len(pub.SystemEvents) != 1 || pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Fatalf("expected only SHUTDOWN, got %+v", pub.SystemEvents)
	}
}

func TestRunLoopWaterDetected(t *testing.T) {
	samples := concat(repeat(gpio.Low, 4), repeat(gpio.High, 4))
	pub := mqtt.NewFakePublisher()

	err := runRunLoop(t, levelSensor(samples), pub, nil, 250*time.Millisecond, 0, fakeNow(epoch, 100*time.Millisecond), len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(pub.Events) != 1 {
		t.Fatalf("expected 1 water event, got %d", len(pub.Events))
	}
	if pub.Events[0].Type != logic.EventWaterDetected {
		t.Errorf("expected WATER_DETECTED, got %s", pub.Events[0].Type)
	}
	if pub.Events[0].State != logic.StateWet {
		t.Errorf("expected state WET, got %s", pub.Events[0].State)
	}
}

func TestRunLoopDetectedThenCleared(t *testing.T) {
	samples := concat(repeat(gpio.Low, 4), repeat(gpio.High, 4), repeat(gpio.Low, 4))
	pub := mqtt.NewFakePublisher()

	err := runRunLoop(t, levelSensor(samples), pub, nil, 250*time.Millisecond, 0, fakeNow(epoch, 100*time.Millisecond), len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	want := []logic.EventType{logic.EventWaterDetected, logic.EventWaterCleared}
	if len(pub.Events) != len(want) {
		t.Fatalf("expected %d water events, got %d", len(want), len(pub.Events))
	}
	for i, w := range want {
		if pub.Events[i].Type != w {
			t.Errorf("event %d: expected %s, got %s", i, w, pub.Events[i].Type)
		}
	}
}

func TestRunLoopBounceRejection(t *testing.T) {
	// A single wet sample is shorter than the debounce and must not fire.
	samples := concat(repeat(gpio.Low, 4), []gpio.Level{gpio.High}, repeat(gpio.Low, 4))
	pub := mqtt.NewFakePublisher()

	err := runRunLoop(t, levelSensor(samples), pub, nil, 250*time.Millisecond, 0, fakeNow(epoch, 100*time.Millisecond), len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(pub.Events) != 0 {
		t.Errorf("expected 0 water events (bounce rejected), got %d", len(pub.Events))
	}
}

func TestRunLoopReadErrorRecovery(t *testing.T) {
	// Baseline (4 ticks), 3 read errors, then a real transition (4 ticks).
	ws := &faultSensor{
		inner:      levelSensor(concat(repeat(gpio.Low, 4), repeat(gpio.High, 4))),
		faultStart: 4,
		faultEnd:   7,
	}
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(epoch, status.Config{})

	err := runRunLoop(t, ws, pub, tracker, 250*time.Millisecond, 0, fakeNow(epoch, 100*time.Millisecond), 11, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(pub.Events) != 1 || pub.Events[0].Type != logic.EventWaterDetected {
		t.Fatalf("expected 1 WATER_DETECTED after recovery, got %+v", pub.Events)
	}
	snap := tracker.Snapshot()
	if snap.Counts.ReadErrors != 3 {
		t.Errorf("read errors: got %d, want 3", snap.Counts.ReadErrors)
	}
	if snap.LastReadError != "" {
		t.Errorf("last read error should clear after a good read, got %q", snap.LastReadError)
	}
	if snap.Water != logic.StateWet {
		t.Errorf("water: got %q, want WET", snap.Water)
	}
}

func TestRunLoopReadErrorRecordedInStatus(t *testing.T) {
	ws := &faultSensor{inner: levelSensor(repeat(gpio.Low, 4)), faultStart: 2, faultEnd: 4}
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(epoch, status.Config{})

	err := runRunLoop(t, ws, pub, tracker, 250*time.Millisecond, 0, fakeNow(epoch, 100*time.Millisecond), 4, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	snap := tracker.Snapshot()
	if snap.LastReadError != "sensor fault" {
		t.Errorf("last read error: got %q, want %q", snap.LastReadError, "sensor fault")
	}
	if len(pub.SystemEvents) != 1 || pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN after read errors, got %+v", pub.SystemEvents)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	// now() calls: t0 at start, then one per tick at 5 minute steps.
	// Baseline lands on the third tick (t3 - t1 = 10m), where
	// t3 - t0 = 15m fires the heartbeat.
	samples := repeat(gpio.Low, 4)
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	tracker := status.NewTracker(epoch, status.Config{})

	err := runRunLoop(t, levelSensor(samples), pub, tracker, 10*time.Minute, 15*time.Minute, fakeNow(epoch, 5*time.Minute), len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var heartbeats []mqtt.SystemEvent
	for _, se := range pub.SystemEvents {
		if se.Event == "HEARTBEAT" {
			heartbeats = append(heartbeats, se)
		}
	}
	if len(heartbeats) != 1 {
		t.Fatalf("expected 1 HEARTBEAT event, got %d", len(heartbeats))
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(heartbeats[0].RawPayload, &parsed); err != nil {
		t.Fatalf("heartbeat payload: %v", err)
	}
	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Water != "DRY" {
		t.Errorf("water: got %q, want DRY", parsed.Status.Water)
	}
	if !parsed.Status.Ready {
		t.Error("ready should be true once baselined")
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("mqtt.connected should reflect the publisher")
	}
}

func TestRunLoopHeartbeatIncludesNetworkInfo(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.42")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "associated")
	t.Setenv(envNetworkWifiSSID, "HomeNet")

	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(epoch, status.Config{})

	err := runRunLoop(t, levelSensor(repeat(gpio.Low, 4)), pub, tracker, 10*time.Minute, 15*time.Minute, fakeNow(epoch, 5*time.Minute), 4, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var hb *mqtt.SystemEvent
	for i := range pub.SystemEvents {
		if pub.SystemEvents[i].Event == "HEARTBEAT" {
			hb = &pub.SystemEvents[i]
			break
		}
	}
	if hb == nil {
		t.Fatal("expected a HEARTBEAT system event")
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(hb.RawPayload, &parsed); err != nil {
		t.Fatalf("heartbeat payload: %v", err)
	}
	if parsed.Status.Network == nil {
		t.Fatal("HEARTBEAT payload missing network info")
	}
	if parsed.Status.Network.IP != "192.168.1.42" {
		t.Errorf("network.ip: got %q, want %q", parsed.Status.Network.IP, "192.168.1.42")
	}
	if parsed.Status.Network.SSID != "HomeNet" {
		t.Errorf("network.ssid: got %q, want %q", parsed.Status.Network.SSID, "HomeNet")
	}
}

func TestRunLoopPublishError(t *testing.T) {
	samples := concat(repeat(gpio.Low, 4), repeat(gpio.High, 4))
	pub := mqtt.NewFakePublisher()
	pub.PublishError = fmt.Errorf("broker unavailable")

	err := runRunLoop(t, levelSensor(samples), pub, nil, 250*time.Millisecond, 0, fakeNow(epoch, 100*time.Millisecond), len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(pub.Events) != 0 {
		t.Errorf("expected 0 recorded events (publish failed), got %d", len(pub.Events))
	}
	if len(pub.SystemEvents) != 1 || pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Error("expected SHUTDOWN system event despite publish errors")
	}
}

func TestRunLoopShutdown(t *testing.T) {
	tests := []struct {
		sig    os.Signal
		reason string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			pub := mqtt.NewFakePublisher()
			tracker := status.NewTracker(epoch, status.Config{})

			err := runRunLoop(t, levelSensor(repeat(gpio.Low, 4)), pub, tracker, 250*time.Millisecond, 0, fakeNow(epoch, 100*time.Millisecond), 4, tt.sig)
			if err != nil {
				t.Fatalf("runLoop returned error: %v", err)
			}
			if len(pub.SystemEvents) != 1 {
				t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
			}
			se := pub.SystemEvents[0]
			if se.Event != "SHUTDOWN" {
				t.Errorf("expected SHUTDOWN, got %q", se.Event)
			}
			if se.Reason != tt.reason {
				t.Errorf("expected reason %s, got %q", tt.reason, se.Reason)
			}
			if !se.Retained {
				t.Error("expected Retained=true for SHUTDOWN")
			}
			if !strings.Contains(string(se.RawPayload), `"reason":"`+tt.reason+`"`) {
				t.Errorf("payload missing reason: %s", se.RawPayload)
			}
		})
	}
}

func TestSignalName(t *testing.T) {
	if got := signalName(syscall.SIGHUP); got != "UNKNOWN" {
		t.Errorf("SIGHUP: got %q, want UNKNOWN", got)
	}
}

// --- one-shot command helpers ---

type uartRig struct {
	sensor *sensor.Sensor
	stream *stream.FakeStream
}

func newUARTRig(rx ...byte) *uartRig {
	st := stream.NewFakeStream(rx...)
	s := sensor.NewUART(sensor.UARTConfig{Stream: st, Enable: gpio.NewFakePin()},
		sensor.WithClock(clock.NewFake(epoch)))
	return &uartRig{sensor: s, stream: st}
}

// respondSelfCheck scripts a valid self-check reply.
func (r *uartRig) respondSelfCheck(mode sensor.CalibrationMode, sens sensor.SensitivityLevel) {
	res := sensor.NewSelfCheckResult(false, mode, 1, sens)
	r.stream.Responses[0x34] = []byte{res.Value, res.Pad}
}

func TestDetectLoop(t *testing.T) {
	s := levelSensor([]gpio.Level{gpio.High, gpio.Low, gpio.High})
	var out bytes.Buffer

	if err := detectLoop(s, &out, 3); err != nil {
		t.Fatalf("detectLoop: %v", err)
	}
	if got, want := out.String(), "WET\nDRY\nWET\n"; got != want {
		t.Errorf("output: got %q, want %q", got, want)
	}
}

func TestDetectLoopReadError(t *testing.T) {
	pin := gpio.NewFakePin(gpio.Low)
	pin.ReadError = errors.New("line gone")
	s := sensor.NewLevel(sensor.LevelConfig{Out: pin}, sensor.WithClock(clock.NewFake(epoch)))

	if err := detectLoop(s, &bytes.Buffer{}, 1); err == nil {
		t.Fatal("expected error")
	}
}

func TestPrintSelfCheck(t *testing.T) {
	r := newUARTRig()
	r.respondSelfCheck(sensor.CalibrationLowerAndUpper, 3)
	var out bytes.Buffer

	if err := printSelfCheck(r.sensor, &out); err != nil {
		t.Fatalf("printSelfCheck: %v", err)
	}
	for _, want := range []string{
		"Detected mode: uart",
		"Channels: 1",
		"Sensitivity: 3",
		"Calibration mode: 1 (Up and down water level calibration mode)",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestPrintSelfCheckNoReply(t *testing.T) {
	r := newUARTRig()
	if err := printSelfCheck(r.sensor, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error when the sensor does not reply")
	}
}

func TestCalibrate(t *testing.T) {
	tests := []struct {
		name string
		mode sensor.CalibrationMode
		cmd  byte
		ack  byte
	}{
		{"lower", sensor.CalibrationLower, 0x25, 0x52},
		{"upper", sensor.CalibrationLowerAndUpper, 0x8A, 0xA8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newUARTRig()
			r.stream.Responses[tt.cmd] = []byte{tt.ack}
			var out bytes.Buffer

			if err := calibrate(r.sensor, &out, tt.mode); err != nil {
				t.Fatalf("calibrate: %v", err)
			}
			if !strings.Contains(out.String(), "Calibration complete") {
				t.Errorf("output: %q", out.String())
			}
			w, err := r.stream.LastWrite()
			if err != nil || len(w) != 1 || w[0] != tt.cmd {
				t.Errorf("command written: got %X, want %X", w, tt.cmd)
			}
		})
	}
}

func TestCalibrateNoAck(t *testing.T) {
	r := newUARTRig()
	err := calibrate(r.sensor, &bytes.Buffer{}, sensor.CalibrationLower)
	if err == nil || !strings.Contains(err.Error(), "acknowledge") {
		t.Fatalf("expected acknowledgment error, got %v", err)
	}
}

func TestSensitivityShow(t *testing.T) {
	r := newUARTRig()
	r.respondSelfCheck(sensor.CalibrationLower, 4)
	var out bytes.Buffer

	if err := sensitivity(r.sensor, &out, nil); err != nil {
		t.Fatalf("sensitivity: %v", err)
	}
	if got := out.String(); got != "Sensitivity: 4\n" {
		t.Errorf("output: got %q", got)
	}
	for _, w := range r.stream.Written {
		if w[0] == 0x43 {
			t.Error("showing sensitivity must not send a set frame")
		}
	}
}

func TestSensitivitySet(t *testing.T) {
	r := newUARTRig()
	r.stream.Responses[0x43] = []byte{0x53}
	r.respondSelfCheck(sensor.CalibrationLower, 6)
	level := sensor.SensitivityLevel(6)
	var out bytes.Buffer

	if err := sensitivity(r.sensor, &out, &level); err != nil {
		t.Fatalf("sensitivity: %v", err)
	}
	if !strings.Contains(out.String(), "Sensitivity set to 6") {
		t.Errorf("output missing confirmation: %q", out.String())
	}
	frame := sensor.SensitivityFrame(6)
	if !bytes.Equal(r.stream.Written[0], frame[:]) {
		t.Errorf("frame: got %X, want %X", r.stream.Written[0], frame)
	}
}

func TestSensitivityLevelMode(t *testing.T) {
	s := levelSensor(nil)
	err := sensitivity(s, &bytes.Buffer{}, nil)
	if !errors.Is(err, sensor.ErrWrongMode) {
		t.Errorf("got %v, want ErrWrongMode", err)
	}
}

func TestParseSensitivity(t *testing.T) {
	tests := []struct {
		arg     string
		want    sensor.SensitivityLevel
		wantErr bool
	}{
		{"0", 0, false},
		{"7", 7, false},
		{"8", 0, true},
		{"-1", 0, true},
		{"high", 0, true},
	}
	for _, tt := range tests {
		got, err := parseSensitivity(tt.arg)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v, wantErr %v", tt.arg, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %d, want %d", tt.arg, got, tt.want)
		}
	}
}

func TestBeginSensorWarnsUncalibrated(t *testing.T) {
	r := newUARTRig(0xAA)
	var out bytes.Buffer

	if err := beginSensor(r.sensor, &out); err != nil {
		t.Fatalf("beginSensor: %v", err)
	}
	if !strings.Contains(out.String(), "never been calibrated") {
		t.Errorf("expected calibration warning, got %q", out.String())
	}
}

func TestBeginSensorNoStream(t *testing.T) {
	s := sensor.NewUART(sensor.UARTConfig{})
	if err := beginSensor(s, &bytes.Buffer{}); !errors.Is(err, sensor.ErrNoStream) {
		t.Errorf("got %v, want ErrNoStream", err)
	}
}

// --- connection and wiring ---

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		want    sensor.Mode
		wantErr bool
	}{
		{"uart", sensor.ModeUART, false},
		{"UART", sensor.ModeUART, false},
		{"level", sensor.ModeLevel, false},
		{"i2c", 0, true},
	}
	for _, tt := range tests {
		got, err := parseMode(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("%q: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPinWithoutChip(t *testing.T) {
	if p := pin(nil, 22); p != nil {
		t.Errorf("expected nil pin without a chip, got %v", p)
	}
}

func TestOpenDeviceUARTNeedsStream(t *testing.T) {
	saveFlags(t)
	modeName, portName, wsURL, pinEn = "uart", "", "", -1

	d, err := openDevice()
	if err == nil {
		d.Close()
		t.Fatal("expected error without --port or --url")
	}
	if !strings.Contains(err.Error(), "--port or --url") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOpenDeviceBadMode(t *testing.T) {
	saveFlags(t)
	modeName = "analog"

	if _, err := openDevice(); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

// saveFlags restores the connection flags after the test.
func saveFlags(t *testing.T) {
	t.Helper()
	m, p, u, en := modeName, portName, wsURL, pinEn
	t.Cleanup(func() { modeName, portName, wsURL, pinEn = m, p, u, en })
}

type fakeCloser struct {
	name  string
	order *[]string
	err   error
}

func (c fakeCloser) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func TestDeviceCloseReverseOrder(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	d := &device{}
	d.closers = append(d.closers,
		fakeCloser{name: "stream", order: &order},
		fakeCloser{name: "chip", order: &order, err: boom},
	)

	err := d.Close()
	if !errors.Is(err, boom) {
		t.Errorf("close error: got %v, want boom", err)
	}
	if strings.Join(order, ",") != "chip,stream" {
		t.Errorf("close order: got %v, want chip,stream", order)
	}
}

func TestGetPasswordFromEnv(t *testing.T) {
	t.Setenv(passwordEnv, "s3cret")
	pw, err := getPassword()
	if err != nil {
		t.Fatalf("getPassword: %v", err)
	}
	if pw != "s3cret" {
		t.Errorf("got %q, want s3cret", pw)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger("warn", &buf)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn message missing")
	}
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	if _, err := newLogger("loud", &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestCommandTree(t *testing.T) {
	want := map[string]bool{"monitor": false, "detect": false, "selfcheck": false, "calibrate": false, "sensitivity": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestFlagDefaults(t *testing.T) {
	tests := []struct {
		flag string
		get  func() string
		want string
	}{
		{"mode", func() string { return rootCmd.PersistentFlags().Lookup("mode").DefValue }, "uart"},
		{"baud", func() string { return rootCmd.PersistentFlags().Lookup("baud").DefValue }, "9600"},
		{"pin-out", func() string { return rootCmd.PersistentFlags().Lookup("pin-out").DefValue }, "22"},
		{"pin-en", func() string { return rootCmd.PersistentFlags().Lookup("pin-en").DefValue }, "27"},
		{"pin-test", func() string { return rootCmd.PersistentFlags().Lookup("pin-test").DefValue }, "17"},
		{"poll", func() string { return monitorCmd.Flags().Lookup("poll").DefValue }, "500ms"},
		{"debounce", func() string { return monitorCmd.Flags().Lookup("debounce").DefValue }, "1s"},
		{"heartbeat", func() string { return monitorCmd.Flags().Lookup("heartbeat").DefValue }, "15m0s"},
		{"http", func() string { return monitorCmd.Flags().Lookup("http").DefValue }, ":80"},
	}
	for _, tt := range tests {
		if got := tt.get(); got != tt.want {
			t.Errorf("--%s default: got %q, want %q", tt.flag, got, tt.want)
		}
	}
}

func TestSensitivityArgsLimit(t *testing.T) {
	if err := sensitivityCmd.Args(sensitivityCmd, []string{"1", "2"}); err == nil {
		t.Error("expected error for two arguments")
	}
}
