// Package sensor drives an SCW8916B-class non-contact liquid level sensor,
// which detects water through a container wall.
//
// A Sensor runs in one of two modes fixed at construction. In level mode
// the OUT pin reports water directly and self-check and calibration are
// driven through the TEST and EN pins. In UART mode the sensor is polled
// over a byte stream with single-byte commands and checksummed replies.
//
// Every operation blocks for fixed protocol windows (100 ms to 8 s) using
// the configured Clock. A Sensor is not safe for concurrent use.
package sensor

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/sweeney/level-sensor/internal/clock"
	"github.com/sweeney/level-sensor/internal/gpio"
	"github.com/sweeney/level-sensor/internal/stream"
)

// Mode is the detection mode of a Sensor.
type Mode int

const (
	// ModeLevel reads water presence from the OUT pin.
	ModeLevel Mode = iota
	// ModeUART polls the sensor over a byte stream.
	ModeUART
)

func (m Mode) String() string {
	if m == ModeUART {
		return "uart"
	}
	return "level"
}

// Begin result codes.
const (
	BeginOK           = 0
	BeginFailed       = -1
	BeginUncalibrated = int(sentinelUncalibrated)
)

// Configuration errors. They are returned together with the operation's
// failure value (BeginFailed or false).
var (
	ErrNoStream    = errors.New("sensor: stream not configured")
	ErrNoSignalPin = errors.New("sensor: OUT pin not configured")
	ErrNoEnablePin = errors.New("sensor: EN pin not configured")
	ErrNoTestPin   = errors.New("sensor: TEST pin not configured")
	ErrWrongMode   = errors.New("sensor: operation not supported in this mode")
)

// LevelConfig wires a sensor in level mode. Only Out is required for
// detection; self-check needs Enable, Test and Stream (the sensor emits a
// short UART burst during self-check in either mode) and calibration needs
// Enable and Test. Leave unused fields nil.
type LevelConfig struct {
	Out    gpio.Pin
	Enable gpio.Pin
	Test   gpio.Pin
	Stream stream.ByteStream
}

// UARTConfig wires a sensor in UART mode. Self-check, calibration and
// sensitivity changes need Enable.
type UARTConfig struct {
	Stream stream.ByteStream
	Enable gpio.Pin
}

// Option customizes a Sensor.
type Option func(*Sensor)

// WithClock sets the time source used for every wait. Defaults to the wall clock.
func WithClock(c clock.Clock) Option {
	return func(s *Sensor) { s.clock = c }
}

// WithLogger sets the debug logger. Defaults to a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Sensor) { s.log = l }
}

// Sensor is a liquid level sensor in a fixed mode. The pins and stream
// are borrowed: the caller keeps ownership and must keep them valid.
type Sensor struct {
	mode  Mode
	level LevelConfig
	uart  UARTConfig

	clock clock.Clock
	log   zerolog.Logger
	rslt  SelfCheckResult
}

// NewLevel creates a sensor in level mode.
func NewLevel(cfg LevelConfig, opts ...Option) *Sensor {
	s := newSensor(ModeLevel, opts)
	s.level = cfg
	return s
}

// NewUART creates a sensor in UART mode.
func NewUART(cfg UARTConfig, opts ...Option) *Sensor {
	s := newSensor(ModeUART, opts)
	s.uart = cfg
	return s
}

func newSensor(mode Mode, opts []Option) *Sensor {
	s := &Sensor{
		mode:  mode,
		clock: clock.Real{},
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the detection mode fixed at construction.
func (s *Sensor) Mode() Mode {
	return s.mode
}

// Begin waits for the sensor to become ready.
//
// It returns BeginOK once the sensor is ready or the 8 s window has passed,
// BeginUncalibrated if a UART sensor reports it has never been calibrated,
// and BeginFailed with a configuration error if the stream (UART) or OUT pin
// (level) is missing.
func (s *Sensor) Begin() (int, error) {
	if s.mode == ModeUART {
		return s.beginUART()
	}
	return s.beginLevel()
}

// DetectWater reports whether channel 1 sees water. A corrupt UART frame or
// an empty buffer reads as no water.
func (s *Sensor) DetectWater() (bool, error) {
	if s.mode == ModeUART {
		return s.detectWaterUART()
	}
	return s.detectWaterLevel()
}

// SelfCheck asks the sensor for its configuration and caches the result
// for Sensitivity and CalibrationMode. On failure the previous result is kept.
func (s *Sensor) SelfCheck() (bool, error) {
	if s.mode == ModeUART {
		return s.selfCheckUART()
	}
	return s.selfCheckLevel()
}

// Calibration calibrates the lower water level. The detection area must be
// free of water and untouched while it runs.
func (s *Sensor) Calibration() (bool, error) {
	return s.CalibrateLevels(CalibrationLower)
}

// CalibrateLevels runs a calibration for the given mode. For
// CalibrationLowerAndUpper the detection area must be covered by water.
func (s *Sensor) CalibrateLevels(mode CalibrationMode) (bool, error) {
	if s.mode == ModeUART {
		cmd := cmdCalibrateLower
		if mode == CalibrationLowerAndUpper {
			cmd = cmdCalibrateUpper
		}
		ok, err := s.calibrateUART(cmd)
		if err != nil {
			return false, err
		}
		if err := s.Flush(); err != nil {
			return false, err
		}
		return ok, nil
	}

	calibTime := calibTimeLower
	if mode == CalibrationLowerAndUpper {
		calibTime = calibTimeUpper
	}
	return s.calibrateLevel(calibTime)
}

// CheckCalibrationState watches the sensor after a calibration and reports
// whether it has settled. A quiet signal for one second counts as complete.
func (s *Sensor) CheckCalibrationState() (bool, error) {
	if s.mode == ModeUART {
		return s.checkCalibrationStateUART()
	}
	return s.checkCalibrationStateLevel()
}

// SetSensitivityLevel changes the detection threshold. UART mode only;
// in level mode it returns ErrWrongMode.
func (s *Sensor) SetSensitivityLevel(level SensitivityLevel) (bool, error) {
	if s.mode != ModeUART {
		return false, ErrWrongMode
	}
	return s.setSensitivityUART(level)
}

// Sensitivity returns the cached sensitivity level (0-7), or Invalid if no
// valid self-check result is held.
func (s *Sensor) Sensitivity() uint8 {
	if !s.rslt.Valid() {
		return Invalid
	}
	return s.rslt.Sensitivity()
}

// CalibrationMode returns the cached calibration mode (CalibrationLower or
// CalibrationLowerAndUpper), or Invalid if no valid self-check result is held.
func (s *Sensor) CalibrationMode() uint8 {
	if !s.rslt.Valid() {
		return Invalid
	}
	return s.rslt.CalibrationFlag()
}

// SelfCheckResult returns the cached self-check reply as received.
func (s *Sensor) SelfCheckResult() SelfCheckResult {
	return s.rslt
}

// Flush discards everything in the receive buffer. No-op without a stream.
func (s *Sensor) Flush() error {
	st := s.stream()
	if st == nil {
		return nil
	}
	return s.drain(st)
}

func (s *Sensor) stream() stream.ByteStream {
	if s.mode == ModeUART {
		return s.uart.Stream
	}
	return s.level.Stream
}
