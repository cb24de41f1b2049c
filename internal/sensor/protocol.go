package sensor

import "time"

// UART command and response bytes.
const (
	cmdSelfCheck         byte = 0x34
	cmdCalibrateLower    byte = 0x25
	cmdCalibrateUpper    byte = 0x8A
	cmdSetSensitivity    byte = 0x43
	ackSetSensitivity    byte = 0x53
	sentinelUncalibrated byte = 0xAA
	sensitivityFiller    byte = 0x07

	// idleByte stands in for a read that found nothing buffered. It is
	// neither a valid water frame nor the sentinel.
	idleByte byte = 0xFF
)

// Protocol timing windows.
const (
	pollInterval       = 100 * time.Millisecond
	beginTimeout       = 8000 * time.Millisecond
	calibStateTimeout  = 1000 * time.Millisecond
	sensitivityTimeout = 2000 * time.Millisecond
	confirmSamples     = 5

	enableLowTime = 200 * time.Millisecond
	bootTime      = 1000 * time.Millisecond
	responseWait  = 1000 * time.Millisecond

	selfCheckTestLow  = 500 * time.Millisecond
	selfCheckSettle   = 550 * time.Millisecond
	selfCheckReadGap  = 6 * time.Millisecond
	calibTimeLower    = 100 * time.Millisecond
	calibTimeUpper    = 200 * time.Millisecond
	calibSampleGap    = 5 * time.Millisecond
	calibWindow       = 1000 * time.Millisecond
	calibTolerance    = 10 * time.Millisecond
	calibMinHighPulse = 500 * time.Millisecond
)

// Invalid is returned by the cached-result readers when no valid
// self-check result is held.
const Invalid uint8 = 0xFF

// CalibrationMode selects which water levels a calibration covers.
type CalibrationMode uint8

const (
	// CalibrationLower calibrates only the lower (empty) water level.
	CalibrationLower CalibrationMode = 0
	// CalibrationLowerAndUpper calibrates the lower and upper water levels.
	CalibrationLowerAndUpper CalibrationMode = 1
)

// CalibrationModeDescription returns a human-readable description of a
// calibration mode as reported by CalibrationMode.
func CalibrationModeDescription(mode uint8) string {
	switch CalibrationMode(mode) {
	case CalibrationLower:
		return "Only calibrate the lower water level mode"
	case CalibrationLowerAndUpper:
		return "Up and down water level calibration mode"
	default:
		return "Error calibration mode"
	}
}

// SensitivityLevel is the detection threshold, 0 (most sensitive) to 7.
type SensitivityLevel uint8

// MaxSensitivityLevel is the least sensitive level.
const MaxSensitivityLevel SensitivityLevel = 7

// Checksum is the 8-bit additive sum of data.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// SensitivityFrame builds the set-sensitivity command for level.
// Only the low three bits of level are used.
func SensitivityFrame(level SensitivityLevel) [6]byte {
	frame := [6]byte{
		cmdSetSensitivity,
		byte(level) & 0x07,
		sensitivityFiller,
		sensitivityFiller,
		sensitivityFiller,
	}
	frame[5] = Checksum(frame[1:5])
	return frame
}

// nibbleSwap exchanges the high and low nibbles. Calibration commands are
// acknowledged with their nibble-swapped value.
func nibbleSwap(b byte) byte {
	return b>>4 | b<<4
}

// SelfCheckResult is the two-byte self-check reply.
//
// Value packs, from the least significant bit:
//
//	bit 0     detected mode (1 = level, 0 = UART)
//	bit 1     calibration flag (0 = lower only, 1 = lower and upper)
//	bits 2-4  channel count
//	bits 5-7  sensitivity of channel 1
//
// Pad is the one's complement of Value.
type SelfCheckResult struct {
	Value byte
	Pad   byte
}

// NewSelfCheckResult packs the fields into a valid result.
func NewSelfCheckResult(levelMode bool, mode CalibrationMode, channels uint8, sensitivity SensitivityLevel) SelfCheckResult {
	var v byte
	if levelMode {
		v |= 0x01
	}
	v |= byte(mode&0x01) << 1
	v |= (channels & 0x07) << 2
	v |= byte(sensitivity&0x07) << 5
	return SelfCheckResult{Value: v, Pad: ^v}
}

// Valid reports whether Value and Pad sum to 0xFF.
func (r SelfCheckResult) Valid() bool {
	return int(r.Value)+int(r.Pad) == 0xFF
}

// DetectedMode is the detection mode the sensor firmware reports.
func (r SelfCheckResult) DetectedMode() Mode {
	if r.Value&0x01 != 0 {
		return ModeLevel
	}
	return ModeUART
}

// CalibrationFlag returns 0 (lower only) or 1 (lower and upper).
func (r SelfCheckResult) CalibrationFlag() uint8 {
	return (r.Value >> 1) & 0x01
}

// Channels returns the number of active channels.
func (r SelfCheckResult) Channels() uint8 {
	return (r.Value >> 2) & 0x07
}

// Sensitivity returns the sensitivity level of channel 1.
func (r SelfCheckResult) Sensitivity() uint8 {
	return (r.Value >> 5) & 0x07
}

// WaterStatus is a sensor-initiated water frame: the low nibble holds one
// bit per channel (channel 1 in bit 0), the high nibble its complement.
type WaterStatus byte

// NewWaterStatus builds a valid frame from the four channel bits.
func NewWaterStatus(channels uint8) WaterStatus {
	c := channels & 0x0F
	return WaterStatus(c | (0x0F-c)<<4)
}

// Valid reports whether the two nibbles sum to 0x0F.
func (w WaterStatus) Valid() bool {
	return w.Channels()+w.pad() == 0x0F
}

// Channels returns the four channel bits.
func (w WaterStatus) Channels() uint8 {
	return uint8(w) & 0x0F
}

// Channel reports whether channel n (1-4) sees water.
func (w WaterStatus) Channel(n int) bool {
	if n < 1 || n > 4 {
		return false
	}
	return w.Channels()&(1<<(n-1)) != 0
}

func (w WaterStatus) pad() uint8 {
	return uint8(w) >> 4
}
