// Package gpio provides digital pin access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Level is the electrical level of a digital line.
// Low and High are 0 and 1 so that two levels can be summed to detect a toggle.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

// Direction selects whether a line is read or driven.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// Pin is a single digital line.
type Pin interface {
	// SetMode configures the line as input or output.
	SetMode(dir Direction) error

	// Write drives an output line.
	Write(level Level) error

	// Read returns the current level of the line.
	Read() (Level, error)
}

// Default pin definitions (BCM numbering) from the sensor's Raspberry Pi
// wiring table.
const (
	DefaultPinOut  = 22 // sensor OUT
	DefaultPinEn   = 27 // sensor EN
	DefaultPinTest = 17 // sensor TEST
)

// DefaultChip is the GPIO chip the Raspberry Pi header lines live on.
const DefaultChip = "gpiochip0"
