//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Chip is not available on non-Linux platforms.
type Chip struct{}

// OpenChip returns an error on non-Linux platforms.
func OpenChip(name string) (*Chip, error) {
	return nil, errUnsupported
}

// Pin returns a line whose operations all fail.
func (c *Chip) Pin(offset int) *Line {
	return &Line{}
}

// Close is a no-op on non-Linux platforms.
func (c *Chip) Close() error {
	return nil
}

// Line is not implemented on non-Linux platforms.
type Line struct{}

// SetMode is not implemented on non-Linux platforms.
func (l *Line) SetMode(dir Direction) error { return errUnsupported }

// Write is not implemented on non-Linux platforms.
func (l *Line) Write(level Level) error { return errUnsupported }

// Read is not implemented on non-Linux platforms.
func (l *Line) Read() (Level, error) { return Low, errUnsupported }
