//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Chip hands out pins from a Linux GPIO character device.
type Chip struct {
	chip *gpiocdev.Chip
	pins []*Line
}

// OpenChip opens the named GPIO chip (e.g. "gpiochip0").
func OpenChip(name string) (*Chip, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &Chip{chip: chip}, nil
}

// Pin returns the line at the given offset (BCM number on a Raspberry Pi).
// The line is requested from the kernel on first use.
func (c *Chip) Pin(offset int) *Line {
	l := &Line{chip: c.chip, offset: offset}
	c.pins = append(c.pins, l)
	return l
}

// Close releases all lines handed out by Pin and the chip itself.
// Lines are reconfigured to input with pull-down (matching Pi boot defaults)
// before closing so the sensor's EN and TEST inputs are not left driven.
func (c *Chip) Close() error {
	var errs []error
	for _, l := range c.pins {
		if err := l.close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// Line is a single GPIO line backed by gpiocdev.
type Line struct {
	chip   *gpiocdev.Chip
	offset int
	line   *gpiocdev.Line
	dir    Direction
}

// SetMode requests or reconfigures the line as input or output.
// Outputs start low.
func (l *Line) SetMode(dir Direction) error {
	if l.line == nil {
		return l.request(dir)
	}
	var err error
	if dir == Output {
		err = l.line.Reconfigure(gpiocdev.AsOutput(0))
	} else {
		err = l.line.Reconfigure(gpiocdev.AsInput)
	}
	if err != nil {
		return fmt.Errorf("reconfigure pin %d as %s: %w", l.offset, dir, err)
	}
	l.dir = dir
	return nil
}

// Write drives the line. An unconfigured line is requested as output first.
func (l *Line) Write(level Level) error {
	if l.line == nil || l.dir != Output {
		if err := l.SetMode(Output); err != nil {
			return err
		}
	}
	if err := l.line.SetValue(int(level)); err != nil {
		return fmt.Errorf("write pin %d: %w", l.offset, err)
	}
	return nil
}

// Read returns the line level. An unconfigured line is requested as input first.
func (l *Line) Read() (Level, error) {
	if l.line == nil {
		if err := l.request(Input); err != nil {
			return Low, err
		}
	}
	v, err := l.line.Value()
	if err != nil {
		return Low, fmt.Errorf("read pin %d: %w", l.offset, err)
	}
	if v != 0 {
		return High, nil
	}
	return Low, nil
}

func (l *Line) request(dir Direction) error {
	var opt gpiocdev.LineReqOption = gpiocdev.AsInput
	if dir == Output {
		opt = gpiocdev.AsOutput(0)
	}
	line, err := l.chip.RequestLine(l.offset, opt)
	if err != nil {
		return fmt.Errorf("request pin %d: %w", l.offset, err)
	}
	l.line = line
	l.dir = dir
	return nil
}

func (l *Line) close() error {
	if l.line == nil {
		return nil
	}
	var errs []error
	if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", l.offset, err))
	}
	if err := l.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", l.offset, err))
	}
	l.line = nil
	if len(errs) > 0 {
		return fmt.Errorf("%v", errs)
	}
	return nil
}
