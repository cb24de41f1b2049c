package gpio

import "errors"

// FakePin is a test double that returns scripted levels and records writes.
type FakePin struct {
	// Samples contains scripted levels to return.
	// Each call to Read() consumes the next sample.
	Samples []Level

	// Signal, if set, is called on every Read() instead of consuming Samples.
	// Tests use it to derive the level from a simulated clock.
	Signal func() Level

	// OnWrite, if set, is called after every successful Write().
	OnWrite func(Level)

	// Writes records every level written, in order.
	Writes []Level

	// Mode is the most recently configured direction.
	Mode Direction

	// ModeSet tracks if SetMode was called.
	ModeSet bool

	// Reads counts calls to Read().
	Reads int

	// ReadError, if set, will be returned by Read().
	ReadError error

	// WriteError, if set, will be returned by Write().
	WriteError error

	// index tracks current position in Samples
	index int
}

// NewFakePin creates a FakePin with the given samples.
func NewFakePin(samples ...Level) *FakePin {
	return &FakePin{Samples: samples}
}

// SetMode records the direction.
func (f *FakePin) SetMode(dir Direction) error {
	f.Mode = dir
	f.ModeSet = true
	return nil
}

// Write records the level.
func (f *FakePin) Write(level Level) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, level)
	if f.OnWrite != nil {
		f.OnWrite(level)
	}
	return nil
}

// Read returns the next scripted level.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakePin) Read() (Level, error) {
	f.Reads++
	if f.ReadError != nil {
		return Low, f.ReadError
	}
	if f.Signal != nil {
		return f.Signal(), nil
	}
	if len(f.Samples) == 0 {
		return Low, errors.New("no samples configured")
	}
	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample, nil
}

// LastWrite returns the most recently written level and whether any write happened.
func (f *FakePin) LastWrite() (Level, bool) {
	if len(f.Writes) == 0 {
		return Low, false
	}
	return f.Writes[len(f.Writes)-1], true
}

// Reset rewinds the samples and clears recorded writes.
func (f *FakePin) Reset() {
	f.index = 0
	f.Reads = 0
	f.Writes = nil
	f.ModeSet = false
}
