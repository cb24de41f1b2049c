package stream

import "errors"

// FakeStream is a test double with a scripted receive buffer.
type FakeStream struct {
	// RX holds the bytes the sensor has "sent" and not yet been read.
	RX []byte

	// Responses maps the first byte of a write to the bytes appended to RX
	// when that write happens.
	Responses map[byte][]byte

	// Written records every write, in order.
	Written [][]byte

	// Reads counts calls to ReadByte that returned a byte.
	Reads int

	// WriteError, if set, will be returned by Write.
	WriteError error

	// ReadError, if set, will be returned by ReadByte and Available.
	ReadError error
}

// NewFakeStream creates a FakeStream with rx already buffered.
func NewFakeStream(rx ...byte) *FakeStream {
	return &FakeStream{RX: rx, Responses: map[byte][]byte{}}
}

// Push appends bytes to the receive buffer.
func (f *FakeStream) Push(b ...byte) {
	f.RX = append(f.RX, b...)
}

// Write records p and queues any scripted response.
func (f *FakeStream) Write(p []byte) (int, error) {
	if f.WriteError != nil {
		return 0, f.WriteError
	}
	f.Written = append(f.Written, append([]byte(nil), p...))
	if len(p) > 0 {
		if rsp, ok := f.Responses[p[0]]; ok {
			f.Push(rsp...)
		}
	}
	return len(p), nil
}

// ReadByte pops the oldest byte from RX.
func (f *FakeStream) ReadByte() (byte, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.RX) == 0 {
		return 0, ErrNoData
	}
	c := f.RX[0]
	f.RX = f.RX[1:]
	f.Reads++
	return c, nil
}

// Available returns len(RX).
func (f *FakeStream) Available() (int, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return len(f.RX), nil
}

// LastWrite returns the most recent write, or an error if nothing was written.
func (f *FakeStream) LastWrite() ([]byte, error) {
	if len(f.Written) == 0 {
		return nil, errors.New("nothing written")
	}
	return f.Written[len(f.Written)-1], nil
}
