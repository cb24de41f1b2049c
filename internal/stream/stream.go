// Package stream provides the byte-stream transports the sensor's UART is
// reached through: a local serial port, a websocket serial bridge, and a
// fake for tests.
package stream

import "errors"

// ErrNoData is returned by ReadByte when no byte is buffered.
var ErrNoData = errors.New("stream: no data available")

// ErrConnectionClosed is returned once a remote transport has gone away.
var ErrConnectionClosed = errors.New("stream: connection closed")

// ByteStream is a polled, non-blocking byte transport.
type ByteStream interface {
	// Write sends raw bytes.
	Write(p []byte) (int, error)

	// ReadByte returns the oldest buffered byte, or ErrNoData if none is buffered.
	ReadByte() (byte, error)

	// Available returns the number of bytes that can be read without blocking.
	Available() (int, error)
}

// maxBuffered bounds the receive buffer of the real transports.
// When exceeded the oldest bytes are dropped; the sensor protocol
// always treats the newest bytes as authoritative.
const maxBuffered = 1024

// rxBuffer is a FIFO of received bytes.
// Not safe for concurrent use; callers must synchronize.
type rxBuffer struct {
	data    []byte
	dropped int
}

func (b *rxBuffer) append(p []byte) {
	b.data = append(b.data, p...)
	if over := len(b.data) - maxBuffered; over > 0 {
		b.data = append(b.data[:0], b.data[over:]...)
		b.dropped += over
	}
}

func (b *rxBuffer) pop() (byte, bool) {
	if len(b.data) == 0 {
		return 0, false
	}
	c := b.data[0]
	b.data = b.data[1:]
	return c, true
}

func (b *rxBuffer) len() int {
	return len(b.data)
}
