package stream

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// pollTimeout bounds how long Available and ReadByte wait on the port
// for new bytes.
const pollTimeout = 10 * time.Millisecond

// Serial is a ByteStream over a local serial port.
type Serial struct {
	port    serial.Port
	name    string
	buf     rxBuffer
	scratch []byte
}

// OpenSerial opens a serial port at the given baud rate, 8N1.
func OpenSerial(name string, baud int) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(pollTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}

	return &Serial{port: port, name: name, scratch: make([]byte, 64)}, nil
}

// Write sends p to the port.
func (s *Serial) Write(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("write serial %s: %w", s.name, err)
	}
	return n, nil
}

// ReadByte returns the oldest received byte.
func (s *Serial) ReadByte() (byte, error) {
	if s.buf.len() == 0 {
		if err := s.fill(); err != nil {
			return 0, err
		}
	}
	c, ok := s.buf.pop()
	if !ok {
		return 0, ErrNoData
	}
	return c, nil
}

// Available drains whatever the port has received and returns the buffered count.
func (s *Serial) Available() (int, error) {
	if err := s.fill(); err != nil {
		return s.buf.len(), err
	}
	return s.buf.len(), nil
}

// Close closes the port.
func (s *Serial) Close() error {
	return s.port.Close()
}

// fill reads from the port until a read times out with nothing new.
func (s *Serial) fill() error {
	for {
		n, err := s.port.Read(s.scratch)
		if err != nil {
			return fmt.Errorf("read serial %s: %w", s.name, err)
		}
		if n == 0 {
			return nil
		}
		s.buf.append(s.scratch[:n])
		if n < len(s.scratch) {
			return nil
		}
	}
}
