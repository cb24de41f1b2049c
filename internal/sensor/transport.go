package sensor

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/level-sensor/internal/gpio"
	"github.com/sweeney/level-sensor/internal/stream"
)

// enableSensor power-cycles the sensor through its EN pin: low for 200 ms,
// receive buffer drained, then high and 1 s for the sensor to boot.
// No-op without an EN pin.
func (s *Sensor) enableSensor(en gpio.Pin, st stream.ByteStream) error {
	if en == nil {
		return nil
	}
	if err := en.SetMode(gpio.Output); err != nil {
		return fmt.Errorf("configure EN pin: %w", err)
	}
	if err := en.Write(gpio.Low); err != nil {
		return fmt.Errorf("disable sensor: %w", err)
	}
	s.clock.Sleep(enableLowTime)
	if st != nil {
		if err := s.drain(st); err != nil {
			return err
		}
	}
	if err := en.Write(gpio.High); err != nil {
		return fmt.Errorf("enable sensor: %w", err)
	}
	s.clock.Sleep(bootTime)
	return nil
}

// drain reads until the stream reports nothing available.
func (s *Sensor) drain(st stream.ByteStream) error {
	for {
		n, err := st.Available()
		if err != nil {
			return fmt.Errorf("flush stream: %w", err)
		}
		if n == 0 {
			return nil
		}
		for i := 0; i < n; i++ {
			if _, _, err := s.readByte(st); err != nil {
				return err
			}
		}
	}
}

func (s *Sensor) writeData(st stream.ByteStream, data []byte) error {
	if _, err := st.Write(data); err != nil {
		return fmt.Errorf("write command 0x%02X: %w", data[0], err)
	}
	return nil
}

// readByte returns the next byte; ok is false when nothing is buffered.
func (s *Sensor) readByte(st stream.ByteStream) (b byte, ok bool, err error) {
	b, err = st.ReadByte()
	if errors.Is(err, stream.ErrNoData) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read stream: %w", err)
	}
	return b, true, nil
}

// poll reads one byte, reporting an empty buffer as idleByte.
func (s *Sensor) poll(st stream.ByteStream) (byte, error) {
	b, ok, err := s.readByte(st)
	if err != nil {
		return 0, err
	}
	if !ok {
		return idleByte, nil
	}
	return b, nil
}

// readData fills buf with the most recent len(buf) bytes, discarding any
// older excess first. It returns the number of bytes actually read.
func (s *Sensor) readData(st stream.ByteStream, buf []byte) (int, error) {
	remain, err := st.Available()
	if err != nil {
		return 0, fmt.Errorf("read stream: %w", err)
	}
	for ; remain > len(buf); remain-- {
		if _, _, err := s.readByte(st); err != nil {
			return 0, err
		}
	}

	n := 0
	for i := range buf {
		b, ok, err := s.readByte(st)
		if err != nil {
			return n, err
		}
		if !ok {
			buf[i] = idleByte
			continue
		}
		buf[i] = b
		n++
	}
	s.log.Debug().Int("requested", len(buf)).Int("read", n).Msg("read data")
	return n, nil
}

// scanSelfCheck slides a two-byte window over the bytes currently buffered
// and caches the first pair summing to 0xFF. gap is slept after each read.
func (s *Sensor) scanSelfCheck(st stream.ByteStream, gap time.Duration) (bool, error) {
	remain, err := st.Available()
	if err != nil {
		return false, fmt.Errorf("read stream: %w", err)
	}
	if remain < 2 {
		s.log.Debug().Int("available", remain).Msg("self-check: short reply")
		return false, nil
	}

	first, _, err := s.readByte(st)
	if err != nil {
		return false, err
	}
	for i := 0; i < remain-1; i++ {
		next, ok, err := s.readByte(st)
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		if gap > 0 {
			s.clock.Sleep(gap)
		}
		r := SelfCheckResult{Value: first, Pad: next}
		if r.Valid() {
			s.rslt = r
			s.log.Debug().
				Hex("frame", []byte{r.Value, r.Pad}).
				Stringer("detected_mode", r.DetectedMode()).
				Uint8("sensitivity", r.Sensitivity()).
				Uint8("calibration", r.CalibrationFlag()).
				Msg("self-check result cached")
			return true, nil
		}
		first = next
	}
	s.log.Debug().Int("scanned", remain).Msg("self-check: no valid pair")
	return false, nil
}
