package sensor

import "time"

// beginUART polls the stream for the uncalibrated sentinel. Any valid
// water frame, or silence for the whole window, means the sensor is ready.
func (s *Sensor) beginUART() (int, error) {
	st := s.uart.Stream
	if st == nil {
		s.log.Debug().Msg("begin: no stream configured")
		return BeginFailed, ErrNoStream
	}

	var elapsed time.Duration
	for {
		b, err := s.poll(st)
		if err != nil {
			return BeginFailed, err
		}
		if b == sentinelUncalibrated {
			s.log.Debug().Msg("begin: sensor reports never calibrated")
			return BeginUncalibrated, nil
		}
		s.clock.Sleep(pollInterval)
		elapsed += pollInterval
		if WaterStatus(b).Valid() {
			return BeginOK, nil
		}
		if elapsed > beginTimeout {
			s.log.Debug().Dur("elapsed", elapsed).Msg("begin: no handshake, assuming ready")
			return BeginOK, nil
		}
	}
}

func (s *Sensor) detectWaterUART() (bool, error) {
	st := s.uart.Stream
	if st == nil {
		return false, ErrNoStream
	}

	var frame [1]byte
	n, err := s.readData(st, frame[:])
	if err != nil {
		return false, err
	}
	status := WaterStatus(frame[0])
	water := false
	if n == 1 && status.Valid() {
		water = status.Channel(1)
	} else {
		s.log.Debug().Hex("frame", frame[:]).Int("read", n).Msg("detect: discarding frame")
	}

	if err := s.drain(st); err != nil {
		return false, err
	}
	s.clock.Sleep(pollInterval)
	return water, nil
}

func (s *Sensor) selfCheckUART() (bool, error) {
	en, st := s.uart.Enable, s.uart.Stream
	if en == nil {
		return false, ErrNoEnablePin
	}
	if st == nil {
		return false, ErrNoStream
	}

	if err := s.enableSensor(en, st); err != nil {
		return false, err
	}
	if err := s.writeData(st, []byte{cmdSelfCheck}); err != nil {
		return false, err
	}
	s.clock.Sleep(responseWait)
	return s.scanSelfCheck(st, 0)
}

// calibrateUART sends a calibration command and looks for its
// nibble-swapped acknowledgment among the bytes received within 1 s.
func (s *Sensor) calibrateUART(cmd byte) (bool, error) {
	en, st := s.uart.Enable, s.uart.Stream
	if en == nil {
		return false, ErrNoEnablePin
	}
	if st == nil {
		return false, ErrNoStream
	}

	if err := s.enableSensor(en, st); err != nil {
		return false, err
	}
	if err := s.writeData(st, []byte{cmd}); err != nil {
		return false, err
	}
	ack := nibbleSwap(cmd)
	s.clock.Sleep(responseWait)

	remain, err := st.Available()
	if err != nil {
		return false, err
	}
	for i := 0; i < remain; i++ {
		b, ok, err := s.readByte(st)
		if err != nil {
			return false, err
		}
		if ok && b == ack {
			return true, nil
		}
	}
	s.log.Debug().Hex("command", []byte{cmd}).Msg("calibrate: no acknowledgment")
	return false, nil
}

func (s *Sensor) setSensitivityUART(level SensitivityLevel) (bool, error) {
	st := s.uart.Stream
	if st == nil {
		return false, ErrNoStream
	}

	frame := SensitivityFrame(level)
	if err := s.enableSensor(s.uart.Enable, st); err != nil {
		return false, err
	}
	if err := s.writeData(st, frame[:]); err != nil {
		return false, err
	}

	var elapsed time.Duration
	for {
		b, err := s.poll(st)
		if err != nil {
			return false, err
		}
		if b == ackSetSensitivity {
			if err := s.drain(st); err != nil {
				return false, err
			}
			return true, nil
		}
		s.clock.Sleep(pollInterval)
		elapsed += pollInterval
		if elapsed > sensitivityTimeout {
			s.log.Debug().Uint8("level", uint8(level)).Msg("set sensitivity: no acknowledgment")
			return false, nil
		}
	}
}

// checkCalibrationStateUART treats a valid water frame or a quiet second
// as a finished calibration and the uncalibrated sentinel as a failed one.
func (s *Sensor) checkCalibrationStateUART() (bool, error) {
	st := s.uart.Stream
	if st == nil {
		return false, ErrNoStream
	}

	var elapsed time.Duration
	for {
		b, err := s.poll(st)
		if err != nil {
			return false, err
		}
		if b == sentinelUncalibrated {
			return false, nil
		}
		s.clock.Sleep(pollInterval)
		elapsed += pollInterval
		if WaterStatus(b).Valid() {
			return true, nil
		}
		if elapsed > calibStateTimeout {
			return true, nil
		}
	}
}
