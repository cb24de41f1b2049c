package sensor

import (
	"fmt"
	"time"

	"github.com/sweeney/level-sensor/internal/gpio"
)

// beginLevel waits for the OUT pin to toggle, which the sensor does once
// after power-up.
//
// Level mode never reports BeginUncalibrated: the first differing sample
// after the toggle returns BeginOK, and so does falling out of the sampling
// loop.
func (s *Sensor) beginLevel() (int, error) {
	out := s.level.Out
	if out == nil {
		s.log.Debug().Msg("begin: no OUT pin configured")
		return BeginFailed, ErrNoSignalPin
	}
	if err := out.SetMode(gpio.Input); err != nil {
		return BeginFailed, fmt.Errorf("configure OUT pin: %w", err)
	}

	initial, err := s.readOut()
	if err != nil {
		return BeginFailed, err
	}
	level, changed, err := s.waitForToggle(initial, beginTimeout)
	if err != nil {
		return BeginFailed, err
	}
	if !changed {
		s.log.Debug().Msg("begin: OUT never toggled, assuming ready")
		return BeginOK, nil
	}

	for i := 0; i < confirmSamples; i++ {
		s.clock.Sleep(pollInterval)
		cur, err := s.readOut()
		if err != nil {
			return BeginFailed, err
		}
		if level+cur == 1 {
			return BeginOK, nil
		}
	}
	return BeginOK, nil
}

func (s *Sensor) detectWaterLevel() (bool, error) {
	if s.level.Out == nil {
		return false, ErrNoSignalPin
	}
	level, err := s.readOut()
	if err != nil {
		return false, err
	}
	s.clock.Sleep(pollInterval)
	return level == gpio.High, nil
}

// selfCheckLevel pulses TEST low for 500 ms after a power cycle; the sensor
// answers with a self-check burst on its TX line.
func (s *Sensor) selfCheckLevel() (bool, error) {
	cfg := s.level
	if err := cfg.requirePins(); err != nil {
		return false, err
	}
	if cfg.Stream == nil {
		return false, ErrNoStream
	}

	if err := s.pulseTest(selfCheckTestLow); err != nil {
		return false, err
	}
	s.clock.Sleep(selfCheckSettle)
	s.clock.Sleep(responseWait)
	return s.scanSelfCheck(cfg.Stream, selfCheckReadGap)
}

// calibrateLevel pulses TEST low for calibTime, then watches OUT for up to
// a second. The sensor acknowledges with a low pulse at least as long as
// the TEST pulse followed by a high pulse longer than 500 ms.
func (s *Sensor) calibrateLevel(calibTime time.Duration) (bool, error) {
	if err := s.level.requirePins(); err != nil {
		return false, err
	}
	if err := s.pulseTest(calibTime); err != nil {
		return false, err
	}

	start := s.clock.Now()
	edge := start
	prev, err := s.readOut()
	if err != nil {
		return false, err
	}

	var lowPulse time.Duration
	for {
		cur, err := s.readOut()
		if err != nil {
			return false, err
		}
		if cur != prev {
			now := s.clock.Now()
			if prev == gpio.High {
				if lowPulse >= calibTime-calibTolerance {
					highPulse := now.Sub(edge)
					if highPulse > calibMinHighPulse {
						return true, nil
					}
					lowPulse = 0
				}
			} else {
				lowPulse = now.Sub(edge)
			}
			edge = now
			prev = cur
		}
		s.clock.Sleep(calibSampleGap)
		if s.clock.Now().Sub(start) > calibWindow {
			break
		}
	}
	s.log.Debug().Dur("calib_time", calibTime).Msg("calibrate: no acknowledgment pulse")
	return false, nil
}

// checkCalibrationStateLevel waits up to a second for OUT to toggle; no
// toggle counts as complete. After a toggle it returns true as soon as two
// consecutive samples fail to alternate, and false only if all five do.
func (s *Sensor) checkCalibrationStateLevel() (bool, error) {
	if s.level.Out == nil {
		return false, ErrNoSignalPin
	}

	initial, err := s.readOut()
	if err != nil {
		return false, err
	}
	prev, changed, err := s.waitForToggle(initial, calibStateTimeout)
	if err != nil {
		return false, err
	}
	if !changed {
		return true, nil
	}

	for i := 0; i < confirmSamples; i++ {
		s.clock.Sleep(pollInterval)
		cur, err := s.readOut()
		if err != nil {
			return false, err
		}
		if prev+cur != 1 {
			return true, nil
		}
		prev = cur
	}
	return false, nil
}

// waitForToggle polls OUT every 100 ms until it differs from initial.
// It returns the new level, or changed=false once timeout has passed.
func (s *Sensor) waitForToggle(initial gpio.Level, timeout time.Duration) (gpio.Level, bool, error) {
	var elapsed time.Duration
	for {
		cur, err := s.readOut()
		if err != nil {
			return initial, false, err
		}
		if cur != initial {
			return cur, true, nil
		}
		s.clock.Sleep(pollInterval)
		elapsed += pollInterval
		if elapsed > timeout {
			return initial, false, nil
		}
	}
}

// pulseTest holds TEST high across a power cycle, then drives it low for d.
func (s *Sensor) pulseTest(d time.Duration) error {
	test := s.level.Test
	if err := test.SetMode(gpio.Output); err != nil {
		return fmt.Errorf("configure TEST pin: %w", err)
	}
	if err := test.Write(gpio.High); err != nil {
		return fmt.Errorf("write TEST pin: %w", err)
	}
	if err := s.enableSensor(s.level.Enable, s.level.Stream); err != nil {
		return err
	}
	if err := test.Write(gpio.Low); err != nil {
		return fmt.Errorf("write TEST pin: %w", err)
	}
	s.clock.Sleep(d)
	if err := test.Write(gpio.High); err != nil {
		return fmt.Errorf("write TEST pin: %w", err)
	}
	return nil
}

func (s *Sensor) readOut() (gpio.Level, error) {
	level, err := s.level.Out.Read()
	if err != nil {
		return gpio.Low, fmt.Errorf("read OUT pin: %w", err)
	}
	return level, nil
}

// requirePins checks the pins self-check and calibration drive.
func (c LevelConfig) requirePins() error {
	switch {
	case c.Enable == nil:
		return ErrNoEnablePin
	case c.Test == nil:
		return ErrNoTestPin
	case c.Out == nil:
		return ErrNoSignalPin
	}
	return nil
}
