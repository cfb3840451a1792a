// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"

	"github.com/relabs-tech/flight_computer/internal/bus"
	"github.com/relabs-tech/flight_computer/internal/env"
)

// BMP280 addresses, depending on SDO.
const (
	BMP280Address    uint16 = 0x76
	BMP280AltAddress uint16 = 0x77
)

// BMP280 is a barometric altimeter. Its calibration measures the ground
// pressure, used as the altitude reference; before that the standard sea
// level pressure is used.
type BMP280 struct {
	Base
	dev  *bmxx80.Dev
	addr uint16
	acc  meanAccumulator
}

// NewBMP280 binds the periph bmxx80 driver to the bus.
func NewBMP280(b bus.Bus, addr uint16) (Instance, error) {
	dev, err := bmxx80.NewI2C(b, addr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, errors.Wrap(err, "bmp280 init")
	}
	return &BMP280{
		Base: NewBase(Caps(Altimeter), "bmp280", "bme280"),
		dev:  dev,
		addr: addr,
	}, nil
}

func (s *BMP280) sense() (env.Sample, error) {
	var e physic.Env
	if err := s.dev.Sense(&e); err != nil {
		return env.Sample{}, errors.Wrap(err, "bmp280 sense")
	}
	return env.Sample{
		Source:      s.Name(),
		Temperature: e.Temperature.Celsius(),
		Pressure:    float64(e.Pressure) / float64(physic.Pascal),
	}, nil
}

// Reference returns the pressure altitudes are measured from, in Pa.
func (s *BMP280) Reference() float64 {
	if s.Calibrated() {
		return s.offset.X
	}
	return env.StandardPressure
}

// Calibrate averages the pressure on the ground. The offset X component
// holds the reference pressure in Pa.
func (s *BMP280) Calibrate(_ float64, lastPass bool) {
	if e, err := s.sense(); err == nil {
		s.acc.add(r3.Vector{X: e.Pressure})
	}
	if lastPass && s.acc.n > 0 {
		s.commit(s.acc.mean())
	}
	if lastPass {
		s.acc.reset()
	}
}

// Sample reads temperature and pressure and derives the altitude.
func (s *BMP280) Sample() (Sample, error) {
	e, err := s.sense()
	if err != nil {
		return s.last, err
	}
	e.Altitude = env.PressureAltitude(e.Pressure, s.Reference())
	return s.remember(Sample{Env: e}), nil
}

// Close halts the device.
func (s *BMP280) Close() error {
	return s.dev.Halt()
}
