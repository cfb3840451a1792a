// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ina219"

	"github.com/relabs-tech/flight_computer/internal/bus"
)

// INA219Address is the default power monitor address.
const INA219Address uint16 = 0x40

// INA219 measures the battery bus voltage and the current through the
// shunt. One instance carries both capabilities.
type INA219 struct {
	Base
	dev *ina219.Dev
}

// NewINA219 binds the periph ina219 driver with the default 100 mΩ shunt.
func NewINA219(b bus.Bus, addr uint16) (Instance, error) {
	opts := ina219.DefaultOpts
	opts.Address = int(addr)
	dev, err := ina219.New(b, &opts)
	if err != nil {
		return nil, errors.Wrap(err, "ina219 init")
	}
	return &INA219{
		Base: NewBase(Caps(Voltmeter, CurrentSensor), "ina219"),
		dev:  dev,
	}, nil
}

// Sample reads bus voltage in V and current in A.
func (s *INA219) Sample() (Sample, error) {
	pm, err := s.dev.Sense()
	if err != nil {
		return s.last, errors.Wrap(err, "ina219 sense")
	}
	return s.remember(Sample{
		Voltage: float64(pm.Voltage) / float64(physic.Volt),
		Current: float64(pm.Current) / float64(physic.Ampere),
	}), nil
}
