// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/relabs-tech/flight_computer/internal/bus"
)

// L3GD20Address is the gyroscope address with SDO pulled high.
const L3GD20Address uint16 = 0x6B

const (
	l3gd20WhoAmI  = 0x0F
	l3gd20Ctrl1   = 0x20
	l3gd20Ctrl4   = 0x23
	l3gd20Status  = 0x27
	l3gd20OutXL   = 0x28
	l3gd20ID      = 0xD4
	l3gd20HID     = 0xD7
	l3gd20DPSUnit = 0.07 // ±2000 dps
)

// L3GD20 is a three axis gyroscope.
type L3GD20 struct {
	Base
	bus  bus.Bus
	addr uint16
	acc  meanAccumulator
}

// NewL3GD20 checks the chip identity and powers it up at ±2000 dps.
func NewL3GD20(b bus.Bus, addr uint16) (Instance, error) {
	id, err := b.ReadRegister(addr, l3gd20WhoAmI, 1)
	if err != nil {
		return nil, errors.Wrap(err, "l3gd20 who_am_i")
	}
	if id[0] != l3gd20ID && id[0] != l3gd20HID {
		return nil, errors.Errorf("l3gd20: unexpected id 0x%02X", id[0])
	}
	if err := b.WriteRegister(addr, l3gd20Ctrl1, 0x0F); err != nil {
		return nil, errors.Wrap(err, "l3gd20 init")
	}
	if err := b.WriteRegister(addr, l3gd20Ctrl4, 0x20); err != nil {
		return nil, errors.Wrap(err, "l3gd20 init")
	}
	return &L3GD20{
		Base: NewBase(Caps(Gyroscope), "l3gd20", "l3gd20h"),
		bus:  b,
		addr: addr,
	}, nil
}

func (s *L3GD20) raw() (r3.Vector, error) {
	if err := waitReady(s.bus, s.addr, l3gd20Status); err != nil {
		return r3.Vector{}, err
	}
	buf, err := s.bus.ReadRegister(s.addr, l3gd20OutXL|autoIncrement, 6)
	if err != nil {
		return r3.Vector{}, err
	}
	axis := func(i int) float64 {
		return float64(int16(binary.LittleEndian.Uint16(buf[i:]))) * l3gd20DPSUnit
	}
	return r3.Vector{X: axis(0), Y: axis(2), Z: axis(4)}, nil
}

// Calibrate averages the zero-rate level while the craft is still.
func (s *L3GD20) Calibrate(_ float64, lastPass bool) {
	if v, err := s.raw(); err == nil {
		s.acc.add(v)
	}
	if lastPass && s.acc.n > 0 {
		s.commit(s.acc.mean())
	}
	if lastPass {
		s.acc.reset()
	}
}

// Sample reads the angular rate in deg/s.
func (s *L3GD20) Sample() (Sample, error) {
	v, err := s.raw()
	if err != nil {
		return s.last, errors.Wrap(err, "l3gd20")
	}
	if s.Calibrated() {
		v = v.Sub(s.offset)
	}
	return s.remember(Sample{Gyro: v}), nil
}
