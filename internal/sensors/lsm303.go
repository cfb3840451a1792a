// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/flight_computer/internal/bus"
)

// LSM303 default addresses. The accelerometer and magnetometer answer as
// two separate devices on the bus.
const (
	LSM303AccelAddress uint16 = 0x19
	LSM303MagAddress   uint16 = 0x1E
)

// LSM303 accelerometer registers.
const (
	lsm303CtrlReg1A  = 0x20
	lsm303CtrlReg4A  = 0x23
	lsm303CtrlReg5A  = 0x24
	lsm303StatusRegA = 0x27
	lsm303OutXLA     = 0x28
)

// LSM303 magnetometer registers.
const (
	lsm303CraRegM = 0x00
	lsm303CrbRegM = 0x01
	lsm303MrRegM  = 0x02
	lsm303OutXHM  = 0x03
)

const (
	autoIncrement = 0x80
	statusZYXDA   = 0x08
	// status polls before a read is declared not ready
	readyPolls = 8

	// ±8 g, high resolution: 4 mg/digit on the left-justified 12 bit value.
	lsm303AccelScale = 0.004 * StandardGravity
	// ±1.3 gauss: 1100 LSB/gauss on X/Y, 980 LSB/gauss on Z; 1 gauss = 100 µT.
	lsm303MagXYGain = 1100.0
	lsm303MagZGain  = 980.0
)

var lsm303Names = []string{"lsm303", "lsm303dlhc"}

// ErrNotReady is returned when a sensor has no new data within the
// status polling bound.
var ErrNotReady = errors.New("data not ready")

// LSM303Accel is the accelerometer half of an LSM303DLHC.
type LSM303Accel struct {
	Base
	bus  bus.Bus
	addr uint16
	acc  meanAccumulator
}

// NewLSM303Accel configures the accelerometer: 400 Hz all axes, ±8 g high
// resolution, FIFO enabled.
func NewLSM303Accel(b bus.Bus, addr uint16) (Instance, error) {
	for _, w := range [][2]byte{
		{lsm303CtrlReg1A, 0x77},
		{lsm303CtrlReg4A, 0x28},
		{lsm303CtrlReg5A, 0x40},
	} {
		if err := b.WriteRegister(addr, w[0], w[1]); err != nil {
			return nil, errors.Wrap(err, "lsm303 accel init")
		}
	}
	return &LSM303Accel{
		Base: NewBase(Caps(Accelerometer), lsm303Names...),
		bus:  b,
		addr: addr,
	}, nil
}

func (s *LSM303Accel) raw() (r3.Vector, error) {
	if err := waitReady(s.bus, s.addr, lsm303StatusRegA); err != nil {
		return r3.Vector{}, err
	}
	buf, err := s.bus.ReadRegister(s.addr, lsm303OutXLA|autoIncrement, 6)
	if err != nil {
		return r3.Vector{}, err
	}
	axis := func(i int) float64 {
		return float64(int16(binary.LittleEndian.Uint16(buf[i:]))>>4) * lsm303AccelScale
	}
	return r3.Vector{X: axis(0), Y: axis(2), Z: axis(4)}, nil
}

// Calibrate averages readings of the sensor at rest. The committed offset
// leaves +1 g on Z.
func (s *LSM303Accel) Calibrate(_ float64, lastPass bool) {
	if v, err := s.raw(); err == nil {
		s.acc.add(v)
	}
	if lastPass && s.acc.n > 0 {
		mean := s.acc.mean()
		mean.Z -= StandardGravity
		s.commit(mean)
	}
	if lastPass {
		s.acc.reset()
	}
}

// Sample reads acceleration in m/s², offset corrected once calibrated.
func (s *LSM303Accel) Sample() (Sample, error) {
	v, err := s.raw()
	if err != nil {
		return s.last, errors.Wrap(err, "lsm303 accel")
	}
	if s.Calibrated() {
		v = v.Sub(s.offset)
	}
	return s.remember(Sample{Accel: v}), nil
}

// LSM303Mag is the magnetometer half of an LSM303DLHC.
type LSM303Mag struct {
	Base
	bus  bus.Bus
	addr uint16
	rng  rangeAccumulator
}

// NewLSM303Mag configures the magnetometer: 30 Hz, ±1.3 gauss, continuous
// conversion.
func NewLSM303Mag(b bus.Bus, addr uint16) (Instance, error) {
	for _, w := range [][2]byte{
		{lsm303CraRegM, 0x14},
		{lsm303CrbRegM, 0x20},
		{lsm303MrRegM, 0x00},
	} {
		if err := b.WriteRegister(addr, w[0], w[1]); err != nil {
			return nil, errors.Wrap(err, "lsm303 mag init")
		}
	}
	return &LSM303Mag{
		Base: NewBase(Caps(Magnetometer), lsm303Names...),
		bus:  b,
		addr: addr,
	}, nil
}

func (s *LSM303Mag) raw() (r3.Vector, error) {
	buf, err := s.bus.ReadRegister(s.addr, lsm303OutXHM, 6)
	if err != nil {
		return r3.Vector{}, err
	}
	// big endian, X Z Y order
	axis := func(i int, gain float64) float64 {
		return float64(int16(binary.BigEndian.Uint16(buf[i:]))) / gain * 100
	}
	return r3.Vector{
		X: axis(0, lsm303MagXYGain),
		Y: axis(4, lsm303MagXYGain),
		Z: axis(2, lsm303MagZGain),
	}, nil
}

// minHardIronSpan is the range every axis must cover, in µT, before the
// center of the range is taken as the hard-iron offset. A craft held still
// only sees the ambient field, whose center is the field itself.
const minHardIronSpan = 30.0

// Calibrate tracks per-axis extremes; the hard-iron offset is the center
// of the observed range when the sensor was rotated enough, zero otherwise.
func (s *LSM303Mag) Calibrate(_ float64, lastPass bool) {
	if v, err := s.raw(); err == nil {
		s.rng.add(v)
	}
	if !lastPass {
		return
	}
	if s.rng.n > 0 {
		span := s.rng.span()
		if span.X >= minHardIronSpan && span.Y >= minHardIronSpan && span.Z >= minHardIronSpan {
			s.commit(s.rng.center())
		} else {
			log.Debugf("lsm303 mag: range %.1f %.1f %.1f too narrow, no hard-iron offset", span.X, span.Y, span.Z)
			s.commit(r3.Vector{})
		}
	}
	s.rng.reset()
}

// Sample reads the field in µT.
func (s *LSM303Mag) Sample() (Sample, error) {
	v, err := s.raw()
	if err != nil {
		return s.last, errors.Wrap(err, "lsm303 mag")
	}
	if s.Calibrated() {
		v = v.Sub(s.offset)
	}
	return s.remember(Sample{Mag: v}), nil
}

// waitReady polls a ST status register for the ZYXDA bit.
func waitReady(b bus.Bus, addr uint16, status byte) error {
	for range readyPolls {
		st, err := b.ReadRegister(addr, status, 1)
		if err != nil {
			return err
		}
		if st[0]&statusZYXDA != 0 {
			return nil
		}
	}
	return ErrNotReady
}
