// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math/rand/v2"

	"github.com/golang/geo/r3"
)

// FakeAccelerometer simulates a level, motionless accelerometer with a
// constant bias and gaussian noise. Used on the generic board.
type FakeAccelerometer struct {
	Base
	Bias  r3.Vector
	Noise float64
	rnd   *rand.Rand
	acc   meanAccumulator
}

// NewFakeAccelerometer returns a simulated accelerometer. The same seed
// always produces the same readings.
func NewFakeAccelerometer(seed uint64) *FakeAccelerometer {
	return &FakeAccelerometer{
		Base:  NewBase(Caps(Accelerometer), "fake_accelerometer"),
		Bias:  r3.Vector{X: 0.12, Y: -0.08, Z: 0.2},
		Noise: 0.02,
		rnd:   rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)),
	}
}

func (s *FakeAccelerometer) raw() r3.Vector {
	return r3.Vector{
		X: s.Bias.X + s.rnd.NormFloat64()*s.Noise,
		Y: s.Bias.Y + s.rnd.NormFloat64()*s.Noise,
		Z: StandardGravity + s.Bias.Z + s.rnd.NormFloat64()*s.Noise,
	}
}

func (s *FakeAccelerometer) Calibrate(_ float64, lastPass bool) {
	s.acc.add(s.raw())
	if lastPass {
		mean := s.acc.mean()
		mean.Z -= StandardGravity
		s.commit(mean)
		s.acc.reset()
	}
}

func (s *FakeAccelerometer) Sample() (Sample, error) {
	v := s.raw()
	if s.Calibrated() {
		v = v.Sub(s.offset)
	}
	return s.remember(Sample{Accel: v}), nil
}

// FakeGyroscope simulates a still gyroscope with a zero-rate bias.
type FakeGyroscope struct {
	Base
	Bias  r3.Vector
	Noise float64
	rnd   *rand.Rand
	acc   meanAccumulator
}

// NewFakeGyroscope returns a simulated gyroscope.
func NewFakeGyroscope(seed uint64) *FakeGyroscope {
	return &FakeGyroscope{
		Base:  NewBase(Caps(Gyroscope), "fake_gyroscope"),
		Bias:  r3.Vector{X: 0.8, Y: -1.1, Z: 0.3},
		Noise: 0.05,
		rnd:   rand.New(rand.NewPCG(seed, seed^0xD1B54A32D192ED03)),
	}
}

func (s *FakeGyroscope) raw() r3.Vector {
	return r3.Vector{
		X: s.Bias.X + s.rnd.NormFloat64()*s.Noise,
		Y: s.Bias.Y + s.rnd.NormFloat64()*s.Noise,
		Z: s.Bias.Z + s.rnd.NormFloat64()*s.Noise,
	}
}

func (s *FakeGyroscope) Calibrate(_ float64, lastPass bool) {
	s.acc.add(s.raw())
	if lastPass {
		s.commit(s.acc.mean())
		s.acc.reset()
	}
}

func (s *FakeGyroscope) Sample() (Sample, error) {
	v := s.raw()
	if s.Calibrated() {
		v = v.Sub(s.offset)
	}
	return s.remember(Sample{Gyro: v}), nil
}
