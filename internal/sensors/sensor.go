// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors discovers sensors on the bus and exposes them uniformly,
// by capability, to consumers that do not know the concrete chip.
package sensors

import (
	"sync/atomic"

	"github.com/golang/geo/r3"

	"github.com/relabs-tech/flight_computer/internal/env"
	"github.com/relabs-tech/flight_computer/internal/gps"
)

// StandardGravity in m/s².
const StandardGravity = 9.80665

// Sample is the last reading of an instance. Only the fields matching the
// instance capabilities are meaningful.
type Sample struct {
	Gyro  r3.Vector `json:"gyro"`  // deg/s
	Accel r3.Vector `json:"accel"` // m/s²
	Mag   r3.Vector `json:"mag"`   // µT

	Env     env.Sample `json:"env"`
	Fix     gps.Fix    `json:"fix"`
	Voltage float64    `json:"voltage_v"`
	Current float64    `json:"current_a"`
}

// Instance is a live sensor. Sampling and calibration of one instance are
// only ever driven from a single thread.
type Instance interface {
	// Names lists the display names, the first one being the primary name.
	Names() []string
	// Capabilities never changes after construction.
	Capabilities() Capabilities
	// Calibrate accumulates one calibration frame. On lastPass the
	// accumulated data is committed as the offset and Calibrated turns true,
	// unless no frame of the cycle could be read.
	Calibrate(dt float64, lastPass bool)
	Calibrated() bool
	Offset() r3.Vector
	// Sample reads the device. On error the previous sample stays in Last.
	Sample() (Sample, error)
	Last() Sample
}

// Base carries the bookkeeping every instance shares. Drivers embed it.
// The calibrated flag may be read from any thread.
type Base struct {
	names      []string
	caps       Capabilities
	calibrated uint32
	offset     r3.Vector
	last       Sample
}

// NewBase returns the shared state for an instance.
func NewBase(caps Capabilities, names ...string) Base {
	return Base{names: names, caps: caps}
}

func (b *Base) Names() []string            { return append([]string(nil), b.names...) }
func (b *Base) Capabilities() Capabilities { return b.caps }
func (b *Base) Calibrated() bool           { return atomic.LoadUint32(&b.calibrated) == 1 }
func (b *Base) Offset() r3.Vector          { return b.offset }
func (b *Base) Last() Sample               { return b.last }

// Name returns the primary display name.
func (b *Base) Name() string {
	return PrimaryName(b.names)
}

// Calibrate is the default for sensors without a zero offset to learn:
// the last pass simply marks the sensor calibrated.
func (b *Base) Calibrate(_ float64, lastPass bool) {
	if lastPass {
		atomic.StoreUint32(&b.calibrated, 1)
	}
}

func (b *Base) commit(offset r3.Vector) {
	b.offset = offset
	atomic.StoreUint32(&b.calibrated, 1)
}

func (b *Base) remember(s Sample) Sample {
	b.last = s
	return s
}

// meanAccumulator is the running mean used by bias calibrations.
type meanAccumulator struct {
	sum r3.Vector
	n   int
}

func (m *meanAccumulator) add(v r3.Vector) {
	m.sum = m.sum.Add(v)
	m.n++
}

func (m *meanAccumulator) mean() r3.Vector {
	if m.n == 0 {
		return r3.Vector{}
	}
	return m.sum.Mul(1 / float64(m.n))
}

func (m *meanAccumulator) reset() {
	*m = meanAccumulator{}
}

// rangeAccumulator tracks per-axis extremes for hard-iron calibration.
type rangeAccumulator struct {
	min, max r3.Vector
	n        int
}

func (a *rangeAccumulator) add(v r3.Vector) {
	if a.n == 0 {
		a.min, a.max = v, v
	} else {
		a.min = r3.Vector{X: min(a.min.X, v.X), Y: min(a.min.Y, v.Y), Z: min(a.min.Z, v.Z)}
		a.max = r3.Vector{X: max(a.max.X, v.X), Y: max(a.max.Y, v.Y), Z: max(a.max.Z, v.Z)}
	}
	a.n++
}

func (a *rangeAccumulator) center() r3.Vector {
	return a.min.Add(a.max).Mul(0.5)
}

func (a *rangeAccumulator) span() r3.Vector {
	return a.max.Sub(a.min)
}

func (a *rangeAccumulator) reset() {
	*a = rangeAccumulator{}
}
