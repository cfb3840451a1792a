// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package imu runs the calibration lifecycle of the attitude sensors and,
// once calibrated, fuses their samples into an attitude estimate.
package imu

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/golang/geo/r3"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/flight_computer/internal/gps"
	"github.com/relabs-tech/flight_computer/internal/orientation"
	"github.com/relabs-tech/flight_computer/internal/sensors"
)

// State is the IMU lifecycle state.
type State int32

const (
	Off State = iota
	Calibrating
	CalibratingAll
	CalibrationDone
	Running
)

func (s State) String() string {
	switch s {
	case Off:
		return "Off"
	case Calibrating:
		return "Calibrating"
	case CalibratingAll:
		return "CalibratingAll"
	case CalibrationDone:
		return "CalibrationDone"
	case Running:
		return "Running"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// MarshalText lets the state appear by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Calibrating reports whether s is one of the calibrating states.
func (s State) Calibrating() bool {
	return s == Calibrating || s == CalibratingAll
}

// Persister stores calibration offsets, e.g. in the board registers.
type Persister interface {
	SaveRegister(key string, value float64) error
}

// Options configures the IMU.
type Options struct {
	// CalibrateAll extends calibration to every attitude sensor
	// (accelerometers, magnetometers and altimeters too).
	CalibrateAll bool
	// Passes is the number of frames in one calibration cycle.
	Passes int
	// Retries is the number of failed cycles before the IMU reports
	// itself stuck.
	Retries int
	// Alpha is the gyro weight of the complementary filter.
	Alpha float64
	// Persister receives committed offsets. Optional.
	Persister Persister
}

// DefaultOptions match the configuration defaults.
var DefaultOptions = Options{
	Passes:  2000,
	Retries: 3,
	Alpha:   0.98,
}

// Estimate is the fused output produced on every running tick.
type Estimate struct {
	Pose     orientation.Pose `json:"pose"`
	Rate     r3.Vector        `json:"rate"`  // deg/s
	Accel    r3.Vector        `json:"accel"` // m/s²
	Mag      r3.Vector        `json:"mag"`   // µT
	Altitude float64          `json:"altitude_m"`
	Fix      gps.Fix          `json:"fix"`
	Faults   uint64           `json:"faults"` // failed sensor reads so far
}

// IMU owns the attitude sensors. Loop is only ever called from the
// stabilization thread; State and Estimate may be read from anywhere.
type IMU struct {
	opts Options

	gyros, accels, mags, alts, gpss []sensors.Instance
	scope                           []sensors.Instance

	state  atomic.Int32
	pass   int
	cycles int
	stuck  atomic.Bool
	faults uint64

	filter *orientation.Filter

	mu       sync.RWMutex
	estimate Estimate
}

// New builds the IMU from classified sensors. With no gyroscope and no
// accelerometer it stays Off for the whole run.
func New(classified sensors.Classified, opts Options) *IMU {
	if opts.Passes <= 0 {
		opts.Passes = DefaultOptions.Passes
	}
	if opts.Retries <= 0 {
		opts.Retries = 1
	}
	m := &IMU{
		opts:   opts,
		gyros:  classified[sensors.Gyroscope],
		accels: classified[sensors.Accelerometer],
		mags:   classified[sensors.Magnetometer],
		alts:   classified[sensors.Altimeter],
		gpss:   classified[sensors.GPS],
		filter: orientation.NewFilter(opts.Alpha),
	}

	switch {
	case len(m.gyros) == 0 && len(m.accels) == 0:
		log.Warn("imu: no gyroscope or accelerometer, imu is off")
		m.setState(Off)
	case opts.CalibrateAll:
		m.scope = dedupe(m.gyros, m.accels, m.mags, m.alts)
		m.setState(CalibratingAll)
	case len(m.gyros) > 0:
		m.scope = dedupe(m.gyros)
		m.setState(Calibrating)
	default:
		m.scope = dedupe(m.accels)
		m.setState(Calibrating)
	}
	if m.State() != Off {
		log.Infof("imu: %s %d sensors, %d passes per cycle", m.State(), len(m.scope), opts.Passes)
	}
	return m
}

func dedupe(groups ...[]sensors.Instance) []sensors.Instance {
	seen := map[sensors.Instance]bool{}
	var out []sensors.Instance
	for _, g := range groups {
		for _, s := range g {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// State returns the current lifecycle state.
func (m *IMU) State() State {
	return State(m.state.Load())
}

func (m *IMU) setState(s State) {
	m.state.Store(int32(s))
}

// Stuck reports whether calibration failed Options.Retries cycles in a row.
func (m *IMU) Stuck() bool {
	return m.stuck.Load()
}

// Estimate returns the last fused estimate.
func (m *IMU) Estimate() Estimate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.estimate
}

// Loop advances the IMU by one tick of dt seconds.
func (m *IMU) Loop(dt float64) {
	switch m.State() {
	case Off:
	case Calibrating, CalibratingAll:
		m.calibrate(dt)
	case CalibrationDone:
		m.setState(Running)
		m.update(dt)
	case Running:
		m.update(dt)
	}
}

func (m *IMU) calibrated() bool {
	for _, s := range m.scope {
		if !s.Calibrated() {
			return false
		}
	}
	return true
}

func (m *IMU) calibrate(dt float64) {
	if m.calibrated() {
		log.Info("imu: calibration done")
		m.setState(CalibrationDone)
		return
	}

	m.pass++
	last := m.pass >= m.opts.Passes
	for _, s := range m.scope {
		if s.Calibrated() {
			continue
		}
		s.Calibrate(dt, last)
		if last && s.Calibrated() {
			m.persist(s)
		}
	}
	if !last {
		return
	}

	m.pass = 0
	if m.calibrated() {
		return
	}
	m.cycles++
	for _, s := range m.scope {
		if !s.Calibrated() {
			log.Warnf("imu: %s not calibrated after cycle %d", sensors.PrimaryName(s.Names()), m.cycles)
		}
	}
	if m.cycles >= m.opts.Retries && !m.stuck.Load() {
		m.stuck.Store(true)
		log.Errorf("imu: calibration stuck after %d cycles, still retrying", m.cycles)
	}
}

func (m *IMU) persist(s sensors.Instance) {
	name := sensors.PrimaryName(s.Names())
	off := s.Offset()
	log.Infof("imu: %s offset %.4f %.4f %.4f", name, off.X, off.Y, off.Z)
	if m.opts.Persister == nil {
		return
	}
	axes := []struct {
		name  string
		value float64
	}{{"X", off.X}, {"Y", off.Y}, {"Z", off.Z}}
	for _, c := range s.Capabilities().List() {
		for _, a := range axes {
			key := OffsetKey(name, c, a.name)
			if err := m.opts.Persister.SaveRegister(key, a.value); err != nil {
				log.Warnf("imu: save %s: %v", key, err)
			}
		}
	}
}

// OffsetKey names the register an offset axis is persisted under.
func OffsetKey(name string, c sensors.Capability, axis string) string {
	return name + ":" + c.String() + ":Offset:" + axis
}

func (m *IMU) mean(group []sensors.Instance, pick func(sensors.Sample) r3.Vector) r3.Vector {
	var sum r3.Vector
	for _, s := range group {
		sample, err := s.Sample()
		if err != nil {
			m.faults++
			log.Debugf("imu: %s: %v", sensors.PrimaryName(s.Names()), err)
		}
		sum = sum.Add(pick(sample))
	}
	if len(group) == 0 {
		return sum
	}
	return sum.Mul(1 / float64(len(group)))
}

func (m *IMU) update(dt float64) {
	meas := orientation.Measurement{
		Gyro:  m.mean(m.gyros, func(s sensors.Sample) r3.Vector { return s.Gyro }),
		Accel: m.mean(m.accels, func(s sensors.Sample) r3.Vector { return s.Accel }),
		Mag:   m.mean(m.mags, func(s sensors.Sample) r3.Vector { return s.Mag }),
	}
	alt := m.mean(m.alts, func(s sensors.Sample) r3.Vector { return r3.Vector{X: s.Env.Altitude} })

	var fix gps.Fix
	for _, g := range m.gpss {
		if s, err := g.Sample(); err == nil {
			fix = s.Fix
		}
	}

	pose := m.filter.Update(meas, dt)

	m.mu.Lock()
	m.estimate = Estimate{
		Pose:     pose,
		Rate:     meas.Gyro,
		Accel:    meas.Accel,
		Mag:      meas.Mag,
		Altitude: alt.X,
		Fix:      fix,
		Faults:   m.faults,
	}
	m.mu.Unlock()
}
