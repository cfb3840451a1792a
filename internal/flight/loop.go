// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package flight

import (
	"math"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/flight_computer/internal/board"
	"github.com/relabs-tech/flight_computer/internal/clock"
	"github.com/relabs-tech/flight_computer/internal/control"
	"github.com/relabs-tech/flight_computer/internal/imu"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
)

const (
	// WatchdogLimit is the largest time step, in seconds, the loop accepts.
	WatchdogLimit = 1.0
	// lpsWindow is the loop rate measurement window in µs.
	lpsWindow = 1_000_000
	// LPSKey is the black box key the loop rate is published under.
	LPSKey = "Stabilizer:lps"
	// DefaultLoopTime is the nominal period in µs (500 Hz).
	DefaultLoopTime = 2000
)

// FrequencyController is the thread the loop retunes.
type FrequencyController interface {
	SetFrequency(hz float64)
	Frequency() float64
}

// LoopOptions configure the stabilization loop.
type LoopOptions struct {
	// LoopTime is the nominal period in µs once calibrated.
	LoopTime int
	// CalibrationFrequency caps the rate while calibrating, in Hz. 0 is
	// uncapped.
	CalibrationFrequency float64
}

// Loop is the body of the stabilization thread. Tick is called once per
// period and always runs on the same thread.
type Loop struct {
	clock      clock.Clock
	imu        *imu.IMU
	stabilizer control.Stabilizer
	link       control.Link
	box        telemetry.BlackBox
	indicator  board.Indicator
	freq       FrequencyController
	opts       LoopOptions

	primed    bool
	prev      uint64
	windowEnd uint64
	count     int
	ready     bool

	lps    atomic.Int64
	faults atomic.Uint64
}

// NewLoop wires the loop. freq is normally the thread running it.
func NewLoop(c clock.Clock, m *imu.IMU, s control.Stabilizer, link control.Link,
	box telemetry.BlackBox, ind board.Indicator, freq FrequencyController, opts LoopOptions) *Loop {
	if opts.LoopTime <= 0 {
		opts.LoopTime = DefaultLoopTime
	}
	return &Loop{
		clock:      c,
		imu:        m,
		stabilizer: s,
		link:       link,
		box:        box,
		indicator:  ind,
		freq:       freq,
		opts:       opts,
	}
}

// Tick runs one iteration. It never ends the thread: faults only degrade
// the current iteration.
func (l *Loop) Tick() bool {
	now := l.clock.Now()
	if !l.primed {
		l.primed = true
		l.prev = now
		l.windowEnd = now + lpsWindow
	}
	dt := float64(int64(now-l.prev)) / 1e6
	l.prev = now

	if math.Abs(dt) >= WatchdogLimit {
		l.faults.Add(1)
		log.Warnf("stabilizer: dt %.3fs out of bounds, tick skipped", dt)
	} else {
		l.dispatch(dt)
	}

	if now >= l.windowEnd {
		l.lps.Store(int64(l.count))
		l.box.Enqueue(LPSKey, l.count)
		l.count = 0
		l.windowEnd = now + lpsWindow
	}
	l.count++
	return true
}

func (l *Loop) dispatch(dt float64) {
	l.imu.Loop(dt)

	switch l.imu.State() {
	case imu.Off:
	case imu.Calibrating, imu.CalibratingAll:
		l.retune(l.opts.CalibrationFrequency)
		l.indicator.InformLoading()
	case imu.CalibrationDone:
		if !l.ready {
			l.ready = true
			l.indicator.LoadingDone()
		}
		l.retune(1e6 / float64(l.opts.LoopTime))
	case imu.Running:
		l.stabilizer.Update(l.imu.Estimate(), l.link.Input(), dt)
	}
}

func (l *Loop) retune(hz float64) {
	if l.freq.Frequency() == hz {
		return
	}
	log.Infof("stabilizer: frequency %.0f Hz -> %.0f Hz", l.freq.Frequency(), hz)
	l.freq.SetFrequency(hz)
}

// LoopFrequency returns the loops per second of the last full window.
func (l *Loop) LoopFrequency() int {
	return int(l.lps.Load())
}

// Faults returns the number of ticks skipped by the watchdog.
func (l *Loop) Faults() uint64 {
	return l.faults.Load()
}
