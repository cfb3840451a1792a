// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package control holds the contracts between the stabilization loop, the
// control law and the pilot's controller link.
package control

import (
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/flight_computer/internal/imu"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
)

// Input is the pilot command.
type Input struct {
	Roll   float64 `json:"roll"`   // -1..1
	Pitch  float64 `json:"pitch"`  // -1..1
	Yaw    float64 `json:"yaw"`    // -1..1
	Thrust float64 `json:"thrust"` // 0..1
	Armed  bool    `json:"armed"`
	Mode   string  `json:"mode,omitempty"`
}

// Failsafe is the input applied when the controller link is lost.
var Failsafe = Input{Mode: "failsafe"}

// Stabilizer is the control law, invoked once per ready tick. It owns the
// decision to disarm the frame.
type Stabilizer interface {
	Update(est imu.Estimate, in Input, dt float64)
}

// Recorder is the stabilizer used when no control law is wired: it records
// the attitude and the pilot input to the black box every few ticks.
type Recorder struct {
	box   telemetry.BlackBox
	every int
	n     int
	armed bool
}

// NewRecorder records one tick out of every.
func NewRecorder(box telemetry.BlackBox, every int) *Recorder {
	if every <= 0 {
		every = 1
	}
	return &Recorder{box: box, every: every}
}

func (r *Recorder) Update(est imu.Estimate, in Input, dt float64) {
	if in.Armed != r.armed {
		r.armed = in.Armed
		log.Infof("stabilizer: armed=%v mode=%q", in.Armed, in.Mode)
		r.box.Enqueue("Stabilizer:armed", in.Armed)
	}
	r.n++
	if r.n < r.every {
		return
	}
	r.n = 0
	r.box.Enqueue("Stabilizer:attitude", est.Pose)
	r.box.Enqueue("Stabilizer:rate", est.Rate)
	r.box.Enqueue("Controller:input", in)
}

// Link delivers the latest pilot input.
type Link interface {
	// Input returns the command to apply this tick.
	Input() Input
	// Poll is called periodically by the controller thread with the
	// current tick in µs.
	Poll(now uint64)
}

// Static is a link with a fixed input.
type Static Input

func (s Static) Input() Input { return Input(s) }
func (Static) Poll(uint64)    {}
