// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"github.com/golang/geo/r3"
)

// Filter is a complementary filter: gyro rates are integrated and slowly
// pulled toward the accelerometer tilt and the magnetic heading.
// Alpha is the weight of the integrated gyro path, e.g. 0.98.
type Filter struct {
	Alpha float64

	pose   Pose
	primed bool
}

// NewFilter returns a filter with the given gyro weight.
func NewFilter(alpha float64) *Filter {
	if alpha < 0 || alpha > 1 {
		alpha = 0.98
	}
	return &Filter{Alpha: alpha}
}

// Measurement is one fused input frame. Zero vectors mean the sensor is
// absent.
type Measurement struct {
	Gyro  r3.Vector // deg/s
	Accel r3.Vector // any unit
	Mag   r3.Vector // any unit
}

// Update advances the estimate by dt seconds.
func (f *Filter) Update(m Measurement, dt float64) Pose {
	hasAccel := m.Accel.Norm2() > 0
	hasMag := m.Mag.Norm2() > 0

	if !f.primed {
		if hasAccel {
			f.pose = ComputePoseFromAccel(m.Accel.X, m.Accel.Y, m.Accel.Z)
		}
		if hasMag {
			f.pose.Yaw = Heading(m.Mag, f.pose.Roll, f.pose.Pitch)
		}
		f.primed = true
		return f.pose
	}

	roll := f.pose.Roll + m.Gyro.X*dt
	pitch := f.pose.Pitch + m.Gyro.Y*dt
	yaw := wrap180(f.pose.Yaw + m.Gyro.Z*dt)

	if hasAccel {
		tilt := ComputePoseFromAccel(m.Accel.X, m.Accel.Y, m.Accel.Z)
		roll = f.Alpha*roll + (1-f.Alpha)*tilt.Roll
		pitch = f.Alpha*pitch + (1-f.Alpha)*tilt.Pitch
	}
	if hasMag {
		heading := Heading(m.Mag, roll, pitch)
		yaw = wrap180(yaw + (1-f.Alpha)*wrap180(heading-yaw))
	}

	f.pose = Pose{Roll: roll, Pitch: pitch, Yaw: yaw}
	return f.pose
}

// Pose returns the current estimate.
func (f *Filter) Pose() Pose {
	return f.pose
}
