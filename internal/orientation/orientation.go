// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"github.com/golang/geo/r3"
)

// Pose is the canonical representation of orientation, in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
// Yaw is set to 0.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}

// Heading returns the tilt-compensated magnetic heading in degrees for a
// field vector measured at the given roll and pitch.
func Heading(mag r3.Vector, roll, pitch float64) float64 {
	r := roll * math.Pi / 180.0
	p := pitch * math.Pi / 180.0

	mx := mag.X*math.Cos(p) + mag.Z*math.Sin(p)
	my := mag.X*math.Sin(r)*math.Sin(p) + mag.Y*math.Cos(r) - mag.Z*math.Sin(r)*math.Cos(p)
	return wrap180(math.Atan2(-my, mx) * 180.0 / math.Pi)
}

func wrap180(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}
