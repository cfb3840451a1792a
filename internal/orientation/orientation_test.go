// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestComputePoseFromAccel(t *testing.T) {
	tests := []struct {
		name        string
		ax, ay, az  float64
		roll, pitch float64
	}{
		{"level", 0, 0, 1, 0, 0},
		{"rolled right", 0, 1, 0, 90, 0},
		{"nose down", 1, 0, 0, 0, -90},
		{"rolled 45", 0, 1, 1, 45, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ComputePoseFromAccel(tt.ax, tt.ay, tt.az)
			if !approx(p.Roll, tt.roll, 1e-9) || !approx(p.Pitch, tt.pitch, 1e-9) {
				t.Errorf("got %+v, want roll %v pitch %v", p, tt.roll, tt.pitch)
			}
		})
	}
}

func TestWrap180(t *testing.T) {
	for in, want := range map[float64]float64{0: 0, 190: -170, -190: 170, 360: 0, 540: -180} {
		if got := wrap180(in); !approx(got, want, 1e-9) {
			t.Errorf("wrap180(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestHeadingLevel(t *testing.T) {
	if h := Heading(r3.Vector{X: 30}, 0, 0); !approx(h, 0, 1e-9) {
		t.Errorf("north heading = %v", h)
	}
	if h := Heading(r3.Vector{Y: -30}, 0, 0); !approx(h, 90, 1e-9) {
		t.Errorf("east heading = %v", h)
	}
}

func TestFilterPrimesFromAccel(t *testing.T) {
	f := NewFilter(0.98)
	p := f.Update(Measurement{Accel: r3.Vector{Y: 1, Z: 1}}, 0)
	if !approx(p.Roll, 45, 1e-9) {
		t.Errorf("primed roll = %v, want 45", p.Roll)
	}
}

func TestFilterIntegratesGyroAndConverges(t *testing.T) {
	f := NewFilter(0.98)
	level := r3.Vector{Z: 9.8}
	f.Update(Measurement{Accel: level}, 0)

	p := f.Update(Measurement{Gyro: r3.Vector{X: 10}}, 0.1)
	if !approx(p.Roll, 1, 1e-9) {
		t.Errorf("gyro only roll = %v, want 1", p.Roll)
	}

	for range 1000 {
		p = f.Update(Measurement{Accel: level}, 0.002)
	}
	if !approx(p.Roll, 0, 1e-3) {
		t.Errorf("roll did not converge to accelerometer tilt: %v", p.Roll)
	}
}
