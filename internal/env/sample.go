// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package env

import "math"

// Sample represents a single environmental measurement (barometer).
type Sample struct {
	Source string `json:"source"`

	Temperature float64 `json:"temp_c"`      // °C
	Pressure    float64 `json:"pressure_pa"` // Pa
	Altitude    float64 `json:"altitude_m"`  // m above the calibration reference
}

// StandardPressure is the sea level reference used before the barometer
// has been calibrated on the ground.
const StandardPressure = 101325.0

// PressureAltitude converts a pressure to an altitude above the level
// where reference was measured (international barometric formula).
func PressureAltitude(pressure, reference float64) float64 {
	if pressure <= 0 || reference <= 0 {
		return 0
	}
	return 44330.0 * (1.0 - math.Pow(pressure/reference, 1.0/5.255))
}
