// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	nmea "github.com/adrianmo/go-nmea"
)

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
type Fix struct {
	Time       string  `json:"time"`        // e.g. "12:34:56"
	Date       string  `json:"date"`        // e.g. "06/12/25"
	Latitude   float64 `json:"lat"`         // decimal degrees
	Longitude  float64 `json:"lon"`         // decimal degrees
	Altitude   float64 `json:"alt_m"`       // above mean sea level, from GGA
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Satellites int64   `json:"satellites"`  // in use, from GGA
	Validity   string  `json:"validity"`    // "A" (valid) / "V" (void)
}

// Valid reports whether the last RMC sentence flagged the fix as valid.
func (f Fix) Valid() bool {
	return f.Validity == nmea.ValidRMC
}

// Apply merges one parsed sentence into the fix. RMC carries position,
// speed and validity; GGA adds altitude and satellite count. It returns
// true when the sentence completed a fix worth publishing (an RMC).
func (f *Fix) Apply(sentence nmea.Sentence) bool {
	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		f.Time = m.Time.String()
		f.Date = m.Date.String()
		f.Latitude = m.Latitude
		f.Longitude = m.Longitude
		f.SpeedKnots = m.Speed
		f.CourseDeg = m.Course
		f.Validity = m.Validity
		return true
	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		f.Altitude = m.Altitude
		f.Satellites = m.NumSatellites
	}
	return false
}
