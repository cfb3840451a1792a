// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/json"
	"strings"
)

// Capability is one kind of measurement a sensor instance can provide.
type Capability uint8

// Capability tags. An instance may advertise several of them.
const (
	Gyroscope Capability = 1 << iota
	Accelerometer
	Magnetometer
	Altimeter
	GPS
	Voltmeter
	CurrentSensor
)

// AllCapabilities lists every tag in a fixed order, used for deterministic
// classification and diagnostics.
var AllCapabilities = []Capability{
	Gyroscope,
	Accelerometer,
	Magnetometer,
	Altimeter,
	GPS,
	Voltmeter,
	CurrentSensor,
}

func (c Capability) String() string {
	switch c {
	case Gyroscope:
		return "Gyroscope"
	case Accelerometer:
		return "Accelerometer"
	case Magnetometer:
		return "Magnetometer"
	case Altimeter:
		return "Altimeter"
	case GPS:
		return "GPS"
	case Voltmeter:
		return "Voltmeter"
	case CurrentSensor:
		return "CurrentSensor"
	}
	return "Unknown"
}

// Capabilities is a set of capability tags.
type Capabilities uint8

// Caps builds a set from individual tags.
func Caps(cs ...Capability) Capabilities {
	var set Capabilities
	for _, c := range cs {
		set |= Capabilities(c)
	}
	return set
}

// Has reports whether c is in the set.
func (s Capabilities) Has(c Capability) bool {
	return s&Capabilities(c) != 0
}

// List returns the tags in the set in AllCapabilities order.
func (s Capabilities) List() []Capability {
	var out []Capability
	for _, c := range AllCapabilities {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s Capabilities) String() string {
	names := make([]string, 0, len(AllCapabilities))
	for _, c := range s.List() {
		names = append(names, c.String())
	}
	return strings.Join(names, "+")
}

// MarshalJSON encodes the set as a list of tag names.
func (s Capabilities) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, len(AllCapabilities))
	for _, c := range s.List() {
		names = append(names, c.String())
	}
	return json.Marshal(names)
}
