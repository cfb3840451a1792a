// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

// DefaultModels returns every bus sensor model the flight computer supports.
func DefaultModels() []Model {
	return []Model{
		{Address: LSM303AccelAddress, Names: []string{"lsm303", "lsm303dlhc", "lsm303_accel"}, New: NewLSM303Accel},
		{Address: LSM303MagAddress, Names: []string{"lsm303_mag", "lsm303dlhc_mag"}, New: NewLSM303Mag},
		{Address: L3GD20Address, Names: []string{"l3gd20", "l3gd20h"}, New: NewL3GD20},
		{Address: BMP280Address, Names: []string{"bmp280", "bme280"}, New: NewBMP280},
		{Address: BMP280AltAddress, Names: []string{"bmp280", "bme280"}, New: NewBMP280},
		{Address: INA219Address, Names: []string{"ina219"}, New: NewINA219},
	}
}

// RegisterDefaults registers DefaultModels on r.
func RegisterDefaults(r *Registry) {
	for _, m := range DefaultModels() {
		r.RegisterModel(m)
	}
}
