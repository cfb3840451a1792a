// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"

	"github.com/relabs-tech/flight_computer/internal/bus"
)

// BitField describes a field inside a register.
type BitField struct {
	Bits        string `json:"bits"` // e.g. "7:4" or "3"
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo describes one register of a chip.
type RegisterInfo struct {
	Address     byte       `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// Readable reports whether the register may be read.
func (r RegisterInfo) Readable() bool {
	return r.Access != "W"
}

var lsm303AccelRegisters = []RegisterInfo{
	{Address: lsm303CtrlReg1A, Name: "CTRL_REG1_A", Description: "Data rate and axis enable", Access: "RW",
		BitFields: []BitField{
			{Bits: "7:4", Name: "ODR", Description: "Output data rate", Values: "0=off, 1=1Hz, 2=10Hz, 3=25Hz, 4=50Hz, 5=100Hz, 6=200Hz, 7=400Hz"},
			{Bits: "3", Name: "LPen", Description: "Low power mode", Values: "0=normal, 1=low power"},
			{Bits: "2:0", Name: "ZYXen", Description: "Axis enable"},
		}},
	{Address: 0x21, Name: "CTRL_REG2_A", Description: "High pass filter", Access: "RW"},
	{Address: 0x22, Name: "CTRL_REG3_A", Description: "Interrupt routing", Access: "RW"},
	{Address: lsm303CtrlReg4A, Name: "CTRL_REG4_A", Description: "Scale and resolution", Access: "RW",
		BitFields: []BitField{
			{Bits: "7", Name: "BDU", Description: "Block data update", Values: "0=continuous, 1=after read"},
			{Bits: "5:4", Name: "FS", Description: "Full scale", Values: "0=±2g, 1=±4g, 2=±8g, 3=±16g"},
			{Bits: "3", Name: "HR", Description: "High resolution output"},
		}},
	{Address: lsm303CtrlReg5A, Name: "CTRL_REG5_A", Description: "FIFO and boot", Access: "RW",
		BitFields: []BitField{
			{Bits: "7", Name: "BOOT", Description: "Reboot memory content"},
			{Bits: "6", Name: "FIFO_EN", Description: "FIFO enable"},
		}},
	{Address: lsm303StatusRegA, Name: "STATUS_REG_A", Description: "Data status", Access: "R",
		BitFields: []BitField{
			{Bits: "7", Name: "ZYXOR", Description: "Data overrun"},
			{Bits: "3", Name: "ZYXDA", Description: "New data available"},
		}},
	{Address: lsm303OutXLA, Name: "OUT_X_L_A", Description: "X low byte", Access: "R"},
	{Address: 0x29, Name: "OUT_X_H_A", Description: "X high byte", Access: "R"},
	{Address: 0x2A, Name: "OUT_Y_L_A", Description: "Y low byte", Access: "R"},
	{Address: 0x2B, Name: "OUT_Y_H_A", Description: "Y high byte", Access: "R"},
	{Address: 0x2C, Name: "OUT_Z_L_A", Description: "Z low byte", Access: "R"},
	{Address: 0x2D, Name: "OUT_Z_H_A", Description: "Z high byte", Access: "R"},
}

var lsm303MagRegisters = []RegisterInfo{
	{Address: lsm303CraRegM, Name: "CRA_REG_M", Description: "Data rate", Access: "RW",
		BitFields: []BitField{
			{Bits: "7", Name: "TEMP_EN", Description: "Temperature sensor enable"},
			{Bits: "4:2", Name: "DO", Description: "Output data rate", Values: "0=0.75Hz ... 5=30Hz, 6=75Hz, 7=220Hz"},
		}},
	{Address: lsm303CrbRegM, Name: "CRB_REG_M", Description: "Gain", Access: "RW",
		BitFields: []BitField{
			{Bits: "7:5", Name: "GN", Description: "Gain", Values: "1=±1.3G ... 7=±8.1G"},
		}},
	{Address: lsm303MrRegM, Name: "MR_REG_M", Description: "Mode", Access: "RW",
		BitFields: []BitField{
			{Bits: "1:0", Name: "MD", Description: "Mode", Values: "0=continuous, 1=single, 2/3=sleep"},
		}},
	{Address: lsm303OutXHM, Name: "OUT_X_H_M", Description: "X high byte", Access: "R"},
	{Address: 0x04, Name: "OUT_X_L_M", Description: "X low byte", Access: "R"},
	{Address: 0x05, Name: "OUT_Z_H_M", Description: "Z high byte", Access: "R"},
	{Address: 0x06, Name: "OUT_Z_L_M", Description: "Z low byte", Access: "R"},
	{Address: 0x07, Name: "OUT_Y_H_M", Description: "Y high byte", Access: "R"},
	{Address: 0x08, Name: "OUT_Y_L_M", Description: "Y low byte", Access: "R"},
	{Address: 0x09, Name: "SR_REG_M", Description: "Status", Access: "R"},
}

var l3gd20Registers = []RegisterInfo{
	{Address: l3gd20WhoAmI, Name: "WHO_AM_I", Description: "Device id, 0xD4 or 0xD7", Access: "R"},
	{Address: l3gd20Ctrl1, Name: "CTRL_REG1", Description: "Data rate, bandwidth and power", Access: "RW",
		BitFields: []BitField{
			{Bits: "7:6", Name: "DR", Description: "Output data rate", Values: "0=95Hz, 1=190Hz, 2=380Hz, 3=760Hz"},
			{Bits: "5:4", Name: "BW", Description: "Bandwidth"},
			{Bits: "3", Name: "PD", Description: "Power down", Values: "0=power down, 1=normal"},
			{Bits: "2:0", Name: "ZYXen", Description: "Axis enable"},
		}},
	{Address: 0x21, Name: "CTRL_REG2", Description: "High pass filter", Access: "RW"},
	{Address: 0x22, Name: "CTRL_REG3", Description: "Interrupt routing", Access: "RW"},
	{Address: l3gd20Ctrl4, Name: "CTRL_REG4", Description: "Full scale", Access: "RW",
		BitFields: []BitField{
			{Bits: "7", Name: "BDU", Description: "Block data update"},
			{Bits: "5:4", Name: "FS", Description: "Full scale", Values: "0=250dps, 1=500dps, 2/3=2000dps"},
		}},
	{Address: 0x24, Name: "CTRL_REG5", Description: "FIFO and boot", Access: "RW"},
	{Address: 0x26, Name: "OUT_TEMP", Description: "Temperature", Access: "R"},
	{Address: l3gd20Status, Name: "STATUS_REG", Description: "Data status", Access: "R",
		BitFields: []BitField{
			{Bits: "7", Name: "ZYXOR", Description: "Data overrun"},
			{Bits: "3", Name: "ZYXDA", Description: "New data available"},
		}},
	{Address: l3gd20OutXL, Name: "OUT_X_L", Description: "X low byte", Access: "R"},
	{Address: 0x29, Name: "OUT_X_H", Description: "X high byte", Access: "R"},
	{Address: 0x2A, Name: "OUT_Y_L", Description: "Y low byte", Access: "R"},
	{Address: 0x2B, Name: "OUT_Y_H", Description: "Y high byte", Access: "R"},
	{Address: 0x2C, Name: "OUT_Z_L", Description: "Z low byte", Access: "R"},
	{Address: 0x2D, Name: "OUT_Z_H", Description: "Z high byte", Access: "R"},
}

// RegisterMap returns the documented registers of the model a name
// belongs to, or nil for chips driven through a periph driver.
func RegisterMap(name string) []RegisterInfo {
	switch name {
	case "lsm303", "lsm303dlhc", "lsm303_accel":
		return lsm303AccelRegisters
	case "lsm303_mag", "lsm303dlhc_mag":
		return lsm303MagRegisters
	case "l3gd20", "l3gd20h":
		return l3gd20Registers
	}
	return nil
}

// DumpRegisters reads every readable register in regs, one transaction
// each. It stops at the first bus error.
func DumpRegisters(b bus.Bus, addr uint16, regs []RegisterInfo) (map[byte]byte, error) {
	out := make(map[byte]byte, len(regs))
	for _, r := range regs {
		if !r.Readable() {
			continue
		}
		v, err := b.ReadRegister(addr, r.Address, 1)
		if err != nil {
			return out, err
		}
		out[r.Address] = v[0]
	}
	return out, nil
}

// FormatRegister renders a register value for listings.
func FormatRegister(r RegisterInfo, v byte) string {
	return fmt.Sprintf("0x%02X %-12s 0x%02X %08b", r.Address, r.Name, v, v)
}
