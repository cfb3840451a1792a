// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build !linux

package clock

import "time"

var epoch = time.Now()

func systemTicks() uint64 {
	return uint64(time.Since(epoch).Microseconds())
}

func sleepUntilSystem(tick uint64) {
	now := systemTicks()
	if tick > now {
		time.Sleep(time.Duration(tick-now) * time.Microsecond)
	}
}
