// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build linux

package clock

import (
	"golang.org/x/sys/unix"
)

// TIMER_ABSTIME for clock_nanosleep(2).
const timerAbstime = 1

func systemTicks() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint64(ts.Sec)*1_000_000 + uint64(ts.Nsec)/1_000
}

func sleepUntilSystem(tick uint64) {
	ts := unix.NsecToTimespec(int64(tick) * 1_000)
	for {
		err := unix.ClockNanosleep(unix.CLOCK_MONOTONIC, timerAbstime, &ts, nil)
		if err != unix.EINTR {
			return
		}
	}
}
