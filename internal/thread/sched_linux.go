// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package thread

import (
	"golang.org/x/sys/unix"
)

// setRealtimePriority moves the calling OS thread to SCHED_FIFO.
func setRealtimePriority(prio int) error {
	if prio <= 0 {
		return nil
	}
	attr := &unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(prio),
	}
	return unix.SchedSetAttr(0, attr, 0)
}
