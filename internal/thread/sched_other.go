// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build !linux

package thread

import log "github.com/sirupsen/logrus"

func setRealtimePriority(prio int) error {
	if prio > 0 {
		log.Debugf("thread: real-time priority %d not supported on this platform", prio)
	}
	return nil
}
