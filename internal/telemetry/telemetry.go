// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry is the black box: a fire-and-forget sink for named
// values produced by the periodic threads.
package telemetry

import (
	"sync"
)

// BlackBox receives telemetry values. Enqueue never blocks the caller.
type BlackBox interface {
	Enqueue(key string, value any)
}

// Entry is one enqueued value.
type Entry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Discard drops everything.
type Discard struct{}

func (Discard) Enqueue(string, any) {}

// Memory keeps every entry in memory. Used by tests and the status page.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	last    map[string]any
	limit   int
}

// NewMemory returns a memory black box keeping at most limit entries
// (0 keeps everything). The last value of every key is always kept.
func NewMemory(limit int) *Memory {
	return &Memory{last: map[string]any{}, limit: limit}
}

func (m *Memory) Enqueue(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{Key: key, Value: value})
	if m.limit > 0 && len(m.entries) > m.limit {
		m.entries = m.entries[len(m.entries)-m.limit:]
	}
	m.last[key] = value
}

// Values returns every retained value enqueued under key, oldest first.
func (m *Memory) Values(key string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []any
	for _, e := range m.entries {
		if e.Key == key {
			out = append(out, e.Value)
		}
	}
	return out
}

// Last returns the most recent value of key.
func (m *Memory) Last(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.last[key]
	return v, ok
}

// Snapshot returns the last value of every key.
func (m *Memory) Snapshot() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.last))
	for k, v := range m.last {
		out[k] = v
	}
	return out
}

// Tee fans every value out to several black boxes.
type Tee []BlackBox

func (t Tee) Enqueue(key string, value any) {
	for _, b := range t {
		b.Enqueue(key, value)
	}
}
