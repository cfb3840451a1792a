// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package board

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Registers is a small persistent key/value store for values that must
// survive a restart, such as calibration offsets. It is kept as a flat
// YAML map.
type Registers struct {
	mu     sync.Mutex
	path   string
	values map[string]float64
}

// LoadRegisters reads the store at path. A missing file is an empty store;
// an empty path keeps the store in memory.
func LoadRegisters(path string) (*Registers, error) {
	r := &Registers{path: path, values: map[string]float64{}}
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read registers")
	}
	if err := yaml.Unmarshal(data, &r.values); err != nil {
		return nil, errors.Wrapf(err, "parse registers %s", path)
	}
	if r.values == nil {
		r.values = map[string]float64{}
	}
	return r, nil
}

// Register returns the value stored under key.
func (r *Registers) Register(key string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the stored keys, sorted.
func (r *Registers) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SaveRegister stores value under key and writes the file.
func (r *Registers) SaveRegister(key string, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	if r.path == "" {
		return nil
	}
	data, err := yaml.Marshal(r.values)
	if err != nil {
		return errors.Wrap(err, "encode registers")
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".registers-*")
	if err != nil {
		return errors.Wrap(err, "write registers")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "write registers")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "write registers")
	}
	return errors.Wrap(os.Rename(tmp.Name(), r.path), "write registers")
}
