// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"slices"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/flight_computer/internal/bus"
)

// Factory builds an instance of a model at an address on a bus.
type Factory func(b bus.Bus, addr uint16) (Instance, error)

// Model is a sensor type the registry knows how to build. Address is the
// address it is found at by default.
type Model struct {
	Address uint16
	Names   []string
	New     Factory
}

// Matches reports whether name is one of the model names.
func (m Model) Matches(name string) bool {
	return slices.Contains(m.Names, name)
}

// DiscoveryMiss records an address that produced no instance.
type DiscoveryMiss struct {
	Address uint16 `json:"address"`
	Name    string `json:"name,omitempty"`
	Err     error  `json:"-"`
}

func (m DiscoveryMiss) Error() string {
	if m.Name != "" {
		return fmt.Sprintf("0x%02X (%s): %v", m.Address, m.Name, m.Err)
	}
	return fmt.Sprintf("0x%02X: %v", m.Address, m.Err)
}

var (
	// ErrUnknownAddress means no model is registered at the address.
	ErrUnknownAddress = errors.New("no model registered at address")
	// ErrUnknownModel means a binding names a model nobody registered.
	ErrUnknownModel = errors.New("no model registered with that name")
)

// Registry maps bus addresses to sensor models and keeps the devices
// discovered at startup. Registration, binding and instantiation happen
// on the startup thread; lookups may come from any thread afterwards.
type Registry struct {
	mu       sync.RWMutex
	models   map[uint16]Model
	bindings map[uint16]string
	devices  []Instance
	misses   []DiscoveryMiss
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		models:   map[uint16]Model{},
		bindings: map[uint16]string{},
	}
}

// RegisterModel adds a model at its default address. Registering a second
// model at the same address replaces the first.
func (r *Registry) RegisterModel(m Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.models[m.Address]; ok {
		log.Warnf("sensors: model %v replaces %v at 0x%02X", m.Names, prev.Names, m.Address)
	}
	r.models[m.Address] = m
}

// Models returns the registered models sorted by address.
func (r *Registry) Models() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b Model) int { return int(a.Address) - int(b.Address) })
	return out
}

// BindAddress forces the device at addr to be built as the model named
// name, regardless of which model is registered at addr.
func (r *Registry) BindAddress(addr uint16, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[addr] = name
}

// ScanBus lists the responding addresses, in ascending order.
func (r *Registry) ScanBus(b bus.Bus) ([]uint16, error) {
	addrs, err := b.Scan()
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", b)
	}
	return addrs, nil
}

// resolve picks the model for addr: a binding wins over the default.
func (r *Registry) resolve(addr uint16) (Model, string, error) {
	r.mu.RLock()
	name, bound := r.bindings[addr]
	m, ok := r.models[addr]
	r.mu.RUnlock()

	if bound {
		for _, m := range r.Models() {
			if m.Matches(name) {
				return m, name, nil
			}
		}
		return Model{}, name, ErrUnknownModel
	}
	if !ok {
		return Model{}, "", ErrUnknownAddress
	}
	return m, PrimaryName(m.Names), nil
}

// PrimaryName returns the first name, or "unknown".
func PrimaryName(names []string) string {
	if len(names) == 0 {
		return "unknown"
	}
	return names[0]
}

// Instantiate builds an instance for every address, in the given order.
// Addresses that yield nothing are recorded as misses and skipped; one
// bad device never aborts discovery. Returns the new instances and misses.
func (r *Registry) Instantiate(b bus.Bus, addrs []uint16) ([]Instance, []DiscoveryMiss) {
	var (
		built  []Instance
		misses []DiscoveryMiss
		seen   = map[uint16]bool{}
	)
	for _, addr := range addrs {
		if seen[addr] {
			continue
		}
		seen[addr] = true

		m, name, err := r.resolve(addr)
		if err != nil {
			misses = append(misses, r.miss(addr, name, err))
			continue
		}
		inst, err := build(m, b, addr)
		if err != nil {
			misses = append(misses, r.miss(addr, name, err))
			continue
		}
		log.Infof("sensors: 0x%02X -> %s [%s]", addr, PrimaryName(inst.Names()), inst.Capabilities())
		built = append(built, inst)
	}

	r.mu.Lock()
	r.devices = append(r.devices, built...)
	r.misses = append(r.misses, misses...)
	r.mu.Unlock()
	return built, misses
}

func build(m Model, b bus.Bus, addr uint16) (inst Instance, err error) {
	defer func() {
		if p := recover(); p != nil {
			inst, err = nil, errors.Errorf("factory panic: %v", p)
		}
	}()
	inst, err = m.New(b, addr)
	if err == nil && inst == nil {
		err = errors.New("factory returned no instance")
	}
	return inst, err
}

func (r *Registry) miss(addr uint16, name string, err error) DiscoveryMiss {
	m := DiscoveryMiss{Address: addr, Name: name, Err: err}
	log.Warnf("sensors: discovery miss %v", m)
	return m
}

// Adopt adds instances that were not discovered on the bus (serial GPS).
func (r *Registry) Adopt(insts ...Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = append(r.devices, insts...)
}

// Devices returns every live instance in discovery order.
func (r *Registry) Devices() []Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.devices)
}

// Misses returns every discovery miss recorded so far.
func (r *Registry) Misses() []DiscoveryMiss {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.misses)
}

// Classified groups instances by capability. An instance with several
// capabilities appears in each of its groups.
type Classified map[Capability][]Instance

// Count returns the number of instances with capability c.
func (c Classified) Count(capability Capability) int {
	return len(c[capability])
}

// ClassifyAll groups the discovered devices by capability, preserving
// discovery order inside every group.
func (r *Registry) ClassifyAll() Classified {
	return Classify(r.Devices())
}

// Classify groups insts by capability.
func Classify(insts []Instance) Classified {
	out := Classified{}
	for _, c := range AllCapabilities {
		for _, inst := range insts {
			if inst.Capabilities().Has(c) {
				out[c] = append(out[c], inst)
			}
		}
	}
	return out
}

// DeviceInfo describes one instance for logs, the status page and probe.
type DeviceInfo struct {
	Name         string       `json:"name"`
	Names        []string     `json:"names"`
	Capabilities Capabilities `json:"capabilities"`
	Calibrated   bool         `json:"calibrated"`
}

// Describe returns a snapshot of every device.
func (r *Registry) Describe() []DeviceInfo {
	devs := r.Devices()
	out := make([]DeviceInfo, 0, len(devs))
	for _, d := range devs {
		names := d.Names()
		out = append(out, DeviceInfo{
			Name:         PrimaryName(names),
			Names:        names,
			Capabilities: d.Capabilities(),
			Calibrated:   d.Calibrated(),
		})
	}
	return out
}

// Close releases every device holding an OS resource.
func (r *Registry) Close() error {
	var first error
	for _, d := range r.Devices() {
		if c, ok := d.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
