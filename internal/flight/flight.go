// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package flight owns the flight core: device detection, the IMU, and the
// periodic threads driving them. One Flight exists per process and is
// passed to whatever needs it.
package flight

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/flight_computer/internal/board"
	"github.com/relabs-tech/flight_computer/internal/clock"
	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/control"
	"github.com/relabs-tech/flight_computer/internal/imu"
	"github.com/relabs-tech/flight_computer/internal/sensors"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
	"github.com/relabs-tech/flight_computer/internal/thread"
)

// ErrBoardMismatch is returned when the configuration was written for
// another board.
var ErrBoardMismatch = errors.New("board type mismatch")

// Initial stabilizer frequency, before the IMU retunes it.
const initialFrequency = 100

var knownFrames = []string{"multicopter", "plane", "rover"}

// Deps are the collaborators of the flight core. Nil fields get defaults.
type Deps struct {
	Clock      clock.Clock
	BlackBox   telemetry.BlackBox
	Stabilizer control.Stabilizer
	Link       control.Link
	Registry   *sensors.Registry
	Runtime    *thread.Runtime
	// OpenGPS opens a serial GPS; sensors.OpenSerialGPS by default.
	OpenGPS func(name, port string, baud uint) (sensors.Instance, error)
}

// Flight is the owning context of the flight core.
type Flight struct {
	cfg      *config.Config
	board    *board.Board
	clock    clock.Clock
	box      telemetry.BlackBox
	registry *sensors.Registry
	link     control.Link
	openGPS  func(name, port string, baud uint) (sensors.Instance, error)

	imu     *imu.IMU
	loop    *Loop
	runtime *thread.Runtime

	stabilizerThread *thread.Thread
	powerThread      *thread.Thread
	controllerThread *thread.Thread

	power   []sensors.Instance
	voltage atomic.Uint64 // math.Float64bits
	current atomic.Uint64
}

// New runs the startup sequence up to, but not including, starting the
// threads. A board type mismatch is a configuration fault.
func New(cfg *config.Config, b *board.Board, deps Deps) (*Flight, error) {
	ind := b.Indicator
	ind.InformLoading()

	if cfg.Board.Type != b.Type {
		return nil, errors.Wrapf(ErrBoardMismatch, "configuration is for %q, running on %q", cfg.Board.Type, b.Type)
	}

	f := &Flight{
		cfg:      cfg,
		board:    b,
		clock:    deps.Clock,
		box:      deps.BlackBox,
		registry: deps.Registry,
		link:     deps.Link,
		runtime:  deps.Runtime,
		openGPS:  deps.OpenGPS,
	}
	if f.clock == nil {
		f.clock = clock.NewMonotonic()
	}
	if f.box == nil {
		f.box = telemetry.Discard{}
	}
	if f.registry == nil {
		f.registry = sensors.NewRegistry()
		sensors.RegisterDefaults(f.registry)
	}
	if f.link == nil {
		f.link = control.Static(control.Failsafe)
	}
	if f.runtime == nil {
		f.runtime = thread.NewRuntime()
	}
	if f.openGPS == nil {
		f.openGPS = func(name, port string, baud uint) (sensors.Instance, error) {
			return sensors.OpenSerialGPS(name, port, baud)
		}
	}

	if cfg.Username != "" {
		log.Infof("flight: hello %s", cfg.Username)
	}
	if !contains(knownFrames, cfg.Frame.Type) {
		log.Errorf("flight: unknown frame type %q", cfg.Frame.Type)
	}
	ind.InformLoading()

	if err := f.DetectDevices(); err != nil {
		return nil, err
	}
	ind.InformLoading()

	f.imu = imu.New(f.registry.ClassifyAll(), imu.Options{
		CalibrateAll: cfg.IMU.CalibrateAll,
		Passes:       cfg.IMU.CalibrationPasses,
		Retries:      cfg.IMU.CalibrationRetries,
		Alpha:        cfg.IMU.FilterAlpha,
		Persister:    b.Registers,
	})
	ind.InformLoading()

	stab := deps.Stabilizer
	if stab == nil {
		stab = control.NewRecorder(f.box, cfg.Stabilizer.RecordEvery)
	}

	f.stabilizerThread = thread.New("stabilizer", f.clock, func() bool { return f.loop.Tick() })
	f.stabilizerThread.SetFrequency(initialFrequency)
	f.stabilizerThread.SetPriority(cfg.Stabilizer.Priority)
	f.stabilizerThread.SetSleepBias(int64(cfg.Stabilizer.SleepBias))
	f.loop = NewLoop(f.clock, f.imu, stab, f.link, f.box, ind, f.stabilizerThread, LoopOptions{
		LoopTime:             cfg.Stabilizer.LoopTime,
		CalibrationFrequency: cfg.Stabilizer.CalibrationFrequency,
	})

	f.powerThread = thread.New("power", f.clock, f.samplePower)
	f.powerThread.SetFrequency(cfg.Power.Frequency)
	f.powerThread.SetPriority(cfg.Power.Priority)

	f.controllerThread = thread.New("controller", f.clock, func() bool {
		f.link.Poll(f.clock.Now())
		return true
	})
	f.controllerThread.SetFrequency(cfg.Controller.Frequency)
	f.controllerThread.SetPriority(cfg.Controller.Priority)

	return f, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// DetectDevices scans the bus, applies the configured address bindings,
// instantiates the sensors found and adopts the simulated and serial ones.
func (f *Flight) DetectDevices() error {
	models := f.registry.Models()
	supported := make([]string, 0, len(models))
	for _, m := range models {
		supported = append(supported, strings.Join(m.Names, "/"))
	}
	log.Debugf("flight: supported sensors: %s", strings.Join(supported, ", "))

	bindings, err := f.cfg.SensorBindings()
	if err != nil {
		return err
	}
	for addr, name := range bindings {
		f.registry.BindAddress(addr, name)
	}

	addrs, err := f.registry.ScanBus(f.board.Bus)
	if err != nil {
		log.Warnf("flight: %v", err)
	}
	f.registry.Instantiate(f.board.Bus, addrs)
	f.registry.Adopt(f.board.Simulated...)

	for _, s := range f.cfg.SerialSensors {
		if s.Type != "" && s.Type != "gps" {
			log.Warnf("flight: unsupported serial sensor type %q", s.Type)
			continue
		}
		name := s.Name
		if name == "" {
			name = "gps"
		}
		baud := s.Baud
		if baud == 0 {
			baud = 9600
		}
		g, err := f.openGPS(name, s.Port, baud)
		if err != nil {
			log.Warnf("flight: %v", err)
			continue
		}
		f.registry.Adopt(g)
	}

	classified := f.registry.ClassifyAll()
	for _, c := range sensors.AllCapabilities {
		insts := classified[c]
		names := make([]string, 0, len(insts))
		for _, s := range insts {
			names = append(names, sensors.PrimaryName(s.Names()))
		}
		log.Infof("flight: %d %s [%s]", len(insts), c, strings.Join(names, ", "))
	}

	f.power = nil
	seen := map[sensors.Instance]bool{}
	for _, c := range []sensors.Capability{sensors.Voltmeter, sensors.CurrentSensor} {
		for _, s := range classified[c] {
			if !seen[s] {
				seen[s] = true
				f.power = append(f.power, s)
			}
		}
	}
	return nil
}

func (f *Flight) samplePower() bool {
	for _, s := range f.power {
		sample, err := s.Sample()
		if err != nil {
			log.Debugf("power: %v", err)
			continue
		}
		caps := s.Capabilities()
		if caps.Has(sensors.Voltmeter) {
			f.voltage.Store(math.Float64bits(sample.Voltage))
			f.box.Enqueue("Power:voltage", sample.Voltage)
		}
		if caps.Has(sensors.CurrentSensor) {
			f.current.Store(math.Float64bits(sample.Current))
			f.box.Enqueue("Power:current", sample.Current)
		}
	}
	return true
}

// Start spawns the power, controller and stabilizer threads, in that
// order; Shutdown stops them in reverse.
func (f *Flight) Start() {
	f.box.Enqueue("Flight:start", f.cfg.Frame.Type)
	f.runtime.Spawn(f.powerThread)
	f.runtime.Spawn(f.controllerThread)
	f.runtime.Spawn(f.stabilizerThread)
	log.Info("flight: threads started")
	// the loop only signals the end of loading after a calibration
	if f.imu.State() == imu.Off {
		f.board.Indicator.LoadingDone()
	}
}

// Shutdown stops every thread and releases the sensors.
func (f *Flight) Shutdown(ctx context.Context) error {
	err := f.runtime.StopAll(ctx)
	if cerr := f.registry.Close(); cerr != nil && err == nil {
		err = cerr
	}
	log.Info("flight: stopped")
	return err
}

// LoopFrequency returns the last published loops per second.
func (f *Flight) LoopFrequency() int {
	return f.loop.LoopFrequency()
}

// IMUState returns the IMU lifecycle state.
func (f *Flight) IMUState() imu.State {
	return f.imu.State()
}

// IMU returns the IMU.
func (f *Flight) IMU() *imu.IMU {
	return f.imu
}

// Devices describes every live sensor.
func (f *Flight) Devices() []sensors.DeviceInfo {
	return f.registry.Describe()
}

// Misses returns the addresses that produced no sensor.
func (f *Flight) Misses() []sensors.DiscoveryMiss {
	misses := f.registry.Misses()
	sort.Slice(misses, func(i, j int) bool { return misses[i].Address < misses[j].Address })
	return misses
}

// Status is a snapshot for displays and the status page.
type Status struct {
	Board         string               `json:"board"`
	Frame         string               `json:"frame"`
	IMUState      imu.State            `json:"imu_state"`
	Stuck         bool                 `json:"calibration_stuck"`
	LoopFrequency int                  `json:"lps"`
	Frequency     float64              `json:"frequency_hz"`
	Faults        uint64               `json:"watchdog_faults"`
	Estimate      imu.Estimate         `json:"estimate"`
	Voltage       float64              `json:"voltage_v"`
	Current       float64              `json:"current_a"`
	Devices       []sensors.DeviceInfo `json:"devices"`
	Misses        int                  `json:"discovery_misses"`
}

// Status returns the current snapshot.
func (f *Flight) Status() Status {
	return Status{
		Board:         f.board.Type,
		Frame:         f.cfg.Frame.Type,
		IMUState:      f.imu.State(),
		Stuck:         f.imu.Stuck(),
		LoopFrequency: f.loop.LoopFrequency(),
		Frequency:     f.stabilizerThread.Frequency(),
		Faults:        f.loop.Faults(),
		Estimate:      f.imu.Estimate(),
		Voltage:       math.Float64frombits(f.voltage.Load()),
		Current:       math.Float64frombits(f.current.Load()),
		Devices:       f.registry.Describe(),
		Misses:        len(f.registry.Misses()),
	}
}
