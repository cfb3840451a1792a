// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package app wires the flight core to its outer surfaces: the MQTT
// black box and controller link, the status page and the status display.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/flight_computer/internal/board"
	"github.com/relabs-tech/flight_computer/internal/bus"
	"github.com/relabs-tech/flight_computer/internal/clock"
	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/control"
	"github.com/relabs-tech/flight_computer/internal/flight"
	"github.com/relabs-tech/flight_computer/internal/sensors"
	"github.com/relabs-tech/flight_computer/internal/telemetry"
)

const (
	shutdownTimeout = 5 * time.Second
	webStaticDir    = "web"
	webInterval     = 200 * time.Millisecond
)

func boardOptions(cfg *config.Config) board.Options {
	return board.Options{
		Type:       cfg.Board.Type,
		I2CBus:     cfg.Board.I2CBus,
		BusTimeout: time.Duration(cfg.Board.BusTimeoutMs) * time.Millisecond,
		LoadingLED: cfg.Board.LoadingLED,
		Registers:  cfg.Board.Registers,
		Seed:       uint64(time.Now().UnixNano()),
	}
}

// RunFlight brings the board and the flight core up and runs until ctx
// is cancelled, then shuts everything down in reverse.
func RunFlight(ctx context.Context, cfg *config.Config) error {
	b, err := board.Open(boardOptions(cfg))
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warnf("board: close: %v", err)
		}
	}()

	clk := clock.NewMonotonic()
	deps := flight.Deps{Clock: clk}

	var (
		client mqtt.Client
		box    *telemetry.MQTT
	)
	if cfg.MQTT.Broker != "" {
		client, err = telemetry.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)

		box = telemetry.NewMQTT(client, cfg.MQTT.TopicPrefix, cfg.MQTT.Queue)
		defer box.Close()
		deps.BlackBox = box

		link := control.NewMQTTLink(clk, uint64(cfg.Controller.TimeoutMs)*1000)
		if err := link.Subscribe(client, cfg.Controller.Topic); err != nil {
			return err
		}
		deps.Link = link
	} else {
		log.Warn("app: no MQTT broker configured, telemetry discarded and controller in failsafe")
	}

	f, err := flight.New(cfg, b, deps)
	if err != nil {
		return err
	}
	f.Start()

	g, gctx := errgroup.WithContext(ctx)

	var web *Web
	if cfg.Web.Enabled {
		web = NewWeb(f, cfg.Web.Port, webStaticDir, webInterval)
		g.Go(web.ListenAndServe)
	}

	if cfg.Display.Enabled {
		screen, closeScreen, err := openScreen(cfg, b)
		if err != nil {
			log.Warnf("display: %v", err)
		} else {
			defer closeScreen()
			interval := time.Duration(cfg.Display.IntervalMs) * time.Millisecond
			g.Go(func() error { return RunDisplay(gctx, screen, f, interval) })
		}
	}

	<-gctx.Done()
	log.Info("app: shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if web != nil {
		if err := web.Shutdown(sctx); err != nil {
			log.Warnf("web: shutdown: %v", err)
		}
	}
	serr := f.Shutdown(sctx)
	if err := g.Wait(); err != nil {
		return err
	}
	return serr
}

// openScreen binds the display on its own bus when one is configured,
// otherwise on the board bus.
func openScreen(cfg *config.Config, b *board.Board) (Screen, func(), error) {
	var (
		dbus     i2c.Bus = b.Bus
		closeBus         = func() {}
	)
	if cfg.Display.I2CBus != "" {
		ib, err := bus.OpenI2C(cfg.Display.I2CBus, time.Duration(cfg.Board.BusTimeoutMs)*time.Millisecond)
		if err != nil {
			return nil, nil, err
		}
		dbus = ib
		closeBus = func() { _ = ib.Close() }
	}
	dev, err := OpenDisplay(dbus)
	if err != nil {
		closeBus()
		return nil, nil, err
	}
	return dev, func() {
		_ = dev.Halt()
		closeBus()
	}, nil
}

// RunProbe detects the sensors on the configured board and prints what
// the registry supports, what it found and what it could not bind. With
// registers set it also dumps the documented registers of every chip
// found at its default address.
func RunProbe(cfg *config.Config, w io.Writer, registers bool) error {
	b, err := board.Open(boardOptions(cfg))
	if err != nil {
		return err
	}
	defer b.Close()

	reg := sensors.NewRegistry()
	sensors.RegisterDefaults(reg)

	f, err := flight.New(cfg, b, flight.Deps{Registry: reg})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = f.Shutdown(ctx)
	}()

	if err := writeProbe(w, reg.Models(), f.Devices(), f.Misses()); err != nil {
		return errors.Wrap(err, "probe")
	}
	if !registers {
		return nil
	}
	return errors.Wrap(writeRegisters(w, b.Bus, reg.Models()), "probe registers")
}

func writeRegisters(w io.Writer, b bus.Bus, models []sensors.Model) error {
	addrs, err := b.Scan()
	if err != nil {
		return err
	}
	present := map[uint16]bool{}
	for _, a := range addrs {
		present[a] = true
	}
	for _, m := range models {
		regs := sensors.RegisterMap(sensors.PrimaryName(m.Names))
		if regs == nil || !present[m.Address] {
			continue
		}
		values, err := sensors.DumpRegisters(b, m.Address, regs)
		if err != nil {
			log.Warnf("probe: %s: %v", m.Names[0], err)
			continue
		}
		fmt.Fprintf(w, "\n%s @0x%02X\n", strings.Join(m.Names, "/"), m.Address)
		for _, r := range regs {
			if v, ok := values[r.Address]; ok {
				fmt.Fprintln(w, sensors.FormatRegister(r, v))
			}
		}
	}
	return nil
}

func writeProbe(w io.Writer, models []sensors.Model, devices []sensors.DeviceInfo, misses []sensors.DiscoveryMiss) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "SUPPORTED\tADDRESS")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t0x%02X\n", strings.Join(m.Names, "/"), m.Address)
	}
	fmt.Fprintln(tw, "\t")

	fmt.Fprintln(tw, "DEVICE\tCAPABILITIES")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%s\n", d.Name, d.Capabilities)
	}
	if len(misses) > 0 {
		fmt.Fprintln(tw, "\t")
		fmt.Fprintln(tw, "MISS\tREASON")
		for _, m := range misses {
			fmt.Fprintf(tw, "0x%02X\t%v\n", m.Address, m.Err)
		}
	}
	return tw.Flush()
}
