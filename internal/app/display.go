// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/flight_computer/internal/flight"
	"github.com/relabs-tech/flight_computer/internal/imu"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
)

// Screen is a monochrome display. *ssd1306.Dev is one.
type Screen interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// OpenDisplay binds an SSD1306 on the bus.
func OpenDisplay(b i2c.Bus) (*ssd1306.Dev, error) {
	dev, err := ssd1306.NewI2C(b, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, errors.Wrap(err, "display: init ssd1306")
	}
	log.Info("display: ssd1306 initialized")
	return dev, nil
}

// RunDisplay shows the splash screen, then redraws the status every
// interval until ctx is done.
func RunDisplay(ctx context.Context, screen Screen, src StatusSource, interval time.Duration) error {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if err := draw(screen, renderSplash()); err != nil {
		log.Warnf("display: splash: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Debug("display: starting update loop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := draw(screen, renderStatus(src.Status())); err != nil {
			log.Debugf("display: %v", err)
		}
	}
}

func draw(screen Screen, img *image1bit.VerticalLSB) error {
	return screen.Draw(screen.Bounds(), img, image.Point{})
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLines(drawer *font.Drawer, x int, lines ...string) {
	for i, l := range lines {
		drawer.Dot = fixed.P(x, lineHeight*(i+1))
		drawer.DrawString(l)
	}
}

func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newCanvas()
	drawer.Dot = fixed.P(10, 26)
	drawer.DrawString("Flight Pi")
	drawer.Dot = fixed.P(10, 43)
	drawer.DrawString("Starting...")
	return img
}

// renderStatus lays out the IMU state and loop rate on the first line and
// attitude or calibration progress below.
func renderStatus(st flight.Status) *image1bit.VerticalLSB {
	img, drawer := newCanvas()

	head := fmt.Sprintf("%s %dHz", shortState(st.IMUState), st.LoopFrequency)
	switch {
	case st.IMUState == imu.Off:
		drawLines(drawer, 0, head, "No IMU sensors", fmt.Sprintf("Dev:%d Miss:%d", len(st.Devices), st.Misses))
	case st.IMUState.Calibrating():
		msg := "Keep still..."
		if st.Stuck {
			msg = "Calib stuck!"
		}
		drawLines(drawer, 0, head, "Calibrating", msg)
	default:
		p := st.Estimate.Pose
		drawLines(drawer, 0,
			head,
			fmt.Sprintf("R:%6.1f P:%6.1f", p.Roll, p.Pitch),
			fmt.Sprintf("Y:%6.1f", p.Yaw),
			fmt.Sprintf("%.2fV %.2fA", st.Voltage, st.Current),
		)
	}
	return img
}

func shortState(s imu.State) string {
	switch s {
	case imu.Off:
		return "OFF"
	case imu.Calibrating, imu.CalibratingAll:
		return "CAL"
	case imu.CalibrationDone:
		return "DONE"
	case imu.Running:
		return "RUN"
	}
	return "?"
}
