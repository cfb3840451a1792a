// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/flight_computer/internal/config"
)

func initCommand(t *testing.T, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	c := &cobra.Command{Use: "init", RunE: InitCmdRunE}
	c.Flags().Bool("print", false, "")
	c.Flags().BoolP("yes", "y", false, "")
	c.Flags().StringP("output", "o", DefaultOutput, "")
	var out bytes.Buffer
	c.SetOut(&out)
	if err := c.Flags().Parse(args); err != nil {
		t.Fatal(err)
	}
	return c, &out
}

func TestInitPrint(t *testing.T) {
	c, out := initCommand(t, "--print")
	if err := InitCmdRunE(c, nil); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"board:", "type: generic", "loop_time: 2000", "calibration_passes: 2000"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("template missing %q:\n%s", want, out.String())
		}
	}
}

func TestInitWritesLoadableTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flight.yaml")
	c, _ := initCommand(t, "-o", path)
	if err := InitCmdRunE(c, nil); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path, nil)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if cfg.Stabilizer.LoopTime != 2000 || cfg.Board.Type != "generic" {
		t.Errorf("template round trip: %+v", cfg.Stabilizer)
	}
}

func TestInitRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flight.yaml")
	if err := os.WriteFile(path, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, _ := initCommand(t, "-o", path)
	if err := InitCmdRunE(c, nil); err == nil {
		t.Fatal("expected an error for an existing file")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "keep" {
		t.Errorf("file was overwritten: %q", data)
	}

	c, _ = initCommand(t, "-o", path, "-y")
	if err := InitCmdRunE(c, nil); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(path)
	if string(data) == "keep" {
		t.Error("--yes did not overwrite")
	}
}
