// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package cmd is the flight command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relabs-tech/flight_computer/internal/app"
	"github.com/relabs-tech/flight_computer/internal/config"
)

// DefaultOutput is where init writes the template.
const DefaultOutput = config.DefaultConfigName + ".yaml"

var RootCmd = &cobra.Command{
	Use:   "flight",
	Short: "flight control core: sensors, IMU calibration and stabilization",
	Long:  "flight control core: sensors, IMU calibration and stabilization",
	PersistentPreRun: func(*cobra.Command, []string) {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	},
	SilenceUsage: true,
}

func commonFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "configuration file path")
	cmd.Flags().String("board", "", "board type, overrides board.type")
	cmd.Flags().Bool("debug", false, "toggle debug logging")
}

// loadConfig reads the configuration selected by the flags and applies
// the log level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	return cfg, nil
}

func FlyCmdRunE(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.RunFlight(ctx, cfg)
}

var FlyCmd = &cobra.Command{
	Use:        "fly",
	SuggestFor: []string{"fl", "run", "serve"},
	Short:      "fly starts the flight core using the configuration",
	Long: `fly starts the flight core. The configuration is read, in order, from:
1. path given by the --config flag
2. path in the FLIGHT_CONFIG environment variable
3. flight.yaml in the current directory or /etc/flight
Values are overridden by FLIGHT_* environment variables and the --board and --debug flags.
The process runs until interrupted, then stops every thread in reverse start order.
`,
	Example: `  flight fly --config=/etc/flight/flight.yaml
  flight fly --board generic --debug`,
	RunE: FlyCmdRunE,
}

func ProbeCmdRunE(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	registers, _ := cmd.Flags().GetBool("registers")
	return app.RunProbe(cfg, cmd.OutOrStdout(), registers)
}

var ProbeCmd = &cobra.Command{
	Use:        "probe",
	SuggestFor: []string{"pro", "pr", "prob"},
	Short:      "probe lists the supported sensors and the ones found on the bus",
	Long: `probe scans the bus of the configured board, applies sensors_map_i2c and
prints the supported sensor models, the devices found and the addresses
that could not be bound. With --registers the documented registers of
every chip found are dumped.
`,
	Example: `  flight probe
  flight probe --board rpi --registers`,
	RunE: ProbeCmdRunE,
}

// InitCmdRunE writes the default configuration.
func InitCmdRunE(cmd *cobra.Command, _ []string) error {
	printFlag, _ := cmd.Flags().GetBool("print")
	output, _ := cmd.Flags().GetString("output")
	overwrite, _ := cmd.Flags().GetBool("yes")

	cfg := config.New()
	if printFlag {
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	}
	if _, err := os.Stat(output); err == nil && !overwrite {
		return errors.Errorf("%s exists, use --yes to overwrite", output)
	}
	if err := cfg.Save(output); err != nil {
		return err
	}
	log.Infof("config: template written to %s", output)
	return nil
}

var InitCmd = &cobra.Command{
	Use:        "init",
	SuggestFor: []string{"ini", "in"},
	Short:      "init creates a configuration template",
	Long: `init creates a configuration template with every default value.
If --print is present the template is printed to stdout.
Otherwise it is written to --output, refusing to overwrite unless --yes is given.
`,
	Example: `  flight init --print
  flight init -o /etc/flight/flight.yaml -y`,
	RunE: InitCmdRunE,
}

func getRootCmd() *cobra.Command {
	commonFlags(FlyCmd)
	RootCmd.AddCommand(FlyCmd)

	commonFlags(ProbeCmd)
	ProbeCmd.Flags().Bool("registers", false, "dump chip registers")
	RootCmd.AddCommand(ProbeCmd)

	InitCmd.Flags().Bool("print", false, "print config to stdout")
	InitCmd.Flags().BoolP("yes", "y", false, "overwrite")
	InitCmd.Flags().StringP("output", "o", DefaultOutput, "output path")
	RootCmd.AddCommand(InitCmd)

	return RootCmd
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := getRootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
