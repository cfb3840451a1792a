// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAppName    = "flight"
	DefaultConfigName = "flight"
	EnvPrefix         = "FLIGHT"
)

// Search path used when no file is given.
var DefaultConfigSearchPaths = []string{".", "/etc/" + DefaultAppName}

// ErrInvalid marks configuration faults. Startup must stop on them.
var ErrInvalid = errors.New("invalid configuration")

type BoardOpt struct {
	Type         string `mapstructure:"type" yaml:"type"`
	I2CBus       string `mapstructure:"i2c_bus" yaml:"i2c_bus"`
	BusTimeoutMs int    `mapstructure:"bus_timeout_ms" yaml:"bus_timeout_ms"`
	LoadingLED   string `mapstructure:"loading_led" yaml:"loading_led"`
	Registers    string `mapstructure:"registers" yaml:"registers"`
}

type FrameOpt struct {
	Type string `mapstructure:"type" yaml:"type"`
}

type StabilizerOpt struct {
	LoopTime             int     `mapstructure:"loop_time" yaml:"loop_time"` // µs
	Priority             int     `mapstructure:"priority" yaml:"priority"`
	SleepBias            int     `mapstructure:"sleep_bias" yaml:"sleep_bias"` // µs
	CalibrationFrequency float64 `mapstructure:"calibration_frequency" yaml:"calibration_frequency"`
	RecordEvery          int     `mapstructure:"record_every" yaml:"record_every"`
}

type IMUOpt struct {
	CalibrateAll       bool    `mapstructure:"calibrate_all" yaml:"calibrate_all"`
	CalibrationPasses  int     `mapstructure:"calibration_passes" yaml:"calibration_passes"`
	CalibrationRetries int     `mapstructure:"calibration_retries" yaml:"calibration_retries"`
	FilterAlpha        float64 `mapstructure:"filter_alpha" yaml:"filter_alpha"`
}

type PeriodicOpt struct {
	Frequency float64 `mapstructure:"frequency" yaml:"frequency"`
	Priority  int     `mapstructure:"priority" yaml:"priority"`
}

type ControllerOpt struct {
	Frequency float64 `mapstructure:"frequency" yaml:"frequency"`
	Priority  int     `mapstructure:"priority" yaml:"priority"`
	TimeoutMs int     `mapstructure:"timeout_ms" yaml:"timeout_ms"`
	Topic     string  `mapstructure:"topic" yaml:"topic"`
}

type MQTTOpt struct {
	Broker      string `mapstructure:"broker" yaml:"broker"`
	ClientID    string `mapstructure:"client_id" yaml:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix" yaml:"topic_prefix"`
	Queue       int    `mapstructure:"queue" yaml:"queue"`
}

type WebOpt struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

type DisplayOpt struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	I2CBus     string `mapstructure:"i2c_bus" yaml:"i2c_bus"`
	IntervalMs int    `mapstructure:"interval_ms" yaml:"interval_ms"`
}

type SerialSensorOpt struct {
	Type string `mapstructure:"type" yaml:"type"`
	Name string `mapstructure:"name" yaml:"name"`
	Port string `mapstructure:"port" yaml:"port"`
	Baud uint   `mapstructure:"baud" yaml:"baud"`
}

// Config holds all application configuration values. The typed fields
// are decoded once at load; path queries go through viper and never fail.
type Config struct {
	Username      string            `mapstructure:"username" yaml:"username"`
	Board         BoardOpt          `mapstructure:"board" yaml:"board"`
	Frame         FrameOpt          `mapstructure:"frame" yaml:"frame"`
	Stabilizer    StabilizerOpt     `mapstructure:"stabilizer" yaml:"stabilizer"`
	IMU           IMUOpt            `mapstructure:"imu" yaml:"imu"`
	Power         PeriodicOpt       `mapstructure:"power" yaml:"power"`
	Controller    ControllerOpt     `mapstructure:"controller" yaml:"controller"`
	MQTT          MQTTOpt           `mapstructure:"mqtt" yaml:"mqtt"`
	Web           WebOpt            `mapstructure:"web" yaml:"web"`
	Display       DisplayOpt        `mapstructure:"display" yaml:"display"`
	SensorsMapI2C map[string]string `mapstructure:"sensors_map_i2c" yaml:"sensors_map_i2c"`
	SerialSensors []SerialSensorOpt `mapstructure:"serial_sensors" yaml:"serial_sensors"`
	Debug         bool              `mapstructure:"debug" yaml:"debug"`

	v *viper.Viper
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("username", "")
	v.SetDefault("board.type", "generic")
	v.SetDefault("board.i2c_bus", "")
	v.SetDefault("board.bus_timeout_ms", 10)
	v.SetDefault("board.loading_led", "")
	v.SetDefault("board.registers", "")
	v.SetDefault("frame.type", "")

	v.SetDefault("stabilizer.loop_time", 2000)
	v.SetDefault("stabilizer.priority", 99)
	v.SetDefault("stabilizer.sleep_bias", -150)
	v.SetDefault("stabilizer.calibration_frequency", 4000)
	v.SetDefault("stabilizer.record_every", 50)

	v.SetDefault("imu.calibrate_all", false)
	v.SetDefault("imu.calibration_passes", 2000)
	v.SetDefault("imu.calibration_retries", 3)
	v.SetDefault("imu.filter_alpha", 0.98)

	v.SetDefault("power.frequency", 20)
	v.SetDefault("power.priority", 97)

	v.SetDefault("controller.frequency", 50)
	v.SetDefault("controller.priority", 98)
	v.SetDefault("controller.timeout_ms", 500)
	v.SetDefault("controller.topic", "flight/controller")

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "flight-computer")
	v.SetDefault("mqtt.topic_prefix", "flight")
	v.SetDefault("mqtt.queue", 256)

	v.SetDefault("web.enabled", false)
	v.SetDefault("web.port", 8080)

	v.SetDefault("display.enabled", false)
	v.SetDefault("display.i2c_bus", "")
	v.SetDefault("display.interval_ms", 500)

	v.SetDefault("debug", false)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// New returns the default configuration.
func New() *Config {
	c, err := decode(newViper())
	if err != nil {
		// defaults always decode
		panic(err)
	}
	return c
}

// Load reads the YAML file at path, or searches the default locations
// when path is empty (FLIGHT_CONFIG overrides the search). Flags, when
// given, override file values: --board and --debug.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := newViper()
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigSearchPaths {
			v.AddConfigPath(p)
		}
	}

	if flags != nil {
		if f := flags.Lookup("board"); f != nil {
			_ = v.BindPFlag("board.type", f)
		}
		if f := flags.Lookup("debug"); f != nil {
			_ = v.BindPFlag("debug", f)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
		log.Warn("config: no configuration file found, using defaults")
	} else {
		log.Debugf("config: using %s", v.ConfigFileUsed())
	}

	c, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func decode(v *viper.Viper) (*Config, error) {
	c := &Config{v: v}
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return c, nil
}

// validate checks the values the flight core cannot start without.
func (c *Config) validate() error {
	if c.Board.Type == "" {
		return errors.Wrap(ErrInvalid, "board.type is required")
	}
	if c.Stabilizer.LoopTime <= 0 {
		return errors.Wrapf(ErrInvalid, "stabilizer.loop_time must be positive, got %d", c.Stabilizer.LoopTime)
	}
	if c.Stabilizer.CalibrationFrequency < 0 {
		return errors.Wrap(ErrInvalid, "stabilizer.calibration_frequency must not be negative")
	}
	if c.IMU.CalibrationPasses <= 0 {
		return errors.Wrapf(ErrInvalid, "imu.calibration_passes must be positive, got %d", c.IMU.CalibrationPasses)
	}
	if c.IMU.FilterAlpha < 0 || c.IMU.FilterAlpha > 1 {
		return errors.Wrapf(ErrInvalid, "imu.filter_alpha must be in [0, 1], got %v", c.IMU.FilterAlpha)
	}
	if _, err := c.SensorBindings(); err != nil {
		return err
	}
	for i, s := range c.SerialSensors {
		if s.Port == "" {
			return errors.Wrapf(ErrInvalid, "serial_sensors[%d]: port is required", i)
		}
	}
	return nil
}

// Set overrides a value by path and re-decodes the typed fields.
func (c *Config) Set(path string, value any) error {
	c.v.Set(path, value)
	next, err := decode(c.v)
	if err != nil {
		return err
	}
	*c = *next
	return nil
}

// String returns the string at path, or def when it is unset.
func (c *Config) String(path, def string) string {
	if !c.v.IsSet(path) {
		return def
	}
	s, err := cast.ToStringE(c.v.Get(path))
	if err != nil {
		return def
	}
	return s
}

// Integer returns the integer at path, or def when it is unset or not a
// number.
func (c *Config) Integer(path string, def int) int {
	if !c.v.IsSet(path) {
		return def
	}
	i, err := cast.ToIntE(c.v.Get(path))
	if err != nil {
		return def
	}
	return i
}

// Number returns the float at path, or def.
func (c *Config) Number(path string, def float64) float64 {
	if !c.v.IsSet(path) {
		return def
	}
	f, err := cast.ToFloat64E(c.v.Get(path))
	if err != nil {
		return def
	}
	return f
}

// Boolean returns the boolean at path, or def.
func (c *Config) Boolean(path string, def bool) bool {
	if !c.v.IsSet(path) {
		return def
	}
	b, err := cast.ToBoolE(c.v.Get(path))
	if err != nil {
		return def
	}
	return b
}

// ArrayLength returns the number of elements of the list at path, or 0.
func (c *Config) ArrayLength(path string) int {
	s, err := cast.ToSliceE(c.v.Get(path))
	if err != nil {
		return 0
	}
	return len(s)
}

// SensorBindings decodes sensors_map_i2c: bus address (hex or decimal
// string) to sensor name.
func (c *Config) SensorBindings() (map[uint16]string, error) {
	out := make(map[uint16]string, len(c.SensorsMapI2C))
	for k, name := range c.SensorsMapI2C {
		addr, err := strconv.ParseUint(k, 0, 7)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalid, "sensors_map_i2c: bad address %q", k)
		}
		out[uint16(addr)] = name
	}
	return out, nil
}

// ConfigFileUsed returns the path the configuration was read from.
func (c *Config) ConfigFileUsed() string {
	return c.v.ConfigFileUsed()
}

// Marshal encodes the typed configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}
