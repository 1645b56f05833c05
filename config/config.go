// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config loads the configuration of the owpath host from a YAML
// file.
//
// Values are taken in order from the defaults, the file and finally the
// OWBRIDGE_* environment variables:
//
//	OWBRIDGE_BUS            bridge.bus
//	OWBRIDGE_ADDRESS        bridge.address, decimal or 0x prefixed
//	OWBRIDGE_CHANNEL        bridge.channel
//	OWBRIDGE_LOG_LEVEL      logging.level
//	OWBRIDGE_LOG_FORMAT     logging.format
//
// A configuration file looks like:
//
//	bridge:
//	  bus: /dev/i2c-1
//	  address: 0x18
//	  poll_interval: 10ms
//	locks:
//	  read: 2s
//	families:
//	  "28": ds18b20
//	  "3a": ds2408
//	logging:
//	  level: debug
//	  format: text
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GermanBionicSystems/owbridge/drivers"
	"github.com/GermanBionicSystems/owbridge/ds248x"
	"github.com/GermanBionicSystems/owbridge/owpath"
)

// Config is the whole configuration.
type Config struct {
	Bridge Bridge `yaml:"bridge"`
	Locks  Locks  `yaml:"locks"`
	// Families maps 2 hex digit family codes to decoder names. When empty,
	// drivers.DefaultFamilies is used.
	Families map[string]string `yaml:"families"`
	Logging  Logging           `yaml:"logging"`
}

// Bridge configures the DS248x bridge.
type Bridge struct {
	// Bus is the I²C bus name as understood by i2creg.Open. Empty selects the
	// first bus.
	Bus           string        `yaml:"bus"`
	Address       uint16        `yaml:"address"`
	PassivePullup bool          `yaml:"passive_pullup"`
	Channel       int           `yaml:"channel"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	WaitTimeout   time.Duration `yaml:"wait_timeout"`
}

// Locks bounds the waits for the bus lock.
type Locks struct {
	Paths time.Duration `yaml:"paths"`
	Read  time.Duration `yaml:"read"`
	Write time.Duration `yaml:"write"`
}

// Logging configures the logger.
type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn or error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stdout or stderr
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Bridge: Bridge{
			Address:      0x18,
			PollInterval: ds248x.DefaultOpts.PollInterval,
			WaitTimeout:  ds248x.DefaultOpts.WaitTimeout,
		},
		Locks: Locks{
			Paths: owpath.DefaultOpts.PathsTimeout,
			Read:  owpath.DefaultOpts.ReadTimeout,
			Write: owpath.DefaultOpts.WriteTimeout,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads the file at path over the defaults, applies the environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv returns the defaults with the environment overrides applied.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("OWBRIDGE_BUS"); v != "" {
		cfg.Bridge.Bus = v
	}
	if v := os.Getenv("OWBRIDGE_ADDRESS"); v != "" {
		a, err := strconv.ParseUint(v, 0, 16)
		if err != nil {
			return fmt.Errorf("config: OWBRIDGE_ADDRESS: %w", err)
		}
		cfg.Bridge.Address = uint16(a)
	}
	if v := os.Getenv("OWBRIDGE_CHANNEL"); v != "" {
		c, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: OWBRIDGE_CHANNEL: %w", err)
		}
		cfg.Bridge.Channel = c
	}
	if v := os.Getenv("OWBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OWBRIDGE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

// Validate returns all the problems of the configuration joined in one
// error.
func (c *Config) Validate() error {
	var errs []error
	if c.Bridge.Address < 0x18 || c.Bridge.Address > 0x1f {
		errs = append(errs, fmt.Errorf("bridge.address %#x is not in 0x18..0x1f", c.Bridge.Address))
	}
	if c.Bridge.Channel < 0 || c.Bridge.Channel > 7 {
		errs = append(errs, fmt.Errorf("bridge.channel %d is not in 0..7", c.Bridge.Channel))
	}
	if c.Bridge.PollInterval < 0 || c.Bridge.WaitTimeout < 0 {
		errs = append(errs, errors.New("bridge timings must not be negative"))
	}
	if c.Locks.Paths < 0 || c.Locks.Read < 0 || c.Locks.Write < 0 {
		errs = append(errs, errors.New("lock timeouts must not be negative"))
	}
	if _, err := c.Registry(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not json or text", c.Logging.Format))
	}
	switch strings.ToLower(c.Logging.Output) {
	case "", "stdout", "stderr":
	default:
		errs = append(errs, fmt.Errorf("logging.output %q is not stdout or stderr", c.Logging.Output))
	}
	if len(errs) != 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// BridgeOpts returns the ds248x options.
func (c *Config) BridgeOpts() *ds248x.Opts {
	o := ds248x.DefaultOpts
	o.PassivePullup = c.Bridge.PassivePullup
	o.PollInterval = c.Bridge.PollInterval
	o.WaitTimeout = c.Bridge.WaitTimeout
	return &o
}

// RouterOpts returns the owpath router options.
func (c *Config) RouterOpts() *owpath.Opts {
	return &owpath.Opts{
		PathsTimeout: c.Locks.Paths,
		ReadTimeout:  c.Locks.Read,
		WriteTimeout: c.Locks.Write,
	}
}

// Registry returns the decoder registry for the configured families.
func (c *Config) Registry() (*owpath.Registry, error) {
	if len(c.Families) == 0 {
		return drivers.NewRegistry(nil)
	}
	return drivers.NewRegistry(c.Families)
}
