// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// owpath reads and writes the devices behind a DS248x I²C to 1-wire bridge
// by path.
//
// Usage:
//
//	owpath [-config owbridge.yaml] scan
//	owpath search [-family 28] [-alarm]
//	owpath read 28.ac410e07000074/temperature12 [path...]
//	owpath write 29.5a2b1c00000072/pio/ch3 on
//	owpath family
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/owbridge/config"
	"github.com/GermanBionicSystems/owbridge/ds248x"
)

func mainImpl() error {
	cfgPath := flag.String("config", "", "YAML configuration file")
	bus := flag.String("bus", "", "I²C bus to use, overrides the configuration")
	addr := flag.Uint("addr", 0, "I²C address of the bridge, overrides the configuration")
	verbose := flag.Bool("v", false, "verbose logging")
	noColor := flag.Bool("nocolor", false, "disable the family colours")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		return errors.New("missing command")
	}

	var cfg *config.Config
	var err error
	if *cfgPath != "" {
		cfg, err = config.Load(*cfgPath)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return err
	}
	if *bus != "" {
		cfg.Bridge.Bus = *bus
	}
	if *addr != 0 {
		cfg.Bridge.Address = uint16(*addr)
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := cfg.Logging.Logger()

	if _, err := host.Init(); err != nil {
		return err
	}
	b, err := i2creg.Open(cfg.Bridge.Bus)
	if err != nil {
		return err
	}
	defer b.Close()

	o := cfg.BridgeOpts()
	o.Logger = log
	d, err := ds248x.New(b, cfg.Bridge.Address, o)
	if err != nil {
		return err
	}
	if cfg.Bridge.Channel != 0 {
		if _, err := d.SelectChannel(cfg.Bridge.Channel); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	var w io.Writer = os.Stdout
	color := !*noColor && (isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
	if color {
		w = colorable.NewColorableStdout()
	}
	c, err := newCommands(d, cfg, log)
	if err != nil {
		return err
	}
	c.color = color
	return c.run(ctx, w, flag.Args())
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <scan|search|read|write|family> [args]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "owpath: %s.\n", err)
		os.Exit(1)
	}
}
