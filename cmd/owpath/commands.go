// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/GermanBionicSystems/owbridge/config"
	"github.com/GermanBionicSystems/owbridge/drivers"
	"github.com/GermanBionicSystems/owbridge/ds248x"
	"github.com/GermanBionicSystems/owbridge/owpath"
)

// commands runs the subcommands against one bridge.
type commands struct {
	d        *ds248x.Dev
	router   *owpath.Router
	families map[string]string
	color    bool
}

func newCommands(d *ds248x.Dev, cfg *config.Config, log *slog.Logger) (*commands, error) {
	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	o := cfg.RouterOpts()
	o.Logger = log
	families := cfg.Families
	if len(families) == 0 {
		families = drivers.DefaultFamilies
	}
	return &commands{d: d, router: owpath.New(d, reg, o), families: families}, nil
}

func (c *commands) run(ctx context.Context, w io.Writer, args []string) error {
	if len(args) == 0 {
		return errors.New("missing command")
	}
	switch args[0] {
	case "scan":
		return c.scan(ctx, w)
	case "search":
		return c.search(ctx, w, args[1:])
	case "read":
		if len(args) < 2 {
			return errors.New("read: missing path")
		}
		return c.read(ctx, w, args[1:])
	case "write":
		if len(args) != 3 {
			return errors.New("write: expected a path and a value")
		}
		return c.write(ctx, w, args[1], args[2])
	case "family":
		return c.family(w)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// scan lists every path of every device on the bus.
func (c *commands) scan(ctx context.Context, w io.Writer) error {
	paths, err := c.router.Paths(ctx)
	if err != nil {
		return err
	}
	s := newSwatch(w)
	for _, p := range paths {
		if c.color {
			if err := s.family(p); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, p); err != nil {
			return err
		}
	}
	return nil
}

// search lists the ROM ids found by a search of the bus.
func (c *commands) search(ctx context.Context, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(w)
	family := fs.String("family", "", "only list this 2 hex digit family code")
	alarm := fs.Bool("alarm", false, "only list the devices in alarm state")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *family != "" && *alarm {
		return errors.New("search: -family and -alarm are exclusive")
	}
	if err := c.d.Lock(ctx); err != nil {
		return err
	}
	defer c.d.Unlock()
	var ids []string
	var err error
	switch {
	case *family != "":
		code, perr := strconv.ParseUint(*family, 16, 8)
		if perr != nil || len(*family) != 2 {
			return fmt.Errorf("search: invalid family %q", *family)
		}
		ids, err = c.d.SearchByFamily(byte(code))
	case *alarm:
		ids, err = c.d.SearchAlarm()
	default:
		ids, err = c.d.SearchAll()
	}
	if err != nil {
		return err
	}
	sort.Strings(ids)
	s := newSwatch(w)
	for _, id := range ids {
		if c.color {
			if err := s.family(id); err != nil {
				return err
			}
		}
		name := c.families[id[:2]]
		if name == "" {
			name = "-"
		}
		if _, err := fmt.Fprintf(w, "%s.%s %s\n", id[:2], id[2:], name); err != nil {
			return err
		}
	}
	return nil
}

func (c *commands) read(ctx context.Context, w io.Writer, paths []string) error {
	for _, p := range paths {
		v, err := c.router.ReadPath(ctx, p)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", p, format(v)); err != nil {
			return err
		}
	}
	return nil
}

// write passes value as a string; the decoders parse "on", "0x0f" and the
// like themselves.
func (c *commands) write(ctx context.Context, w io.Writer, path, value string) error {
	v, err := c.router.WritePath(ctx, path, value)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s: %s\n", path, format(v))
	return err
}

func (c *commands) family(w io.Writer) error {
	codes := make([]string, 0, len(c.families))
	for f := range c.families {
		codes = append(codes, f)
	}
	sort.Strings(codes)
	for _, f := range codes {
		if _, err := fmt.Fprintf(w, "%s %s\n", strings.ToLower(f), c.families[f]); err != nil {
			return err
		}
	}
	return nil
}

func format(v any) string {
	switch x := v.(type) {
	case nil:
		return "<no value>"
	case byte:
		return fmt.Sprintf("0x%02x", x)
	default:
		return fmt.Sprint(x)
	}
}
