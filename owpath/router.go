// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owpath

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"
)

// Opts contains options to pass to New.
type Opts struct {
	// PathsTimeout bounds the wait for the bus lock before a listing.
	PathsTimeout time.Duration
	// ReadTimeout and WriteTimeout bound the wait for the bus lock before a
	// path read or write.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Logger receives diagnostics. nil disables logging.
	Logger *slog.Logger
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	PathsTimeout: 5 * time.Second,
	ReadTimeout:  time.Second,
	WriteTimeout: time.Second,
}

// Router routes path operations to the decoders of a Registry.
type Router struct {
	b    Bridge
	reg  *Registry
	opts Opts
	log  *slog.Logger
}

// New returns a Router over the bridge b.
func New(b Bridge, r *Registry, opts *Opts) *Router {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.PathsTimeout <= 0 {
		o.PathsTimeout = DefaultOpts.PathsTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultOpts.ReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultOpts.WriteTimeout
	}
	log := o.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{b: b, reg: r, opts: o, log: log.With("component", "owpath")}
}

// Registry returns the registry of the router.
func (r *Router) Registry() *Registry {
	return r.reg
}

// Paths searches the bus and returns the sorted paths of all the operations
// of the devices found.
func (r *Router) Paths(ctx context.Context) ([]string, error) {
	var out []string
	err := r.session(ctx, r.opts.PathsTimeout, func() error {
		ids, err := r.b.SearchAll()
		if err != nil {
			return err
		}
		for _, id := range ids {
			for op := range r.reg.Worker(id[:2]).Ops() {
				out = append(out, Path{ID: id, Op: op}.String())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	r.log.Debug("paths listed", "count", len(out))
	return out, nil
}

// ReadPath reads the value of path.
//
// A nil value with a nil error is returned when the operation has no read
// function or does not exist.
func (r *Router) ReadPath(ctx context.Context, path string) (any, error) {
	p, op, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	if op.Read == nil {
		r.log.Debug("no read function", "path", p.String())
		return nil, nil
	}
	var v any
	err = r.session(ctx, r.opts.ReadTimeout, func() error {
		var err error
		v, err = op.Read(r.b, p.ID)
		return err
	})
	if err != nil {
		r.log.Warn("read failed", "path", p.String(), "error", err)
		return nil, fmt.Errorf("owpath: read %s: %w", p, err)
	}
	r.log.Debug("read", "path", p.String(), "value", v)
	return v, nil
}

// WritePath writes v to path and returns the result of the write.
//
// A nil value with a nil error is returned when the operation has no write
// function or does not exist.
func (r *Router) WritePath(ctx context.Context, path string, v any) (any, error) {
	p, op, err := r.resolve(path)
	if err != nil {
		return nil, err
	}
	if op.Write == nil {
		r.log.Debug("no write function", "path", p.String())
		return nil, nil
	}
	var res any
	err = r.session(ctx, r.opts.WriteTimeout, func() error {
		var err error
		res, err = op.Write(r.b, p.ID, v)
		return err
	})
	if err != nil {
		r.log.Warn("write failed", "path", p.String(), "error", err)
		return nil, fmt.Errorf("owpath: write %s: %w", p, err)
	}
	r.log.Debug("written", "path", p.String(), "value", v, "result", res)
	return res, nil
}

func (r *Router) resolve(path string) (Path, Op, error) {
	p, err := ParsePath(path)
	if err != nil {
		return p, Op{}, err
	}
	return p, r.reg.Worker(p.Family()).Ops()[p.Op], nil
}

// session runs f while holding the bridge lock, waiting at most timeout for
// it.
func (r *Router) session(ctx context.Context, timeout time.Duration, f func() error) error {
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := r.b.Lock(lctx); err != nil {
		return err
	}
	defer r.b.Unlock()
	return f()
}
