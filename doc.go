// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package owbridge is a container for a 1-wire stack over DS248x I²C
// bridges.
//
// ds248x drives the bridge and implements periph's onewire.Bus. owpath maps
// the devices found on the bus to decoders and routes reads and writes by
// path, like "28.ac410e07000074/temperature12". The decoders are ds18b20,
// ds2408, ds2438 and ds1420; drivers lists them and config loads the
// family table. cmd/owpath is the command line host.
package owbridge
