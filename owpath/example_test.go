// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owpath_test

import (
	"context"
	"fmt"
	"log"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/owbridge/drivers"
	"github.com/GermanBionicSystems/owbridge/ds248x"
	"github.com/GermanBionicSystems/owbridge/owpath"
)

func Example() {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}

	// Use i2creg I²C bus registry to find the first available I²C bus.
	b, err := i2creg.Open("")
	if err != nil {
		log.Fatalf("failed to open I²C: %v", err)
	}
	defer b.Close()

	d, err := ds248x.New(b, 0x18, nil)
	if err != nil {
		log.Fatal(err)
	}
	reg, err := drivers.NewRegistry(nil)
	if err != nil {
		log.Fatal(err)
	}
	r := owpath.New(d, reg, nil)

	ctx := context.Background()
	paths, err := r.Paths(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	t, err := r.ReadPath(ctx, "28.ac410e07000074/temperature12")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(t)
}
