// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rom holds the reset path of the boot ROM, shared by the bare-metal
// boot loader and the host emulator.
package rom

import (
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/google/spiboot/internal/board"
	"github.com/google/spiboot/internal/eeprom"
	"github.com/google/spiboot/internal/loader"
	"github.com/google/spiboot/internal/spi"
)

// Chain represents the next stage in the boot process.
type Chain func() error

// Opts holds optional hooks for Reset.
type Opts struct {
	// Halt is called if the booted image returns. Defaults to spinning
	// forever.
	Halt func()
	// Report, if set, receives the load result once the image has been
	// loaded and has returned, or the load has failed.
	Report func(loader.Result)
}

// Reset emulates the early stage of the boot process: it resets the SPI
// controller at regs, programs its clock and prepares to load the image held
// on the chip array into mem.
//
// Returns the first link in the boot chain as a func.
func Reset(cfg board.Config, regs spi.Registers, mem io.WriterAt, j loader.Jumper, opts Opts) (Chain, error) {
	glog.Info("----RESET----")
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid board config: %w", err)
	}
	mode := cfg.LoaderMode()

	c := spi.NewController(regs, spi.ControllerOpts{IdleTimeout: cfg.SPI.IdleTimeout})
	c.Reset()
	if err := c.SetClockDivisor(cfg.SPI.ClockDivisor); err != nil {
		return nil, fmt.Errorf("failed to set SPI clock: %w", err)
	}
	glog.Infof("SPI controller at %#08x, clock divisor %d", cfg.SPI.Base, cfg.SPI.ClockDivisor)

	a, err := eeprom.NewArray(c, cfg.EEPROM)
	if err != nil {
		return nil, err
	}
	glog.Infof("Boot medium: %d x %#x bytes from chip select %d, %s loader", cfg.EEPROM.Count, cfg.EEPROM.Size, cfg.EEPROM.ChipSelectBase, mode)

	l := loader.New(a, mem, loader.Opts{Mode: mode, Halt: opts.Halt})
	boot1 := func() error {
		r, err := l.Boot(j)
		if opts.Report != nil {
			opts.Report(r)
		}
		return err
	}
	return boot1, nil
}
