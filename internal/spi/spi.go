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

//go:generate mockgen -destination mockspi/mock_spi.go -package mockspi github.com/google/spiboot/internal/spi Bus

// Package spi provides the byte-level SPI transport used to talk to the boot
// memory devices.
package spi

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Register offsets of the SPI controller, relative to its base address.
const (
	RegCmd    = 0x0
	RegClkDiv = 0x4
	RegData   = 0x8
)

// Bits of the command/status register.
const (
	CmdReset     = 0x01
	CmdBusy      = 0x02
	CmdSelect    = 0x80
	CmdSelectMsk = 0x70

	selectShift = 4
	// MaxChipSelect is the highest chip-select index the controller can drive.
	MaxChipSelect = 7
)

// ErrTimeout is returned when the controller does not report idle within the
// configured IdleTimeout.
var ErrTimeout = errors.New("spi controller busy")

// Bus is a synchronous, full-duplex byte transport with per-device chip-select.
//
// Only one device may be selected at a time; callers must Deselect before
// selecting another device. This is not enforced.
type Bus interface {
	// SetClockDivisor configures the exchange clock rate.
	SetClockDivisor(d uint32) error
	// Select asserts chip-select for the device at index cs.
	Select(cs uint8) error
	// Deselect releases any asserted chip-select line.
	Deselect() error
	// Transfer shifts b out and returns the byte shifted in.
	Transfer(b byte) (byte, error)
}

// Registers is a window onto the controller's memory-mapped registers.
type Registers interface {
	Read(off uint32) uint32
	Write(off uint32, v uint32)
}

// ControllerOpts holds the optional parameters of a Controller.
type ControllerOpts struct {
	// IdleTimeout bounds each wait for the busy flag to clear.
	// Zero waits forever, which is how the boot ROM behaves.
	IdleTimeout time.Duration
}

// Controller drives the SPI controller through its registers.
type Controller struct {
	regs        Registers
	idleTimeout time.Duration
}

var _ Bus = &Controller{}

// NewController returns a Controller using the provided register window.
func NewController(regs Registers, opts ControllerOpts) *Controller {
	return &Controller{
		regs:        regs,
		idleTimeout: opts.IdleTimeout,
	}
}

// Reset returns the controller to its power-on state.
func (c *Controller) Reset() {
	c.regs.Write(RegCmd, CmdReset)
}

// SetClockDivisor implements Bus.
func (c *Controller) SetClockDivisor(d uint32) error {
	c.regs.Write(RegClkDiv, d)
	return nil
}

// Select implements Bus.
func (c *Controller) Select(cs uint8) error {
	if cs > MaxChipSelect {
		return fmt.Errorf("chip select %d out of range [0, %d]", cs, MaxChipSelect)
	}
	c.regs.Write(RegCmd, CmdSelect|uint32(cs)<<selectShift)
	return nil
}

// Deselect implements Bus.
func (c *Controller) Deselect() error {
	c.regs.Write(RegCmd, c.regs.Read(RegCmd)&0x0f)
	return nil
}

// Transfer implements Bus.
//
// The controller must be idle both before the byte is written and after the
// exchange has been started. With no IdleTimeout configured a controller that
// never goes idle blocks the caller forever.
func (c *Controller) Transfer(b byte) (byte, error) {
	if err := c.waitIdle(); err != nil {
		return 0, err
	}
	c.regs.Write(RegData, uint32(b))
	c.regs.Write(RegCmd, c.regs.Read(RegCmd)|CmdBusy)
	if err := c.waitIdle(); err != nil {
		return 0, err
	}
	return byte(c.regs.Read(RegData) & 0xff), nil
}

func (c *Controller) busy() bool {
	return c.regs.Read(RegCmd)&CmdBusy != 0
}

func (c *Controller) waitIdle() error {
	if c.idleTimeout == 0 {
		for c.busy() {
		}
		return nil
	}

	if !c.busy() {
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Microsecond
	bo.MaxInterval = time.Millisecond
	bo.MaxElapsedTime = c.idleTimeout
	op := func() error {
		if c.busy() {
			return ErrTimeout
		}
		return nil
	}
	if err := backoff.Retry(op, bo); err != nil {
		return fmt.Errorf("waited %v for idle: %w", c.idleTimeout, err)
	}
	return nil
}
