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

// Package sim provides a simulated SPI controller and the interface its
// attached devices implement.
package sim

import (
	"sync"

	"github.com/golang/glog"
	"github.com/google/spiboot/internal/spi"
)

const (
	// Slots is the number of chip-select lines on the controller.
	Slots = spi.MaxChipSelect + 1
	// DefaultClockDivisor is the divisor loaded on reset.
	DefaultClockDivisor = 125
	// idleByte is shifted in when no device answers.
	idleByte = 0xff
)

// Slave is a device attached to one chip-select line of the controller.
type Slave interface {
	// Select is called when the device's chip-select is asserted.
	Select()
	// Deselect is called when the device's chip-select is released.
	Deselect()
	// Exchange handles one full-duplex byte exchange.
	Exchange(b byte) byte
}

// Controller simulates the SPI controller's register block.
//
// Latency is the number of command register reads during which the busy flag
// stays set after an exchange has been started. A Stuck controller never
// clears the busy flag once an exchange starts.
type Controller struct {
	Latency int
	Stuck   bool

	mu       sync.Mutex
	cmd      uint32
	clkDiv   uint32
	data     uint32
	selected int
	pending  int
	slaves   [Slots]Slave
}

var _ spi.Registers = &Controller{}

// New returns a controller in its reset state with no devices attached.
func New() *Controller {
	c := &Controller{}
	c.reset()
	return c
}

// Attach connects s to chip-select line cs, replacing any previous device.
func (c *Controller) Attach(cs int, s Slave) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slaves[cs] = s
}

// ClockDivisor returns the current value of the clock divisor register.
func (c *Controller) ClockDivisor() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clkDiv
}

// Selected returns the asserted chip-select line, or -1 if there is none.
func (c *Controller) Selected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

func (c *Controller) reset() {
	c.cmd = 0
	c.clkDiv = DefaultClockDivisor
	c.data = 0
	c.selected = -1
	c.pending = 0
}

// Read implements spi.Registers.
func (c *Controller) Read(off uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch off {
	case spi.RegCmd:
		if c.cmd&spi.CmdBusy != 0 && !c.Stuck {
			if c.pending > 0 {
				c.pending--
			} else {
				c.exchange()
			}
		}
		return c.cmd
	case spi.RegClkDiv:
		return c.clkDiv
	case spi.RegData:
		return c.data
	}
	return 0
}

// Write implements spi.Registers.
func (c *Controller) Write(off uint32, v uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch off {
	case spi.RegCmd:
		c.writeCmd(v & 0xff)
	case spi.RegClkDiv:
		c.clkDiv = v
	case spi.RegData:
		c.data = v & 0xff
	}
}

func (c *Controller) writeCmd(v uint32) {
	start := v&spi.CmdBusy != 0 && c.cmd&spi.CmdBusy == 0
	c.cmd = v

	if v&spi.CmdSelect != 0 {
		cs := int(v&spi.CmdSelectMsk) >> 4
		if cs != c.selected {
			c.deselect()
			c.selected = cs
			if s := c.slaves[cs]; s != nil {
				s.Select()
			}
		}
	} else {
		c.deselect()
	}

	if v&spi.CmdReset != 0 {
		c.deselect()
		c.reset()
		return
	}

	if start {
		c.pending = c.Latency
		if c.pending == 0 && !c.Stuck {
			c.exchange()
		}
	}
}

func (c *Controller) deselect() {
	if c.selected < 0 {
		return
	}
	if s := c.slaves[c.selected]; s != nil {
		s.Deselect()
	}
	c.selected = -1
}

// exchange completes the in-flight byte exchange and clears busy.
func (c *Controller) exchange() {
	defer func() { c.cmd &^= spi.CmdBusy }()

	if c.selected < 0 {
		glog.V(2).Infof("spi: write to no device: %02x", c.data)
		c.data = idleByte
		return
	}
	s := c.slaves[c.selected]
	if s == nil {
		c.data = idleByte
		return
	}
	c.data = uint32(s.Exchange(byte(c.data)))
}
