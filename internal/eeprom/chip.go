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

package eeprom

import (
	"sync"

	"github.com/google/spiboot/internal/spi/sim"
)

const (
	// PageSize is the size of a page program operation.
	PageSize = 256
	// DefaultSignature is the electronic signature reported by the chips.
	DefaultSignature = 0x29

	statusWIP = 0x01
	statusWEL = 0x02
)

type chipState int

const (
	stateCommand chipState = iota
	stateAddr1
	stateAddr2
	stateAddr3
	stateData
	stateStatus
	stateIgnore
)

// Chip simulates one SPI serial memory chip.
type Chip struct {
	// Signature is returned by the signature command.
	Signature byte

	mu      sync.Mutex
	mem     []byte
	state   chipState
	op      byte
	addr    uint32
	wel     bool
	wip     bool
	sigSkip int
	written bool
}

var _ sim.Slave = &Chip{}

// NewChip returns a chip of the given size holding a copy of contents,
// zero padded.
func NewChip(size uint32, contents []byte) *Chip {
	c := &Chip{
		Signature: DefaultSignature,
		mem:       make([]byte, size),
	}
	copy(c.mem, contents)
	return c
}

// Bytes returns a copy of the chip contents.
func (c *Chip) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.mem...)
}

// Select implements sim.Slave.
func (c *Chip) Select() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = stateCommand
}

// Deselect implements sim.Slave. Completing a page program starts the
// internal write cycle.
func (c *Chip) Deselect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.op == OpPageProgram && c.state == stateData {
		c.wip = c.written
		c.wel = false
	}
	c.state = stateCommand
	c.op = 0
	c.written = false
}

// Exchange implements sim.Slave.
func (c *Chip) Exchange(v byte) byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateCommand:
		c.op = v
		switch v {
		case OpRead:
			c.state = stateAddr1
		case OpPageProgram:
			if c.wel && !c.wip {
				c.state = stateAddr1
			} else {
				c.state = stateIgnore
			}
		case OpWriteEnable:
			if !c.wip {
				c.wel = true
			}
			c.state = stateIgnore
		case OpWriteDisable:
			c.wel = false
			c.state = stateIgnore
		case OpReadStatus:
			c.state = stateStatus
		case OpSignature:
			c.sigSkip = 3
			c.state = stateData
		default:
			c.state = stateIgnore
		}
		return 0xff
	case stateAddr1:
		c.addr = uint32(v) << 16
		c.state = stateAddr2
		return 0xff
	case stateAddr2:
		c.addr |= uint32(v) << 8
		c.state = stateAddr3
		return 0xff
	case stateAddr3:
		c.addr |= uint32(v)
		c.addr %= uint32(len(c.mem))
		c.state = stateData
		return 0xff
	case stateData:
		return c.data(v)
	case stateStatus:
		var s byte
		if c.wip {
			s |= statusWIP
		}
		if c.wel {
			s |= statusWEL
		}
		// Writes complete instantly; the busy bit is visible to a single poll.
		c.wip = false
		return s
	}
	return 0xff
}

func (c *Chip) data(v byte) byte {
	switch c.op {
	case OpRead:
		b := c.mem[c.addr]
		c.addr = (c.addr + 1) % uint32(len(c.mem))
		return b
	case OpPageProgram:
		c.mem[c.addr] = v
		c.written = true
		page := c.addr &^ (PageSize - 1)
		c.addr = (page | ((c.addr + 1) & (PageSize - 1))) % uint32(len(c.mem))
		return 0xff
	case OpSignature:
		if c.sigSkip > 0 {
			c.sigSkip--
			return 0xff
		}
		return c.Signature
	}
	return 0xff
}

// SplitImage returns one chip per device of geo, filled sequentially from img.
func SplitImage(geo Geometry, img []byte) []*Chip {
	chips := make([]*Chip, geo.Count)
	for i := range chips {
		start := int64(i) * int64(geo.Size)
		var part []byte
		if start < int64(len(img)) {
			part = img[start:]
		}
		chips[i] = NewChip(geo.Size, part)
	}
	return chips
}

// Attach connects chips to hw at the chip-select lines given by geo.
func Attach(hw *sim.Controller, geo Geometry, chips []*Chip) {
	for i, c := range chips {
		hw.Attach(int(geo.ChipSelect(i)), c)
	}
}
