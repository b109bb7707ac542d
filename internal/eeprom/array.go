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
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/google/spiboot/internal/spi"
)

// Commands understood by the memory chips.
const (
	OpRead         = 0x03
	OpPageProgram  = 0x02
	OpWriteEnable  = 0x06
	OpWriteDisable = 0x04
	OpReadStatus   = 0x05
	OpSignature    = 0xab

	// dummy is shifted out while clocking data in.
	dummy = 0xff
)

// Array is the logical address space formed by the chips of a Geometry.
type Array struct {
	bus spi.Bus
	geo Geometry
}

var _ io.ReaderAt = &Array{}

// NewArray returns an Array reading through bus.
func NewArray(bus spi.Bus, geo Geometry) (*Array, error) {
	if err := geo.Validate(); err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}
	return &Array{bus: bus, geo: geo}, nil
}

// Size returns the capacity of the address space in bytes.
func (a *Array) Size() int64 {
	return a.geo.Capacity()
}

// ReadAt reads len(p) bytes starting at logical offset off. Reads may span
// any number of chips.
//
// Offsets at or beyond Size return 0, io.EOF. A read which runs off the end of
// the array is truncated and returns the bytes read with io.EOF.
func (a *Array) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("ReadAt(%d): %w", off, ErrOffset)
	}
	size := a.Size()
	if off >= size {
		return 0, io.EOF
	}
	var eof error
	if rem := size - off; int64(len(p)) > rem {
		p = p[:rem]
		eof = io.EOF
	}

	n := 0
	for n < len(p) {
		idx, devOff, err := a.geo.Locate(off + int64(n))
		if err != nil {
			return n, err
		}
		c := len(p) - n
		if left := int(a.geo.Size - devOff); c > left {
			c = left
		}
		if err := a.readChip(idx, devOff, p[n:n+c]); err != nil {
			return n, fmt.Errorf("device %d offset %#x: %w", idx, devOff, err)
		}
		n += c
	}
	return n, eof
}

// readChip streams len(p) bytes from a single chip. The chip is deselected
// again on every return path.
func (a *Array) readChip(idx int, devOff uint32, p []byte) (err error) {
	glog.V(2).Infof("eeprom: reading %d bytes from device %d at %#06x", len(p), idx, devOff)

	if err := a.bus.Deselect(); err != nil {
		return err
	}
	if err := a.bus.Select(a.geo.ChipSelect(idx)); err != nil {
		return err
	}
	defer func() {
		if derr := a.bus.Deselect(); err == nil {
			err = derr
		}
	}()

	cmd := []byte{OpRead, byte(devOff >> 16), byte(devOff >> 8), byte(devOff)}
	for _, b := range cmd {
		if _, err := a.bus.Transfer(b); err != nil {
			return fmt.Errorf("read command: %w", err)
		}
	}
	for i := range p {
		b, err := a.bus.Transfer(dummy)
		if err != nil {
			return err
		}
		p[i] = b
	}
	return nil
}
