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

// Package eeprom presents an array of equally sized SPI serial memory chips
// as one flat, read-only address space.
package eeprom

import (
	"errors"
	"fmt"

	"github.com/google/spiboot/internal/spi"
)

// maxChipSize is the largest chip addressable with a 3-byte address.
const maxChipSize = 1 << 24

var (
	// ErrOffset is returned for negative logical offsets.
	ErrOffset = errors.New("invalid offset")
	// ErrNoDevice is returned when a logical offset maps to a device index
	// beyond the configured array.
	ErrNoDevice = errors.New("no such device")
)

// Geometry describes the fixed layout of the chip array.
type Geometry struct {
	// Count is the number of chips.
	Count int `yaml:"Count"`
	// Size is the capacity of each chip in bytes.
	Size uint32 `yaml:"Size"`
	// ChipSelectBase is the chip-select line of the first chip; chip i is
	// wired to ChipSelectBase+i.
	ChipSelectBase uint8 `yaml:"ChipSelectBase"`
}

// Validate checks that the geometry can be driven by the controller.
func (g Geometry) Validate() error {
	if g.Count < 1 {
		return fmt.Errorf("chip count %d must be at least 1", g.Count)
	}
	if g.Size == 0 || g.Size > maxChipSize {
		return fmt.Errorf("chip size %#x must be in [1, %#x]", g.Size, maxChipSize)
	}
	if last := int(g.ChipSelectBase) + g.Count - 1; last > spi.MaxChipSelect {
		return fmt.Errorf("chip selects %d..%d exceed the controller's %d lines", g.ChipSelectBase, last, spi.MaxChipSelect+1)
	}
	return nil
}

// Capacity returns the size of the logical address space.
func (g Geometry) Capacity() int64 {
	return int64(g.Count) * int64(g.Size)
}

// Locate maps a logical offset to a device index and the offset within that
// device.
func (g Geometry) Locate(off int64) (int, uint32, error) {
	if off < 0 {
		return 0, 0, fmt.Errorf("%d: %w", off, ErrOffset)
	}
	idx := off / int64(g.Size)
	if idx >= int64(g.Count) {
		return 0, 0, fmt.Errorf("offset %#x is on device %d of %d: %w", off, idx, g.Count, ErrNoDevice)
	}
	return int(idx), uint32(off % int64(g.Size)), nil
}

// ChipSelect returns the chip-select line of device idx.
func (g Geometry) ChipSelect(idx int) uint8 {
	return g.ChipSelectBase + uint8(idx)
}
