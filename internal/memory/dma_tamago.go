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

//go:build tamago

package memory

import (
	"errors"
	"fmt"

	"github.com/usbarmory/tamago/dma"
)

// DMA writes loaded segments straight into physical memory through a tamago
// DMA region spanning the load regions. The whole span is reserved up front,
// so it must not include memory used by the Go runtime.
type DMA struct {
	// addr is the start of the reserved DMA block.
	addr    uint
	regions []Region
}

// NewDMA initialises the global DMA region over the span of regions and
// reserves all of it. Regions must be writable and must not overlap runtime,
// the RAM the Go runtime runs from.
func NewDMA(regions []Region, runtime Region) (*DMA, error) {
	if len(regions) == 0 {
		return nil, errors.New("no memory regions")
	}
	if err := Validate(regions); err != nil {
		return nil, err
	}
	if err := CheckLoadable(regions, runtime); err != nil {
		return nil, err
	}
	lo, hi := uint64(regions[0].Base), regions[0].End()
	for _, r := range regions[1:] {
		if uint64(r.Base) < lo {
			lo = uint64(r.Base)
		}
		if r.End() > hi {
			hi = r.End()
		}
	}
	span := Region{Name: "dma", Base: uint32(lo), Size: uint32(hi - lo)}
	if span.Overlaps(runtime) {
		return nil, fmt.Errorf("DMA span %#x-%#x overlaps %q: %w", lo, hi, runtime.Name, ErrReserved)
	}

	if err := dma.Init(uint(lo), int(hi-lo)); err != nil {
		return nil, fmt.Errorf("failed to initialise DMA region at %#x: %w", lo, err)
	}
	addr, _ := dma.Reserve(int(hi-lo), 0)
	if uint64(addr) != lo {
		return nil, fmt.Errorf("DMA reservation at %#x, want %#x", addr, lo)
	}
	return &DMA{addr: addr, regions: regions}, nil
}

// WriteAt copies p to physical address addr.
func (d *DMA) WriteAt(p []byte, addr int64) (int, error) {
	if addr < 0 {
		return 0, fmt.Errorf("%#x: %w", addr, ErrUnmapped)
	}
	for _, r := range d.regions {
		if !r.contains(uint64(addr), len(p)) {
			continue
		}
		dma.Write(d.addr, int(uint64(addr)-uint64(d.addr)), p)
		return len(p), nil
	}
	return 0, fmt.Errorf("%d bytes at %#x: %w", len(p), addr, ErrUnmapped)
}
