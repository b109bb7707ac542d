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

// Package memory models the processor's physical address space as seen by
// the boot loader.
package memory

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnmapped is returned for accesses which are not entirely inside one
// mapped region.
var ErrUnmapped = errors.New("unmapped address")

// ErrReadOnly is returned for writes to a read-only region.
var ErrReadOnly = errors.New("read-only region")

// ErrReserved is returned for load regions which overlap memory in use by the
// boot loader itself.
var ErrReserved = errors.New("reserved memory")

// Region is a contiguous block of RAM or ROM in the physical address space.
type Region struct {
	Name string `yaml:"Name"`
	Base uint32 `yaml:"Base"`
	Size uint32 `yaml:"Size"`
	// ReadOnly regions, such as the boot ROM, cannot be loaded into.
	ReadOnly bool `yaml:"ReadOnly,omitempty"`
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return uint64(r.Base) + uint64(r.Size)
}

func (r Region) contains(addr uint64, n int) bool {
	return addr >= uint64(r.Base) && addr+uint64(n) <= r.End()
}

// Overlaps reports whether r and o share any address.
func (r Region) Overlaps(o Region) bool {
	return uint64(r.Base) < o.End() && uint64(o.Base) < r.End()
}

type block struct {
	Region
	b []byte
}

// Map is a simulated physical address space made of RAM regions. It
// implements io.WriterAt and io.ReaderAt with offsets being physical
// addresses.
type Map struct {
	blocks []block
}

// Validate checks that regions are non-empty, inside the 32-bit address
// space and do not overlap.
func Validate(regions []Region) error {
	for i, r := range regions {
		if r.Size == 0 {
			return fmt.Errorf("region %q is empty", r.Name)
		}
		if r.End() > 1<<32 {
			return fmt.Errorf("region %q runs past the end of the address space", r.Name)
		}
		for _, o := range regions[:i] {
			if r.Overlaps(o) {
				return fmt.Errorf("region %q overlaps %q", r.Name, o.Name)
			}
		}
	}
	return nil
}

// Loadable returns the writable regions which do not overlap reserved.
func Loadable(regions []Region, reserved Region) []Region {
	var rs []Region
	for _, r := range regions {
		if !r.ReadOnly && !r.Overlaps(reserved) {
			rs = append(rs, r)
		}
	}
	return rs
}

// CheckLoadable returns an error unless every region is writable and clear
// of reserved.
func CheckLoadable(regions []Region, reserved Region) error {
	for _, r := range regions {
		if r.ReadOnly {
			return fmt.Errorf("region %q: %w", r.Name, ErrReadOnly)
		}
		if r.Overlaps(reserved) {
			return fmt.Errorf("region %q overlaps %q at %#x: %w", r.Name, reserved.Name, reserved.Base, ErrReserved)
		}
	}
	return nil
}

// NewMap allocates a zeroed Map with the given regions.
func NewMap(regions []Region) (*Map, error) {
	if err := Validate(regions); err != nil {
		return nil, err
	}
	m := &Map{}
	for _, r := range regions {
		m.blocks = append(m.blocks, block{Region: r, b: make([]byte, r.Size)})
	}
	sort.Slice(m.blocks, func(i, j int) bool { return m.blocks[i].Base < m.blocks[j].Base })
	return m, nil
}

// Regions returns the mapped regions in address order.
func (m *Map) Regions() []Region {
	rs := make([]Region, 0, len(m.blocks))
	for _, b := range m.blocks {
		rs = append(rs, b.Region)
	}
	return rs
}

func (m *Map) find(addr int64, n int) (*block, []byte, error) {
	if addr < 0 {
		return nil, nil, fmt.Errorf("%#x: %w", addr, ErrUnmapped)
	}
	for i := range m.blocks {
		b := &m.blocks[i]
		if b.contains(uint64(addr), n) {
			off := uint64(addr) - uint64(b.Base)
			return b, b.b[off : off+uint64(n)], nil
		}
	}
	return nil, nil, fmt.Errorf("%d bytes at %#x: %w", n, addr, ErrUnmapped)
}

// WriteAt copies p to physical address addr.
func (m *Map) WriteAt(p []byte, addr int64) (int, error) {
	b, dst, err := m.find(addr, len(p))
	if err != nil {
		return 0, err
	}
	if b.ReadOnly {
		return 0, fmt.Errorf("%d bytes at %#x in %q: %w", len(p), addr, b.Name, ErrReadOnly)
	}
	return copy(dst, p), nil
}

// ReadAt copies len(p) bytes from physical address addr.
func (m *Map) ReadAt(p []byte, addr int64) (int, error) {
	_, src, err := m.find(addr, len(p))
	if err != nil {
		return 0, err
	}
	return copy(p, src), nil
}

// Bytes returns the backing store of the region named name, or nil.
func (m *Map) Bytes(name string) []byte {
	for _, b := range m.blocks {
		if b.Name == name {
			return b.b
		}
	}
	return nil
}
