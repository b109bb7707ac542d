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

package spi

import (
	"sync/atomic"
	"unsafe"
)

// MMIO accesses the controller registers directly at a physical base
// address. It is only usable on bare metal.
type MMIO struct {
	Base uint32
}

var _ Registers = MMIO{}

func (m MMIO) reg(off uint32) *uint32 {
	return (*uint32)(unsafe.Pointer(uintptr(m.Base + off)))
}

// Read performs a volatile 32-bit load of the register at off.
func (m MMIO) Read(off uint32) uint32 {
	return atomic.LoadUint32(m.reg(off))
}

// Write performs a volatile 32-bit store of v to the register at off.
func (m MMIO) Write(off uint32, v uint32) {
	atomic.StoreUint32(m.reg(off), v)
}
