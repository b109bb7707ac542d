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

// Package testonly contains helpers for building boot images in tests.
package testonly

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// MachineJC is the e_machine value of the target processor ("JC").
const MachineJC = elf.Machine(0x434a)

const (
	ehSize = 52
	phSize = 32
)

// Segment describes one program header of a test image. Data is the file
// part of the segment; Memsz is used as given.
type Segment struct {
	Type  elf.ProgType
	Paddr uint32
	Vaddr uint32
	Memsz uint32
	Flags elf.ProgFlag
	Data  []byte
}

// ELF32 returns a little-endian ELF32 executable with the given entry point
// and program headers. Segment data follows the program header table, each
// aligned to 16 bytes.
func ELF32(entry uint32, segs []Segment) []byte {
	h := elf.Header32{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(MachineJC),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     entry,
		Phoff:     ehSize,
		Ehsize:    ehSize,
		Phentsize: phSize,
		Phnum:     uint16(len(segs)),
		Shentsize: 40,
	}
	copy(h.Ident[:], elf.ELFMAG)
	h.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	h.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	h.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	off := align(ehSize + phSize*len(segs))
	progs := make([]elf.Prog32, len(segs))
	for i, s := range segs {
		progs[i] = elf.Prog32{
			Type:   uint32(s.Type),
			Off:    uint32(off),
			Vaddr:  s.Vaddr,
			Paddr:  s.Paddr,
			Filesz: uint32(len(s.Data)),
			Memsz:  s.Memsz,
			Flags:  uint32(s.Flags),
			Align:  16,
		}
		off = align(off + len(s.Data))
	}

	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, h)
	binary.Write(&b, binary.LittleEndian, progs)
	for i, s := range segs {
		pad(&b, int(progs[i].Off))
		b.Write(s.Data)
	}
	pad(&b, off)
	return b.Bytes()
}

func align(n int) int {
	return (n + 15) &^ 15
}

func pad(b *bytes.Buffer, to int) {
	for b.Len() < to {
		b.WriteByte(0)
	}
}
