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

// Package loader implements the boot loader's ELF program-header driven
// image loader and the final transfer of control.
//
// Segments are loaded at their physical address (p_paddr); p_vaddr is
// ignored.
//
// Only the handful of header fields needed to find and walk the program
// header table are read. The image is otherwise trusted: in Trusted mode
// nothing is validated and problems are only reported in Result.Faults,
// while Checked mode refuses images which would write outside their own
// description.
package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang/glog"
)

// Offsets of the ELF32 header fields used by the loader.
const (
	offEntry     = 24
	offPhOff     = 28
	offPhEntSize = 42
	offPhNum     = 44

	// ProgHeaderSize is the size of an ELF32 program header record.
	ProgHeaderSize = 32

	chunkSize = 4096
)

var (
	// ErrMalformed is returned in Checked mode for images whose header or
	// program headers describe data outside the image.
	ErrMalformed = errors.New("malformed image")
	// ErrSegmentSize is returned in Checked mode for segments whose memory
	// size is smaller than their file size.
	ErrSegmentSize = errors.New("segment memory size smaller than file size")
	// ErrShortRead is returned in Checked mode when the boot medium returns
	// fewer bytes than requested.
	ErrShortRead = errors.New("short read from boot medium")
)

// Mode selects how much the loader trusts the image.
type Mode int

const (
	// Trusted loads the image exactly as described, without validation.
	Trusted Mode = iota
	// Checked validates the image description before acting on it.
	Checked
)

func (m Mode) String() string {
	switch m {
	case Trusted:
		return "trusted"
	case Checked:
		return "checked"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses the name of a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "trusted":
		return Trusted, nil
	case "checked":
		return Checked, nil
	}
	return Trusted, fmt.Errorf("unknown loader mode %q", s)
}

// Header holds the ELF header fields the loader consumes.
type Header struct {
	Entry     uint32
	PhOff     uint32
	PhEntSize uint16
	PhNum     uint16
}

// Segment describes a loaded PT_LOAD segment.
type Segment struct {
	// Index is the segment's position in the program header table.
	Index  int
	Off    uint32
	Paddr  uint32
	Filesz uint32
	Memsz  uint32
}

// Result reports the outcome of a load pass.
type Result struct {
	Entry    uint32
	Segments []Segment
	// Faults lists problems tolerated in Trusted mode.
	Faults []error
}

// Jumper transfers control to loaded code.
//
// On hardware Jump never returns. Host implementations may return, in which
// case the loader halts.
type Jumper interface {
	Jump(entry uint32)
}

// JumperFunc adapts a function to the Jumper interface.
type JumperFunc func(entry uint32)

// Jump calls f(entry).
func (f JumperFunc) Jump(entry uint32) {
	f(entry)
}

// Opts holds the optional parameters of a Loader.
type Opts struct {
	Mode Mode
	// Halt is called if the loaded program returns. It defaults to spinning
	// forever.
	Halt func()
}

// Loader loads an ELF32 image from a boot medium into physical memory.
type Loader struct {
	image io.ReaderAt
	mem   io.WriterAt
	mode  Mode
	halt  func()
}

// sizer is implemented by boot media which know their size.
type sizer interface {
	Size() int64
}

// New returns a Loader reading from image and writing to mem, where offsets
// into mem are physical addresses.
func New(image io.ReaderAt, mem io.WriterAt, opts Opts) *Loader {
	l := &Loader{
		image: image,
		mem:   mem,
		mode:  opts.Mode,
		halt:  opts.Halt,
	}
	if l.halt == nil {
		l.halt = spin
	}
	return l
}

func spin() {
	for {
	}
}

// fault handles a problem with the image: in Checked mode it is returned,
// in Trusted mode it is logged and recorded in r.
func (l *Loader) fault(r *Result, err error) error {
	if l.mode == Checked {
		return err
	}
	glog.Warningf("loader: ignoring %v", err)
	r.Faults = append(r.Faults, err)
	return nil
}

// readFull reads len(p) bytes at off. Short reads are reported as
// ErrShortRead, any other medium error is returned as is.
func (l *Loader) readFull(p []byte, off int64) (int, error) {
	n, err := l.image.ReadAt(p, off)
	if n == len(p) {
		return n, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return n, fmt.Errorf("read %d of %d bytes at %#x: %w", n, len(p), off, ErrShortRead)
	}
	return n, err
}

// readHeader reads the header fields the loader consumes.
func (l *Loader) readHeader(r *Result) (Header, error) {
	if l.mode == Checked {
		if err := l.checkIdent(); err != nil {
			return Header{}, err
		}
	}

	var h Header
	for _, f := range []struct {
		off int64
		v   interface{}
	}{
		{offPhOff, &h.PhOff},
		{offPhEntSize, &h.PhEntSize},
		{offPhNum, &h.PhNum},
		{offEntry, &h.Entry},
	} {
		b := make([]byte, binary.Size(f.v))
		if _, err := l.readFull(b, f.off); err != nil {
			if !errors.Is(err, ErrShortRead) {
				return Header{}, fmt.Errorf("failed to read header: %w", err)
			}
			if err := l.fault(r, fmt.Errorf("header field at %d: %w", f.off, err)); err != nil {
				return Header{}, err
			}
		}
		if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, f.v); err != nil {
			return Header{}, err
		}
	}
	glog.V(1).Infof("loader: entry %#08x, %d program headers of %d bytes at %#x", h.Entry, h.PhNum, h.PhEntSize, h.PhOff)

	if l.mode == Checked {
		if err := l.checkTable(h); err != nil {
			return Header{}, err
		}
	}
	return h, nil
}

func (l *Loader) checkIdent() error {
	var ident [elf.EI_NIDENT]byte
	if _, err := l.readFull(ident[:], 0); err != nil {
		return fmt.Errorf("failed to read ELF ident: %w", err)
	}
	if string(ident[:len(elf.ELFMAG)]) != elf.ELFMAG {
		return fmt.Errorf("bad magic %q: %w", ident[:len(elf.ELFMAG)], ErrMalformed)
	}
	if c := elf.Class(ident[elf.EI_CLASS]); c != elf.ELFCLASS32 {
		return fmt.Errorf("%v image: %w", c, ErrMalformed)
	}
	if d := elf.Data(ident[elf.EI_DATA]); d != elf.ELFDATA2LSB {
		return fmt.Errorf("%v image: %w", d, ErrMalformed)
	}
	return nil
}

func (l *Loader) checkTable(h Header) error {
	if h.PhNum > 0 && h.PhEntSize < ProgHeaderSize {
		return fmt.Errorf("program header size %d < %d: %w", h.PhEntSize, ProgHeaderSize, ErrMalformed)
	}
	s, ok := l.image.(sizer)
	if !ok {
		return nil
	}
	if end := int64(h.PhOff) + int64(h.PhNum)*int64(h.PhEntSize); end > s.Size() {
		return fmt.Errorf("program header table ends at %#x, past image end %#x: %w", end, s.Size(), ErrMalformed)
	}
	return nil
}

func (l *Loader) checkSegment(i int, ph elf.Prog32) error {
	if ph.Memsz < ph.Filesz {
		return fmt.Errorf("segment %d: memsz %#x < filesz %#x: %w", i, ph.Memsz, ph.Filesz, ErrSegmentSize)
	}
	if end := uint64(ph.Paddr) + uint64(ph.Memsz); end > 1<<32 {
		return fmt.Errorf("segment %d: ends at %#x, past the address space: %w", i, end, ErrMalformed)
	}
	if s, ok := l.image.(sizer); ok {
		if end := int64(ph.Off) + int64(ph.Filesz); end > s.Size() {
			return fmt.Errorf("segment %d: file data ends at %#x, past image end %#x: %w", i, end, s.Size(), ErrMalformed)
		}
	}
	return nil
}

// readProg reads program header i of the table described by h.
func (l *Loader) readProg(r *Result, h Header, i int) (elf.Prog32, error) {
	var ph elf.Prog32
	b := make([]byte, ProgHeaderSize)
	off := int64(h.PhOff) + int64(i)*int64(h.PhEntSize)
	if _, err := l.readFull(b, off); err != nil {
		if !errors.Is(err, ErrShortRead) {
			return ph, fmt.Errorf("failed to read program header %d: %w", i, err)
		}
		if err := l.fault(r, fmt.Errorf("program header %d: %w", i, err)); err != nil {
			return ph, err
		}
	}
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &ph); err != nil {
		return ph, err
	}
	return ph, nil
}

// Load reads the program header table and loads every PT_LOAD segment, in
// table order. Each header is acted on as soon as it has been read.
func (l *Loader) Load() (Result, error) {
	var r Result
	h, err := l.readHeader(&r)
	if err != nil {
		return r, err
	}
	r.Entry = h.Entry

	for i := 0; i < int(h.PhNum); i++ {
		ph, err := l.readProg(&r, h, i)
		if err != nil {
			return r, err
		}
		if elf.ProgType(ph.Type) != elf.PT_LOAD {
			glog.V(1).Infof("loader: skipping %v segment %d", elf.ProgType(ph.Type), i)
			continue
		}
		if l.mode == Checked {
			if err := l.checkSegment(i, ph); err != nil {
				return r, err
			}
		}
		if err := l.loadSegment(&r, i, ph); err != nil {
			return r, err
		}
		r.Segments = append(r.Segments, Segment{
			Index:  i,
			Off:    ph.Off,
			Paddr:  ph.Paddr,
			Filesz: ph.Filesz,
			Memsz:  ph.Memsz,
		})
	}
	return r, nil
}

// loadSegment copies the file part of a segment to its physical address and
// zero fills the rest of its memory image.
func (l *Loader) loadSegment(r *Result, i int, ph elf.Prog32) error {
	glog.V(1).Infof("loader: segment %d: %#x bytes from %#x to %#08x, memsz %#x", i, ph.Filesz, ph.Off, ph.Paddr, ph.Memsz)

	addr := int64(ph.Paddr)
	buf := make([]byte, chunkSize)
	for done := uint32(0); done < ph.Filesz; {
		c := ph.Filesz - done
		if c > chunkSize {
			c = chunkSize
		}
		n, err := l.readFull(buf[:c], int64(ph.Off)+int64(done))
		if err != nil && !errors.Is(err, ErrShortRead) {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		if n > 0 {
			if _, werr := l.mem.WriteAt(buf[:n], addr+int64(done)); werr != nil {
				if err := l.fault(r, fmt.Errorf("segment %d: %w", i, werr)); err != nil {
					return err
				}
				break
			}
		}
		if err != nil {
			// The rest of the segment is left as it was.
			if err := l.fault(r, fmt.Errorf("segment %d: %w", i, err)); err != nil {
				return err
			}
			break
		}
		done += c
	}

	if ph.Memsz < ph.Filesz {
		return l.fault(r, fmt.Errorf("segment %d: memsz %#x < filesz %#x, not zero filling: %w", i, ph.Memsz, ph.Filesz, ErrSegmentSize))
	}
	return l.zero(r, i, addr+int64(ph.Filesz), ph.Memsz-ph.Filesz)
}

func (l *Loader) zero(r *Result, i int, addr int64, n uint32) error {
	zeros := make([]byte, chunkSize)
	for done := uint32(0); done < n; {
		c := n - done
		if c > chunkSize {
			c = chunkSize
		}
		if _, err := l.mem.WriteAt(zeros[:c], addr+int64(done)); err != nil {
			return l.fault(r, fmt.Errorf("segment %d: zero fill: %w", i, err))
		}
		done += c
	}
	return nil
}

// Boot loads the image and transfers control to its entry point.
//
// On hardware Boot does not return once the image has loaded. If the loaded
// program returns, the loader halts; Boot only returns after a halt when Halt
// has been overridden.
func (l *Loader) Boot(j Jumper) (Result, error) {
	r, err := l.Load()
	if err != nil {
		return r, fmt.Errorf("failed to load image: %w", err)
	}
	glog.Infof("loader: starting image at %#08x", r.Entry)
	j.Jump(r.Entry)

	glog.Error("loader: loaded image returned, halting")
	l.halt()
	return r, nil
}
