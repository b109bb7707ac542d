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

// Package bridge implements an SPI transport over the serial programming
// bridge.
//
// The bridge speaks a fixed two-byte command protocol: the host sends a
// command index followed by one data byte and the bridge answers with a
// single byte.
package bridge

import (
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/google/spiboot/internal/spi"
	"github.com/pkg/term"
)

// Command indices understood by the bridge.
const (
	CmdMode0    = 0x00
	CmdMode1    = 0x01
	CmdMode2    = 0x02
	CmdMode3    = 0x03
	CmdClkDiv   = 0x04
	CmdSelect   = 0x05
	CmdTransfer = 0x06

	// selectEnable is or'ed into the chip-select index for CmdSelect.
	selectEnable = 0x08
)

// DefaultBaud is the bridge's serial line rate.
const DefaultBaud = 19200

// Bridge is a spi.Bus backed by a serial programming bridge.
type Bridge struct {
	rw io.ReadWriter
}

var _ spi.Bus = &Bridge{}

type flusher interface {
	Flush() error
}

// Open opens the serial port at path and initialises the bridge outputs.
func Open(path string, baud int) (*Bridge, io.Closer, error) {
	t, err := term.Open(path, term.Speed(baud), term.RawMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %q: %w", path, err)
	}
	b, err := New(t)
	if err != nil {
		t.Close()
		return nil, nil, err
	}
	return b, t, nil
}

// New returns a Bridge talking over rw, with all outputs set to SPI mode 0.
//
// If rw has a Flush method it is called before every command to discard any
// stale bytes from the bridge.
func New(rw io.ReadWriter) (*Bridge, error) {
	b := &Bridge{rw: rw}
	for _, c := range []byte{CmdMode0, CmdMode1, CmdMode2, CmdMode3} {
		if _, err := b.command(c, 0); err != nil {
			return nil, fmt.Errorf("failed to set output mode: %w", err)
		}
	}
	return b, nil
}

func (b *Bridge) command(idx, data byte) (byte, error) {
	if f, ok := b.rw.(flusher); ok {
		if err := f.Flush(); err != nil {
			return 0, fmt.Errorf("flush: %w", err)
		}
	}
	if _, err := b.rw.Write([]byte{idx, data}); err != nil {
		return 0, fmt.Errorf("write command %02x: %w", idx, err)
	}
	var r [1]byte
	if _, err := io.ReadFull(b.rw, r[:]); err != nil {
		return 0, fmt.Errorf("read reply to command %02x: %w", idx, err)
	}
	glog.V(3).Infof("bridge: %02x %02x -> %02x", idx, data, r[0])
	return r[0], nil
}

// SetClockDivisor implements spi.Bus. The bridge only has an 8-bit divisor.
func (b *Bridge) SetClockDivisor(d uint32) error {
	if d > 0xff {
		return fmt.Errorf("clock divisor %d does not fit the bridge's 8-bit register", d)
	}
	_, err := b.command(CmdClkDiv, byte(d))
	return err
}

// Select implements spi.Bus.
func (b *Bridge) Select(cs uint8) error {
	if cs > spi.MaxChipSelect {
		return fmt.Errorf("chip select %d out of range [0, %d]", cs, spi.MaxChipSelect)
	}
	_, err := b.command(CmdSelect, selectEnable|cs)
	return err
}

// Deselect implements spi.Bus.
func (b *Bridge) Deselect() error {
	_, err := b.command(CmdSelect, 0)
	return err
}

// Transfer implements spi.Bus.
func (b *Bridge) Transfer(v byte) (byte, error) {
	return b.command(CmdTransfer, v)
}
