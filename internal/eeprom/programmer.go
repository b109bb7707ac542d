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
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
	"github.com/google/spiboot/internal/spi"
)

// errWriteInProgress is returned by status polls while a chip is busy.
var errWriteInProgress = errors.New("write in progress")

// MismatchError reports the first byte which did not read back as written.
type MismatchError struct {
	Offset    int64
	Want, Got byte
}

func (e MismatchError) Error() string {
	return fmt.Sprintf("verify failed at offset %#x: wrote %#02x, read %#02x", e.Offset, e.Want, e.Got)
}

// SignatureError is returned when a chip does not report the expected
// electronic signature.
type SignatureError struct {
	Device    int
	Want, Got byte
}

func (e SignatureError) Error() string {
	return fmt.Sprintf("device %d: signature %#02x, want %#02x", e.Device, e.Got, e.Want)
}

// Progress is called after each page is programmed.
type Progress func(written, total int)

// Programmer writes images to the chip array. It is used by the programming
// tool only; the boot path never writes to the chips.
type Programmer struct {
	bus       spi.Bus
	arr       *Array
	geo       Geometry
	signature byte
	// PollTimeout bounds the wait for a chip's write cycle to finish.
	PollTimeout time.Duration
	// Progress, if set, is called after each page is written.
	Progress Progress
}

// NewProgrammer returns a Programmer for the chips of geo on bus.
func NewProgrammer(bus spi.Bus, geo Geometry) (*Programmer, error) {
	arr, err := NewArray(bus, geo)
	if err != nil {
		return nil, err
	}
	if geo.Size%PageSize != 0 {
		return nil, fmt.Errorf("chip size %#x is not a whole number of %d byte pages", geo.Size, PageSize)
	}
	return &Programmer{
		bus:         bus,
		arr:         arr,
		geo:         geo,
		signature:   DefaultSignature,
		PollTimeout: 10 * time.Second,
	}, nil
}

// Program writes img to the start of the address space.
func (p *Programmer) Program(ctx context.Context, img []byte) error {
	if c := p.geo.Capacity(); int64(len(img)) > c {
		return fmt.Errorf("image of %d bytes does not fit in %d bytes of storage", len(img), c)
	}

	checked := -1
	for off := 0; off < len(img); off += PageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx, devOff, err := p.geo.Locate(int64(off))
		if err != nil {
			return err
		}
		if idx != checked {
			if err := p.checkSignature(idx); err != nil {
				return err
			}
			checked = idx
		}

		end := off + PageSize
		if end > len(img) {
			end = len(img)
		}
		if err := p.writePage(ctx, idx, devOff, img[off:end]); err != nil {
			return fmt.Errorf("device %d page %#06x: %w", idx, devOff, err)
		}
		if p.Progress != nil {
			p.Progress(end, len(img))
		}
	}
	if checked >= 0 {
		return p.waitReady(ctx, checked)
	}
	return nil
}

// Verify reads back len(img) bytes and compares them with img.
func (p *Programmer) Verify(img []byte) error {
	got := make([]byte, len(img))
	if _, err := p.arr.ReadAt(got, 0); err != nil {
		return fmt.Errorf("failed to read back image: %w", err)
	}
	if bytes.Equal(got, img) {
		return nil
	}
	for i := range img {
		if got[i] != img[i] {
			return MismatchError{Offset: int64(i), Want: img[i], Got: got[i]}
		}
	}
	return nil
}

func (p *Programmer) command(idx int, cmd ...byte) (last byte, err error) {
	if err := p.bus.Deselect(); err != nil {
		return 0, err
	}
	if err := p.bus.Select(p.geo.ChipSelect(idx)); err != nil {
		return 0, err
	}
	defer func() {
		if derr := p.bus.Deselect(); err == nil {
			err = derr
		}
	}()

	for _, b := range cmd {
		r, err := p.bus.Transfer(b)
		if err != nil {
			return 0, err
		}
		last = r
	}
	return last, nil
}

func (p *Programmer) checkSignature(idx int) error {
	sig, err := p.command(idx, OpSignature, 0, 0, 0, dummy)
	if err != nil {
		return fmt.Errorf("device %d: failed to read signature: %w", idx, err)
	}
	glog.V(1).Infof("eeprom: device %d signature %#02x", idx, sig)
	if sig != p.signature {
		return SignatureError{Device: idx, Want: p.signature, Got: sig}
	}
	return nil
}

// waitReady polls the status register of device idx until its write cycle
// has finished.
func (p *Programmer) waitReady(ctx context.Context, idx int) error {
	op := func() error {
		s, err := p.command(idx, OpReadStatus, dummy)
		if err != nil {
			return backoff.Permanent(err)
		}
		if s&statusWIP != 0 {
			return errWriteInProgress
		}
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Microsecond
	bo.MaxInterval = 10 * time.Millisecond
	bo.MaxElapsedTime = p.PollTimeout
	return backoff.RetryNotify(op, backoff.WithContext(bo, ctx), func(e error, d time.Duration) {
		glog.V(2).Infof("eeprom: device %d: %v, retrying in %v", idx, e, d)
	})
}

func (p *Programmer) writePage(ctx context.Context, idx int, devOff uint32, data []byte) error {
	if err := p.waitReady(ctx, idx); err != nil {
		return err
	}
	if _, err := p.command(idx, OpWriteEnable); err != nil {
		return fmt.Errorf("write enable: %w", err)
	}
	cmd := append([]byte{OpPageProgram, byte(devOff >> 16), byte(devOff >> 8), byte(devOff)}, data...)
	if _, err := p.command(idx, cmd...); err != nil {
		return fmt.Errorf("page program: %w", err)
	}
	return nil
}
