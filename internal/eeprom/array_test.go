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

package eeprom_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/spiboot/internal/eeprom"
	"github.com/google/spiboot/internal/spi"
	"github.com/google/spiboot/internal/spi/mockspi"
	"github.com/google/spiboot/internal/spi/sim"
)

// newSimArray returns an Array over simulated chips holding img, along with
// the chips' concatenated contents.
func newSimArray(t *testing.T, geo eeprom.Geometry, img []byte) (*eeprom.Array, []byte) {
	t.Helper()
	hw := sim.New()
	chips := eeprom.SplitImage(geo, img)
	eeprom.Attach(hw, geo, chips)
	a, err := eeprom.NewArray(spi.NewController(hw, spi.ControllerOpts{}), geo)
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}
	var ref []byte
	for _, c := range chips {
		ref = append(ref, c.Bytes()...)
	}
	return a, ref
}

func randomImage(r *rand.Rand, n int64) []byte {
	b := make([]byte, n)
	r.Read(b)
	return b
}

func TestReadAtMatchesReference(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, geo := range []eeprom.Geometry{
		{Count: 1, Size: 64, ChipSelectBase: 0},
		{Count: 3, Size: 17, ChipSelectBase: 2},
		{Count: 4, Size: 0x100, ChipSelectBase: 1},
		{Count: 8, Size: 32, ChipSelectBase: 0},
	} {
		t.Run(fmt.Sprintf("%dx%d", geo.Count, geo.Size), func(t *testing.T) {
			a, ref := newSimArray(t, geo, randomImage(r, geo.Capacity()))
			size := geo.Capacity()
			if got := a.Size(); got != size {
				t.Fatalf("Size() = %d, want %d", got, size)
			}

			check := func(off, n int64) {
				t.Helper()
				got := make([]byte, n)
				c, err := a.ReadAt(got, off)
				if err != nil {
					t.Fatalf("ReadAt(%d, %d): %v", off, n, err)
				}
				if int64(c) != n {
					t.Fatalf("ReadAt(%d, %d) read %d bytes", off, n, c)
				}
				if diff := cmp.Diff(ref[off:off+n], got); diff != "" {
					t.Fatalf("ReadAt(%d, %d) diff (-want +got):\n%s", off, n, diff)
				}
			}

			// Whole array, every single device, and straddling each boundary.
			check(0, size)
			for i := int64(0); i < int64(geo.Count); i++ {
				check(i*int64(geo.Size), int64(geo.Size))
				if i > 0 {
					check(i*int64(geo.Size)-1, 2)
				}
			}
			for i := 0; i < 200; i++ {
				off := r.Int63n(size)
				check(off, r.Int63n(size-off+1))
			}
		})
	}
}

func TestReadAtIdempotent(t *testing.T) {
	geo := eeprom.Geometry{Count: 4, Size: 0x100, ChipSelectBase: 1}
	a, _ := newSimArray(t, geo, randomImage(rand.New(rand.NewSource(2)), geo.Capacity()))

	first := make([]byte, 0x180)
	second := make([]byte, 0x180)
	if _, err := a.ReadAt(first, 0xc0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if _, err := a.ReadAt(second, 0xc0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("consecutive reads of the same range differ")
	}
}

func TestReadAtBounds(t *testing.T) {
	geo := eeprom.Geometry{Count: 2, Size: 16, ChipSelectBase: 1}
	img := make([]byte, 32)
	for i := range img {
		img[i] = byte(i + 1)
	}
	a, _ := newSimArray(t, geo, img)

	for _, test := range []struct {
		desc    string
		off     int64
		n       int
		want    []byte
		wantErr error
	}{
		{desc: "at end", off: 32, n: 4, want: []byte{}, wantErr: io.EOF},
		{desc: "beyond end", off: 100, n: 1, want: []byte{}, wantErr: io.EOF},
		{desc: "crossing end", off: 30, n: 4, want: []byte{31, 32}, wantErr: io.EOF},
		{desc: "last byte", off: 31, n: 1, want: []byte{32}},
		{desc: "empty read", off: 5, n: 0, want: []byte{}},
		{desc: "negative", off: -1, n: 1, want: []byte{}, wantErr: eeprom.ErrOffset},
	} {
		t.Run(test.desc, func(t *testing.T) {
			buf := make([]byte, test.n)
			n, err := a.ReadAt(buf, test.off)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("ReadAt: err %v, want %v", err, test.wantErr)
			}
			if diff := cmp.Diff(test.want, buf[:n]); diff != "" {
				t.Errorf("ReadAt diff (-want +got):\n%s", diff)
			}
		})
	}

	// Reading at the end must not alias into the first device.
	buf := []byte{0xee}
	if n, _ := a.ReadAt(buf, 32); n != 0 || buf[0] != 0xee {
		t.Errorf("ReadAt(32) wrote %d bytes (%#x)", n, buf[0])
	}
}

func TestReadAtCommandSequence(t *testing.T) {
	ctrl := gomock.NewController(t)
	bus := mockspi.NewMockBus(ctrl)
	geo := eeprom.Geometry{Count: 4, Size: 0x20000, ChipSelectBase: 1}
	a, err := eeprom.NewArray(bus, geo)
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}

	// Three bytes straddling the boundary between devices 1 and 2.
	gomock.InOrder(
		bus.EXPECT().Deselect().Return(nil),
		bus.EXPECT().Select(uint8(2)).Return(nil),
		bus.EXPECT().Transfer(byte(0x03)).Return(byte(0xff), nil),
		bus.EXPECT().Transfer(byte(0x01)).Return(byte(0xff), nil),
		bus.EXPECT().Transfer(byte(0xff)).Return(byte(0xff), nil),
		bus.EXPECT().Transfer(byte(0xfe)).Return(byte(0xff), nil),
		bus.EXPECT().Transfer(byte(0xff)).Return(byte(0xa1), nil),
		bus.EXPECT().Transfer(byte(0xff)).Return(byte(0xa2), nil),
		bus.EXPECT().Deselect().Return(nil),
		bus.EXPECT().Deselect().Return(nil),
		bus.EXPECT().Select(uint8(3)).Return(nil),
		bus.EXPECT().Transfer(byte(0x03)).Return(byte(0xff), nil),
		bus.EXPECT().Transfer(byte(0x00)).Return(byte(0xff), nil).Times(3),
		bus.EXPECT().Transfer(byte(0xff)).Return(byte(0xb1), nil),
		bus.EXPECT().Deselect().Return(nil),
	)

	got := make([]byte, 3)
	if _, err := a.ReadAt(got, 0x3fffe); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if diff := cmp.Diff([]byte{0xa1, 0xa2, 0xb1}, got); diff != "" {
		t.Errorf("ReadAt diff (-want +got):\n%s", diff)
	}
}

func TestReadAtTransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	bus := mockspi.NewMockBus(ctrl)
	a, err := eeprom.NewArray(bus, eeprom.Geometry{Count: 1, Size: 0x100})
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}
	// The chip is released even though the command never completed.
	gomock.InOrder(
		bus.EXPECT().Deselect().Return(nil),
		bus.EXPECT().Select(uint8(0)).Return(nil),
		bus.EXPECT().Transfer(byte(eeprom.OpRead)).Return(byte(0), spi.ErrTimeout),
		bus.EXPECT().Deselect().Return(nil),
	)

	if _, err := a.ReadAt(make([]byte, 4), 0); !errors.Is(err, spi.ErrTimeout) {
		t.Errorf("ReadAt: got %v, want %v", err, spi.ErrTimeout)
	}
}

func TestReadAtDeselectsAfterDataError(t *testing.T) {
	ctrl := gomock.NewController(t)
	bus := mockspi.NewMockBus(ctrl)
	a, err := eeprom.NewArray(bus, eeprom.Geometry{Count: 2, Size: 0x100, ChipSelectBase: 1})
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}
	gomock.InOrder(
		bus.EXPECT().Deselect().Return(nil),
		bus.EXPECT().Select(uint8(2)).Return(nil),
		bus.EXPECT().Transfer(gomock.Any()).Return(byte(0xff), nil).Times(4),
		bus.EXPECT().Transfer(byte(0xff)).Return(byte(0x11), nil),
		bus.EXPECT().Transfer(byte(0xff)).Return(byte(0), spi.ErrTimeout),
		bus.EXPECT().Deselect().Return(nil),
	)

	n, err := a.ReadAt(make([]byte, 4), 0x110)
	if !errors.Is(err, spi.ErrTimeout) {
		t.Errorf("ReadAt: got %v, want %v", err, spi.ErrTimeout)
	}
	if n != 0 {
		t.Errorf("ReadAt returned %d bytes from a failed chip read, want 0", n)
	}
}

func TestNewArrayRejectsBadGeometry(t *testing.T) {
	if _, err := eeprom.NewArray(nil, eeprom.Geometry{Count: 9, Size: 1}); err == nil {
		t.Error("NewArray with 9 chips succeeded")
	}
}

func TestProgrammerDeselectsAfterError(t *testing.T) {
	ctrl := gomock.NewController(t)
	bus := mockspi.NewMockBus(ctrl)
	p, err := eeprom.NewProgrammer(bus, eeprom.Geometry{Count: 1, Size: 0x100, ChipSelectBase: 1})
	if err != nil {
		t.Fatalf("NewProgrammer: %v", err)
	}
	gomock.InOrder(
		bus.EXPECT().Deselect().Return(nil),
		bus.EXPECT().Select(uint8(1)).Return(nil),
		bus.EXPECT().Transfer(byte(eeprom.OpSignature)).Return(byte(0), spi.ErrTimeout),
		bus.EXPECT().Deselect().Return(nil),
	)

	if err := p.Program(context.Background(), make([]byte, 0x10)); !errors.Is(err, spi.ErrTimeout) {
		t.Errorf("Program: got %v, want %v", err, spi.ErrTimeout)
	}
}
