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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/spiboot/internal/eeprom"
	"github.com/google/spiboot/internal/spi"
	"github.com/google/spiboot/internal/spi/bridge"
	"github.com/google/spiboot/internal/spi/sim"
)

// exchange runs one chip-select cycle against c.
func exchange(c *eeprom.Chip, out ...byte) []byte {
	c.Select()
	defer c.Deselect()
	in := make([]byte, len(out))
	for i, b := range out {
		in[i] = c.Exchange(b)
	}
	return in
}

func TestChipRead(t *testing.T) {
	c := eeprom.NewChip(0x400, []byte("hello, world"))
	got := exchange(c, 0x03, 0x00, 0x00, 0x07, 0xff, 0xff, 0xff, 0xff, 0xff)
	if diff := cmp.Diff([]byte("world"), got[4:]); diff != "" {
		t.Errorf("read diff (-want +got):\n%s", diff)
	}

	// Addresses wrap at the end of the chip.
	got = exchange(c, 0x03, 0x00, 0x03, 0xff, 0xff, 0xff)
	if diff := cmp.Diff([]byte{0, 'h'}, got[4:]); diff != "" {
		t.Errorf("wrapped read diff (-want +got):\n%s", diff)
	}
}

func TestChipUnsupportedCommand(t *testing.T) {
	c := eeprom.NewChip(0x100, []byte{1, 2, 3})
	got := exchange(c, 0x9f, 0x00, 0x00)
	if diff := cmp.Diff([]byte{0xff, 0xff, 0xff}, got); diff != "" {
		t.Errorf("unsupported command diff (-want +got):\n%s", diff)
	}
}

func TestChipSignature(t *testing.T) {
	c := eeprom.NewChip(0x100, nil)
	if got := exchange(c, 0xab, 0, 0, 0, 0xff)[4]; got != eeprom.DefaultSignature {
		t.Errorf("signature = %#x, want %#x", got, eeprom.DefaultSignature)
	}
}

func TestChipPageProgram(t *testing.T) {
	c := eeprom.NewChip(0x200, nil)

	// Without write enable the program is ignored.
	exchange(c, 0x02, 0x00, 0x00, 0x10, 0xaa)
	if got := c.Bytes()[0x10]; got != 0 {
		t.Fatalf("program without WREN wrote %#x", got)
	}

	exchange(c, 0x06)
	if got := exchange(c, 0x05, 0xff)[1]; got != 0x02 {
		t.Fatalf("status after WREN = %#x, want 0x02", got)
	}
	// Program the last two bytes of page 0 and wrap to its start.
	exchange(c, 0x02, 0x00, 0x00, 0xfe, 1, 2, 3)
	if got := exchange(c, 0x05, 0xff)[1]; got != 0x01 {
		t.Errorf("status after program = %#x, want 0x01", got)
	}
	if got := exchange(c, 0x05, 0xff)[1]; got != 0x00 {
		t.Errorf("status after write cycle = %#x, want 0x00", got)
	}
	mem := c.Bytes()
	if mem[0xfe] != 1 || mem[0xff] != 2 || mem[0x00] != 3 || mem[0x100] != 0 {
		t.Errorf("page program wrote %v...%v", mem[:2], mem[0xfe:0x101])
	}
}

func TestProgramAndVerify(t *testing.T) {
	geo := eeprom.Geometry{Count: 3, Size: 0x400, ChipSelectBase: 1}
	img := make([]byte, 0x900)
	for i := range img {
		img[i] = byte(i*7 + i>>8)
	}

	for _, test := range []struct {
		desc   string
		newBus func(hw *sim.Controller) (spi.Bus, error)
	}{
		{
			desc: "controller",
			newBus: func(hw *sim.Controller) (spi.Bus, error) {
				return spi.NewController(hw, spi.ControllerOpts{}), nil
			},
		}, {
			desc: "bridge",
			newBus: func(hw *sim.Controller) (spi.Bus, error) {
				return bridge.New(sim.NewBridge(hw))
			},
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			hw := sim.New()
			chips := eeprom.SplitImage(geo, nil)
			eeprom.Attach(hw, geo, chips)
			bus, err := test.newBus(hw)
			if err != nil {
				t.Fatalf("newBus: %v", err)
			}
			p, err := eeprom.NewProgrammer(bus, geo)
			if err != nil {
				t.Fatalf("NewProgrammer: %v", err)
			}
			var last int
			p.Progress = func(written, total int) { last = written }

			if err := p.Program(context.Background(), img); err != nil {
				t.Fatalf("Program: %v", err)
			}
			if last != len(img) {
				t.Errorf("last progress %d, want %d", last, len(img))
			}
			if err := p.Verify(img); err != nil {
				t.Fatalf("Verify: %v", err)
			}

			var got []byte
			for _, c := range chips {
				got = append(got, c.Bytes()...)
			}
			if !bytes.Equal(got[:len(img)], img) {
				t.Error("chip contents differ from image")
			}
			if !bytes.Equal(got[len(img):], make([]byte, len(got)-len(img))) {
				t.Error("programming touched bytes past the image")
			}
		})
	}
}

func TestProgramErrors(t *testing.T) {
	geo := eeprom.Geometry{Count: 2, Size: 0x100, ChipSelectBase: 1}

	t.Run("too large", func(t *testing.T) {
		p, err := eeprom.NewProgrammer(spi.NewController(sim.New(), spi.ControllerOpts{}), geo)
		if err != nil {
			t.Fatalf("NewProgrammer: %v", err)
		}
		if err := p.Program(context.Background(), make([]byte, 0x201)); err == nil {
			t.Error("Program of oversized image succeeded")
		}
	})

	t.Run("wrong signature", func(t *testing.T) {
		hw := sim.New()
		chips := eeprom.SplitImage(geo, nil)
		chips[1].Signature = 0x13
		eeprom.Attach(hw, geo, chips)
		p, err := eeprom.NewProgrammer(spi.NewController(hw, spi.ControllerOpts{}), geo)
		if err != nil {
			t.Fatalf("NewProgrammer: %v", err)
		}
		err = p.Program(context.Background(), make([]byte, 0x180))
		var se eeprom.SignatureError
		if !errors.As(err, &se) {
			t.Fatalf("Program: got %v, want SignatureError", err)
		}
		if se.Device != 1 || se.Got != 0x13 {
			t.Errorf("got %+v", se)
		}
	})

	t.Run("verify mismatch", func(t *testing.T) {
		hw := sim.New()
		eeprom.Attach(hw, geo, eeprom.SplitImage(geo, []byte{1, 2, 3, 4}))
		p, err := eeprom.NewProgrammer(spi.NewController(hw, spi.ControllerOpts{}), geo)
		if err != nil {
			t.Fatalf("NewProgrammer: %v", err)
		}
		err = p.Verify([]byte{1, 2, 9, 4})
		var me eeprom.MismatchError
		if !errors.As(err, &me) {
			t.Fatalf("Verify: got %v, want MismatchError", err)
		}
		if diff := cmp.Diff(eeprom.MismatchError{Offset: 2, Want: 9, Got: 3}, me); diff != "" {
			t.Errorf("MismatchError diff (-want +got):\n%s", diff)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		hw := sim.New()
		eeprom.Attach(hw, geo, eeprom.SplitImage(geo, nil))
		p, err := eeprom.NewProgrammer(spi.NewController(hw, spi.ControllerOpts{}), geo)
		if err != nil {
			t.Fatalf("NewProgrammer: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := p.Program(ctx, make([]byte, 16)); !errors.Is(err, context.Canceled) {
			t.Errorf("Program: got %v, want %v", err, context.Canceled)
		}
	})

	t.Run("odd chip size", func(t *testing.T) {
		if _, err := eeprom.NewProgrammer(nil, eeprom.Geometry{Count: 1, Size: 100}); err == nil {
			t.Error("NewProgrammer accepted a partial page")
		}
	})
}
