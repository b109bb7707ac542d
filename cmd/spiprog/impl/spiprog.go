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

// Package impl is the implementation of the SPI chip programmer.
package impl

import (
	"bytes"
	"context"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/google/spiboot/internal/board"
	"github.com/google/spiboot/internal/eeprom"
	"github.com/google/spiboot/internal/spi/bridge"
)

// ProgramOpts encapsulates programmer parameters.
type ProgramOpts struct {
	Port        string
	Baud        int
	ImagePath   string
	BoardConfig string
	// ClockDivisor overrides the board config's divisor when non-zero.
	ClockDivisor uint32
	Verify       bool

	// Conn, if set, is used instead of opening Port.
	Conn io.ReadWriter
}

func Main(ctx context.Context, opts ProgramOpts) error {
	if len(opts.ImagePath) == 0 {
		return errors.New("must specify image")
	}
	img, err := os.ReadFile(opts.ImagePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if !bytes.HasPrefix(img, []byte(elf.ELFMAG)) {
		glog.Warningf("%q does not look like an ELF image, programming it anyway", opts.ImagePath)
	}
	cfg, err := board.Load(opts.BoardConfig)
	if err != nil {
		return err
	}
	div := cfg.SPI.ClockDivisor
	if opts.ClockDivisor != 0 {
		div = opts.ClockDivisor
	}

	var b *bridge.Bridge
	if opts.Conn != nil {
		b, err = bridge.New(opts.Conn)
	} else {
		var c io.Closer
		b, c, err = bridge.Open(opts.Port, opts.Baud)
		if c != nil {
			defer c.Close()
		}
	}
	if err != nil {
		return fmt.Errorf("failed to open bridge: %w", err)
	}
	if err := b.SetClockDivisor(div); err != nil {
		return fmt.Errorf("failed to set clock divisor: %w", err)
	}

	p, err := eeprom.NewProgrammer(b, cfg.EEPROM)
	if err != nil {
		return err
	}
	p.Progress = progressLogger()

	glog.Infof("Programming %d bytes from %q onto %d x %#x byte chips...", len(img), opts.ImagePath, cfg.EEPROM.Count, cfg.EEPROM.Size)
	if err := p.Program(ctx, img); err != nil {
		return fmt.Errorf("failed to program image: %w", err)
	}
	glog.Info("Image programmed.")

	if !opts.Verify {
		return nil
	}
	if err := p.Verify(img); err != nil {
		return fmt.Errorf("failed to verify image: %w", err)
	}
	glog.Info("Image verified.")
	return nil
}

// progressLogger logs every tenth of the image written.
func progressLogger() eeprom.Progress {
	last := -1
	return func(written, total int) {
		pc := written * 100 / total
		if pc/10 != last/10 {
			glog.Infof("%3d%% (%d/%d bytes)", pc, written, total)
			last = pc
		}
	}
}
