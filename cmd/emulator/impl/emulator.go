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

// Package impl is the implementation of the board emulator.
package impl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/glog"
	"github.com/google/spiboot/internal/board"
	"github.com/google/spiboot/internal/eeprom"
	"github.com/google/spiboot/internal/loader"
	"github.com/google/spiboot/internal/memory"
	"github.com/google/spiboot/internal/spi/sim"
	"github.com/google/spiboot/rom"
)

// EmulatorOpts encapsulates emulator parameters.
type EmulatorOpts struct {
	ImagePath   string
	BoardConfig string
	// Mode overrides the board config's loader mode when set.
	Mode string
	// SPILatency is the number of status polls each exchange takes.
	SPILatency int
	// IdleTimeout overrides the board config's SPI idle timeout when set.
	IdleTimeout time.Duration
	// RAMDumpDir receives one file per memory region after boot.
	RAMDumpDir string
	// Out receives the boot report. Defaults to stdout.
	Out io.Writer
}

// Run is the outcome of an emulated boot.
type Run struct {
	// Jumped is true if control was transferred to the image.
	Jumped bool
	Entry  uint32
	Result loader.Result
	Memory *memory.Map
}

func Main(opts EmulatorOpts) error {
	run, err := Boot(opts)
	if err != nil {
		return err
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	report(out, run)

	if opts.RAMDumpDir != "" {
		if err := dump(opts.RAMDumpDir, run.Memory); err != nil {
			return err
		}
	}
	return nil
}

// Boot runs the boot ROM on a simulated board holding the image at
// opts.ImagePath.
func Boot(opts EmulatorOpts) (Run, error) {
	if len(opts.ImagePath) == 0 {
		return Run{}, errors.New("must specify image")
	}
	img, err := os.ReadFile(opts.ImagePath)
	if err != nil {
		return Run{}, fmt.Errorf("failed to read image: %w", err)
	}
	cfg, err := board.Load(opts.BoardConfig)
	if err != nil {
		return Run{}, err
	}
	if opts.Mode != "" {
		cfg.Mode = opts.Mode
	}
	if opts.IdleTimeout > 0 {
		cfg.SPI.IdleTimeout = opts.IdleTimeout
	}
	if c := cfg.EEPROM.Capacity(); int64(len(img)) > c {
		return Run{}, fmt.Errorf("image of %d bytes does not fit in the %d byte chip array", len(img), c)
	}

	hw := sim.New()
	hw.Latency = opts.SPILatency
	eeprom.Attach(hw, cfg.EEPROM, eeprom.SplitImage(cfg.EEPROM, img))
	mem, err := memory.NewMap(cfg.Memory)
	if err != nil {
		return Run{}, err
	}

	run := Run{Memory: mem}
	j := loader.JumperFunc(func(entry uint32) {
		glog.Infof("Image entered at %#08x", entry)
		run.Jumped = true
		run.Entry = entry
	})
	boot, err := rom.Reset(cfg, hw, mem, j, rom.Opts{
		Halt:   func() { glog.Info("Halted") },
		Report: func(r loader.Result) { run.Result = r },
	})
	if err != nil {
		return Run{}, fmt.Errorf("ROM: %w", err)
	}
	if err := boot(); err != nil {
		return run, fmt.Errorf("boot: %w", err)
	}
	return run, nil
}

func report(w io.Writer, run Run) {
	r := run.Result
	fmt.Fprintf(w, "entry %#08x\n", r.Entry)
	for _, s := range r.Segments {
		fmt.Fprintf(w, "segment %d: paddr %#08x filesz %#x memsz %#x (file offset %#x)\n", s.Index, s.Paddr, s.Filesz, s.Memsz, s.Off)
	}
	for _, f := range r.Faults {
		fmt.Fprintf(w, "fault: %v\n", f)
	}
}

func dump(dir string, mem *memory.Map) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}
	for _, r := range mem.Regions() {
		p := filepath.Join(dir, r.Name+".bin")
		if err := os.WriteFile(p, mem.Bytes(r.Name), 0o644); err != nil {
			return fmt.Errorf("failed to dump %q: %w", r.Name, err)
		}
		glog.V(1).Infof("Wrote %s (%#x bytes at %#08x)", p, r.Size, r.Base)
	}
	return nil
}
