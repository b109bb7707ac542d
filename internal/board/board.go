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

// Package board describes the hardware the boot loader runs on: where the SPI
// controller lives, how the boot chips are arranged and what physical memory
// exists.
package board

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/google/spiboot/internal/eeprom"
	"github.com/google/spiboot/internal/loader"
	"github.com/google/spiboot/internal/memory"
	"github.com/google/spiboot/internal/spi"
)

// SPI configures the SPI controller.
type SPI struct {
	// Base is the physical address of the controller's register block.
	Base uint32 `yaml:"Base"`
	// ClockDivisor is written to the clock divisor register before the
	// first transfer.
	ClockDivisor uint32 `yaml:"ClockDivisor"`
	// IdleTimeout bounds each wait for the controller to go idle. Zero
	// waits forever.
	IdleTimeout time.Duration `yaml:"IdleTimeout"`
}

// Config is the description of a board.
type Config struct {
	SPI    SPI             `yaml:"SPI"`
	EEPROM eeprom.Geometry `yaml:"EEPROM"`
	// Memory lists the physical memory regions images may be loaded into.
	Memory []memory.Region `yaml:"Memory"`
	// Mode is the loader mode, "trusted" or "checked".
	Mode string `yaml:"Mode"`
}

// Default returns the configuration of the reference board.
func Default() Config {
	return Config{
		SPI: SPI{
			Base:         0x1400000,
			ClockDivisor: 125,
		},
		EEPROM: eeprom.Geometry{
			Count:          4,
			Size:           0x20000,
			ChipSelectBase: 1,
		},
		Memory: []memory.Region{
			{Name: "rom", Base: 0x0, Size: 0x1000, ReadOnly: true},
			{Name: "ram0", Base: 0x400000, Size: 0x80000},
			{Name: "ram1", Base: 0x800000, Size: 0x80000},
		},
		Mode: loader.Trusted.String(),
	}
}

// Validate checks that the configuration describes a usable board.
func (c Config) Validate() error {
	if c.SPI.Base%4 != 0 {
		return fmt.Errorf("SPI base %#x is not word aligned", c.SPI.Base)
	}
	if c.SPI.IdleTimeout < 0 {
		return fmt.Errorf("negative SPI idle timeout %v", c.SPI.IdleTimeout)
	}
	if err := c.EEPROM.Validate(); err != nil {
		return fmt.Errorf("invalid EEPROM geometry: %w", err)
	}
	if len(c.Memory) == 0 {
		return errors.New("missing field: Memory")
	}
	if err := memory.Validate(c.Memory); err != nil {
		return fmt.Errorf("invalid memory map: %w", err)
	}
	regs := memory.Region{Name: "spi", Base: c.SPI.Base, Size: spi.RegData + 4}
	for _, r := range c.Memory {
		if r.Overlaps(regs) {
			return fmt.Errorf("memory region %q overlaps the SPI registers at %#x", r.Name, c.SPI.Base)
		}
	}
	if _, err := loader.ParseMode(c.Mode); err != nil {
		return err
	}
	return nil
}

// LoaderMode returns the parsed loader mode. Names Validate would reject map
// to Trusted.
func (c Config) LoaderMode() loader.Mode {
	m, err := loader.ParseMode(c.Mode)
	if err != nil {
		return loader.Trusted
	}
	return m
}

// Parse overlays the YAML document in b onto the default configuration and
// validates the result. Unknown fields are rejected.
func Parse(b []byte) (Config, error) {
	c := Default()
	d := yaml.NewDecoder(bytes.NewReader(b))
	d.KnownFields(true)
	if err := d.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal board config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid board config: %w", err)
	}
	return c, nil
}

// Load reads a board config from path. An empty path returns the default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read board config: %w", err)
	}
	return Parse(b)
}
