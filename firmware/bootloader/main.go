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

//go:build tamago && arm

// bootloader is the bare-metal boot ROM: it loads the ELF image held on the
// SPI memory chips into RAM and jumps to it.
//
// Build with the tamago toolchain:
//   GOOS=tamago GOARCH=arm ${TAMAGO} build -o bootloader.elf ./firmware/bootloader
package main

import (
	"flag"

	"github.com/golang/glog"
	"github.com/google/spiboot/internal/board"
	"github.com/google/spiboot/internal/loader"
	"github.com/google/spiboot/internal/memory"
	"github.com/google/spiboot/internal/spi"
	"github.com/google/spiboot/rom"
)

// defined in exec_arm.s
func exec(entry uint32)

func init() {
	// There is no filesystem for glog to write to.
	flag.Set("logtostderr", "true")
}

func main() {
	cfg := board.Default()

	mem, err := memory.NewDMA(memory.Loadable(cfg.Memory, runtimeRAM), runtimeRAM)
	if err != nil {
		glog.Exitf("memory: %v", err)
	}

	boot, err := rom.Reset(cfg, spi.MMIO{Base: cfg.SPI.Base}, mem, loader.JumperFunc(exec), rom.Opts{})
	if err != nil {
		glog.Exitf("ROM: %q", err)
	}
	if err := boot(); err != nil {
		glog.Exitf("boot: %v", err)
	}
}
