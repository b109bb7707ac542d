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

// emulator boots an ELF image on a simulated board.
//
// The image is split across simulated SPI memory chips exactly as the
// programmer would write it, and the boot ROM path is then run against a
// simulated SPI controller.
//
// Usage:
//   go run ./cmd/emulator --logtostderr --image=/path/to/firmware.elf
package main

import (
	"flag"
	"time"

	"github.com/golang/glog"
	"github.com/google/spiboot/cmd/emulator/impl"
)

var (
	image       = flag.String("image", "", "ELF image to boot")
	boardConfig = flag.String("board_config", "", "Board config YAML file, defaults to the reference board")
	mode        = flag.String("mode", "", "Loader mode, one of [trusted, checked]; overrides the board config")
	spiLatency  = flag.Int("spi_latency", 0, "Number of status polls each simulated SPI exchange stays busy for")
	idleTimeout = flag.Duration("idle_timeout", time.Second, "Maximum wait for the SPI controller to go idle")
	ramDumpDir  = flag.String("ram_dump_dir", "", "If set, memory regions are written to <dir>/<region>.bin after boot")
)

func main() {
	flag.Parse()

	if err := impl.Main(impl.EmulatorOpts{
		ImagePath:   *image,
		BoardConfig: *boardConfig,
		Mode:        *mode,
		SPILatency:  *spiLatency,
		IdleTimeout: *idleTimeout,
		RAMDumpDir:  *ramDumpDir,
	}); err != nil {
		glog.Exit(err.Error())
	}
}
