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

// spiprog writes a boot image onto the SPI memory chips through the serial
// programming bridge.
//
// Usage:
//   go run ./cmd/spiprog --logtostderr --port=/dev/ttyUSB0 --image=/path/to/firmware.elf --verify
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/golang/glog"
	"github.com/google/spiboot/cmd/spiprog/impl"
	"github.com/google/spiboot/internal/spi/bridge"
)

var (
	port         = flag.String("port", "/dev/ttyUSB0", "Serial port the programming bridge is attached to")
	baud         = flag.Int("baud", bridge.DefaultBaud, "Serial line rate")
	image        = flag.String("image", "", "Image file to program")
	boardConfig  = flag.String("board_config", "", "Board config YAML file, defaults to the reference board")
	clockDivisor = flag.Uint("clock_divisor", 0, "SPI clock divisor for the bridge, 0 uses the board config")
	verify       = flag.Bool("verify", true, "Read the image back after programming")
)

func main() {
	flag.Parse()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := impl.Main(ctx, impl.ProgramOpts{
		Port:         *port,
		Baud:         *baud,
		ImagePath:    *image,
		BoardConfig:  *boardConfig,
		ClockDivisor: uint32(*clockDivisor),
		Verify:       *verify,
	}); err != nil {
		glog.Exit(err.Error())
	}
}
