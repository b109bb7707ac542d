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

package sim

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/google/spiboot/internal/spi"
)

// Bridge emulates the device side of the serial programming bridge, driving
// a simulated controller. It implements io.ReadWriter so it can stand in for
// the serial port.
type Bridge struct {
	mu    sync.Mutex
	bus   *spi.Controller
	part  []byte
	reply bytes.Buffer
	modes [4]byte
}

// NewBridge returns a bridge attached to hw.
func NewBridge(hw *Controller) *Bridge {
	return &Bridge{bus: spi.NewController(hw, spi.ControllerOpts{})}
}

// Write consumes two-byte commands and queues their replies.
func (b *Bridge) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range p {
		b.part = append(b.part, c)
		if len(b.part) < 2 {
			continue
		}
		r, err := b.execute(b.part[0], b.part[1])
		b.part = b.part[:0]
		if err != nil {
			return 0, err
		}
		b.reply.WriteByte(r)
	}
	return len(p), nil
}

// Read returns queued replies.
func (b *Bridge) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reply.Read(p)
}

// Flush discards any unread replies.
func (b *Bridge) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reply.Reset()
	return nil
}

func (b *Bridge) execute(idx, data byte) (byte, error) {
	switch idx {
	case 0x00, 0x01, 0x02, 0x03:
		b.modes[idx] = data
		return 0, nil
	case 0x04:
		return 0, b.bus.SetClockDivisor(uint32(data))
	case 0x05:
		if data&0x08 == 0 {
			return 0, b.bus.Deselect()
		}
		if err := b.bus.Deselect(); err != nil {
			return 0, err
		}
		return 0, b.bus.Select(data & 0x07)
	case 0x06:
		return b.bus.Transfer(data)
	}
	return 0, fmt.Errorf("unknown bridge command %02x", idx)
}
