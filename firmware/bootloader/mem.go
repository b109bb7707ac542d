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

package main

import (
	_ "unsafe"

	"github.com/google/spiboot/internal/memory"
)

// Override the runtime's RAM so that it lives in ram1, leaving ram0 to the
// loaded image.

//go:linkname ramStart runtime.ramStart
var ramStart uint32 = 0x800000

//go:linkname ramSize runtime.ramSize
var ramSize uint32 = 0x80000

// runtimeRAM is the memory used by the boot loader itself.
var runtimeRAM = memory.Region{Name: "runtime", Base: ramStart, Size: ramSize}
