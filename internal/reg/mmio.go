// Copyright 2024 The Armored Witness OS authors. All Rights Reserved.
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

package reg

import (
	"sync/atomic"
	"unsafe"
)

var fence uint32

// MMIO accesses registers with direct loads and stores, it must only be used
// on addresses returned by a mapping of device memory.
type MMIO struct{}

// Accessors are kept out of line so that repeated writes of the same value
// to the same register are never merged.

//go:noinline
func (MMIO) Read16(addr uintptr) uint16 {
	return *(*uint16)(unsafe.Pointer(addr))
}

//go:noinline
func (MMIO) Write16(addr uintptr, val uint16) {
	*(*uint16)(unsafe.Pointer(addr)) = val
}

// Barrier issues a full memory barrier (DMB on ARM) through an atomic
// read-modify-write.
//
//go:noinline
func (MMIO) Barrier() {
	atomic.AddUint32(&fence, 1)
}
