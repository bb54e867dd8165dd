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

// Package reg provides access to memory mapped peripheral registers.
package reg

import (
	"errors"
	"fmt"
)

// Bus represents a register access method at absolute virtual addresses.
type Bus interface {
	Read16(addr uintptr) uint16
	Write16(addr uintptr, val uint16)
	// Barrier ensures that all previous accesses are observed by the
	// peripheral before any subsequent one.
	Barrier()
}

// Window represents a mapped register window of a single peripheral instance.
type Window struct {
	bus  Bus
	base uintptr
	size uintptr
}

// NewWindow returns a register window of the argument size at the argument
// mapped base address.
func NewWindow(bus Bus, base uintptr, size int64) (*Window, error) {
	if bus == nil {
		return nil, errors.New("missing register bus")
	}

	if base == 0 {
		return nil, errors.New("invalid register window base")
	}

	if size <= 0 || uint64(size) > uint64(^uintptr(0)-base) {
		return nil, fmt.Errorf("invalid register window size %d", size)
	}

	return &Window{
		bus:  bus,
		base: base,
		size: uintptr(size),
	}, nil
}

// Base returns the window mapped base address.
func (w *Window) Base() uintptr {
	return w.base
}

// Size returns the window size.
func (w *Window) Size() int64 {
	return int64(w.size)
}

func (w *Window) addr(off uintptr, width uintptr) uintptr {
	if off%width != 0 || off+width > w.size {
		panic(fmt.Sprintf("register offset %#x out of %#x byte window", off, w.size))
	}

	return w.base + off
}

// Read16 reads a 16-bit register at the argument offset.
func (w *Window) Read16(off uintptr) uint16 {
	return w.bus.Read16(w.addr(off, 2))
}

// Write16 writes a 16-bit register at the argument offset.
func (w *Window) Write16(off uintptr, val uint16) {
	w.bus.Write16(w.addr(off, 2), val)
}

// Barrier orders register accesses issued through the window.
func (w *Window) Barrier() {
	w.bus.Barrier()
}
