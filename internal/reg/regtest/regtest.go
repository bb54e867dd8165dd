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

// Package regtest provides a register bus recording all accesses, for
// peripheral driver tests.
package regtest

import "fmt"

// Kind is a register access type.
type Kind int

// Access types
const (
	Read Kind = iota
	Write
	Barrier
)

func (k Kind) String() string {
	switch k {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return "barrier"
	}
}

// Op is a recorded register access.
type Op struct {
	Kind Kind
	Addr uintptr
	Val  uint16
}

func (o Op) String() string {
	if o.Kind == Barrier {
		return "{barrier}"
	}

	return fmt.Sprintf("{%s @ %08x = %04x}", o.Kind, o.Addr, o.Val)
}

// Bus is a fake register bus. Reads return the value found in Regs, writes are
// recorded without affecting Regs as peripheral registers do not necessarily
// read back written values.
type Bus struct {
	Regs map[uintptr]uint16
	Ops  []Op
}

// New returns an empty fake bus.
func New() *Bus {
	return &Bus{
		Regs: make(map[uintptr]uint16),
	}
}

func (b *Bus) Read16(addr uintptr) (val uint16) {
	val = b.Regs[addr]
	b.Ops = append(b.Ops, Op{Read, addr, val})
	return
}

func (b *Bus) Write16(addr uintptr, val uint16) {
	b.Ops = append(b.Ops, Op{Write, addr, val})
}

func (b *Bus) Barrier() {
	b.Ops = append(b.Ops, Op{Kind: Barrier})
}

// Writes returns the recorded write accesses.
func (b *Bus) Writes() (ops []Op) {
	for _, o := range b.Ops {
		if o.Kind == Write {
			ops = append(ops, o)
		}
	}

	return
}
