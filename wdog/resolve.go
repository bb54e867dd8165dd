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

package wdog

import (
	"fmt"

	"k8s.io/klog"

	"github.com/transparency-dev/armored-witness-wdog/internal/dt"
	"github.com/transparency-dev/armored-witness-wdog/internal/mmu"
	"github.com/transparency-dev/armored-witness-wdog/internal/reg"
)

// ExtResetProperty marks watchdog instances wired to the external reset
// output (WDOG_B).
const ExtResetProperty = "fsl,ext-reset-output"

// Mapper represents the memory mapping service.
type Mapper interface {
	PhysToVirt(pa uint64, t mmu.MemType) uintptr
	AddMapping(t mmu.MemType, pa uint64, size int) error
}

// Config represents the watchdog discovery configuration.
type Config struct {
	// Tree is the platform device tree, nil when not available.
	Tree *dt.Tree

	// Candidates overrides the platform candidate paths.
	Candidates []string

	// Mapper maps the selected register window.
	Mapper Mapper

	// Bus overrides register access, it defaults to reg.MMIO.
	Bus reg.Bus
}

// Peripheral represents the selected watchdog instance.
type Peripheral struct {
	// Path is the device tree path of the instance.
	Path string
	// Base is the register window physical address.
	Base uint64
	// Size is the register window size.
	Size int64
	// MemType is the mapping security classification.
	MemType mmu.MemType
	// ExtReset is set when the instance drives the external reset output.
	ExtReset bool

	// Window is the mapped register window.
	Window *reg.Window
}

func (cfg *Config) lookup() (node *dt.Node, st dt.Status, err error) {
	if cfg.Tree == nil {
		klog.Errorf("no device tree")
		return nil, 0, ErrNotSupported
	}

	paths := cfg.Candidates

	if paths == nil {
		paths = Candidates
	}

	for _, path := range paths {
		n, ok := cfg.Tree.Lookup(path)

		if !ok {
			continue
		}

		if st = n.Status(); st.Secure() {
			return n, st, nil
		}
	}

	return nil, 0, fmt.Errorf("no secure watchdog in %d candidates: %w", len(paths), ErrNotFound)
}

func (cfg *Config) mapWindow(pa uint64, size int64, t mmu.MemType) (va uintptr, err error) {
	if cfg.Mapper == nil {
		return 0, fmt.Errorf("no memory mapper: %w", ErrGeneric)
	}

	if int64(int(size)) != size {
		return 0, fmt.Errorf("register window size %#x exceeds address space: %w", size, ErrGeneric)
	}

	// the window may already be covered by a static mapping
	if va = cfg.Mapper.PhysToVirt(pa, t); va == 0 {
		if err = cfg.Mapper.AddMapping(t, pa, int(size)); err != nil {
			klog.Errorf("failed to map %d bytes at PA %#x, %v", size, pa, err)
			return 0, fmt.Errorf("%v: %w", err, ErrGeneric)
		}
	}

	if va = cfg.Mapper.PhysToVirt(pa, t); va == 0 {
		klog.Errorf("failed to get VA for PA %#x", pa)
		return 0, fmt.Errorf("no virtual address for %#x: %w", pa, ErrGeneric)
	}

	return
}

// Resolve selects the first candidate watchdog usable by the Secure World and
// maps its register window.
func Resolve(cfg *Config) (p *Peripheral, err error) {
	node, st, err := cfg.lookup()

	if err != nil {
		return
	}

	klog.V(1).Infof("wdog path: %s", node.Path())

	p = &Peripheral{
		Path:     node.Path(),
		ExtReset: node.HasProperty(ExtResetProperty),
	}

	if p.Base = node.RegBase(); p.Base == dt.InvalidAddress {
		return nil, fmt.Errorf("%s: invalid register base: %w", p.Path, ErrNotFound)
	}

	if p.Size = node.RegSize(); p.Size < 0 {
		return nil, fmt.Errorf("%s: invalid register size: %w", p.Path, ErrNotFound)
	}

	if p.Size < windowSize {
		return nil, fmt.Errorf("%s: register window too small (%d bytes): %w", p.Path, p.Size, ErrNotFound)
	}

	if st.Secure() && !st.NonSecure() {
		p.MemType = mmu.IOSecure
	} else {
		p.MemType = mmu.IONonSecure
	}

	va, err := cfg.mapWindow(p.Base, p.Size, p.MemType)

	if err != nil {
		return nil, err
	}

	bus := cfg.Bus

	if bus == nil {
		bus = reg.MMIO{}
	}

	if p.Window, err = reg.NewWindow(bus, va, p.Size); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrGeneric)
	}

	return
}
