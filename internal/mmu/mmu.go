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

// Package mmu tracks the I/O memory regions mapped by Secure Monitor drivers.
//
// TamaGo runs with a flat memory layout, physical addresses are therefore
// translated to identical virtual addresses once a region has been mapped. The
// hardware translation tables are programmed through the Configure hook.
package mmu

import (
	"fmt"
	"sync"

	"k8s.io/klog"
)

// DefaultGranule is the mapping alignment used when Table.Granule is not set.
const DefaultGranule = 4096

// MemType represents the security attributes of a mapped region.
type MemType int

// Memory types
const (
	// IOSecure is device memory only accessible from the Secure World.
	IOSecure MemType = iota
	// IONonSecure is device memory accessible from both worlds.
	IONonSecure
)

func (t MemType) String() string {
	switch t {
	case IOSecure:
		return "IO_SEC"
	case IONonSecure:
		return "IO_NSEC"
	default:
		return fmt.Sprintf("MemType(%d)", int(t))
	}
}

// region represents a mapped physical range [start, end).
type region struct {
	start uint64
	end   uint64
}

func (r region) contains(pa uint64) bool {
	return pa >= r.start && pa < r.end
}

// Table represents the set of mapped I/O regions.
type Table struct {
	sync.Mutex

	// Granule is the alignment applied to new mappings.
	Granule uint64

	// Configure, when set, is invoked to program the hardware translation
	// tables for a new mapping covering [start, end).
	Configure func(t MemType, start uint64, end uint64) error

	regions map[MemType][]region
}

func (m *Table) granule() uint64 {
	if m.Granule == 0 {
		return DefaultGranule
	}

	return m.Granule
}

func (m *Table) find(t MemType, pa uint64) bool {
	for _, r := range m.regions[t] {
		if r.contains(pa) {
			return true
		}
	}

	return false
}

func (m *Table) overlaps(start uint64, end uint64) (MemType, bool) {
	for t, regions := range m.regions {
		for _, r := range regions {
			if start < r.end && end > r.start {
				return t, true
			}
		}
	}

	return 0, false
}

// PhysToVirt returns the virtual address for a physical address within a
// region of the argument memory type, zero is returned if no such region is
// mapped.
func (m *Table) PhysToVirt(pa uint64, t MemType) uintptr {
	m.Lock()
	defer m.Unlock()

	if !m.find(t, pa) {
		return 0
	}

	return uintptr(pa)
}

// AddMapping maps the argument physical range with the argument memory type.
// The range is expanded to the table granule, it must not overlap any existing
// mapping of a different memory type.
func (m *Table) AddMapping(t MemType, pa uint64, size int) (err error) {
	if size <= 0 {
		return fmt.Errorf("invalid mapping size %d", size)
	}

	g := m.granule()
	start := pa &^ (g - 1)
	end := (pa + uint64(size) + g - 1) &^ (g - 1)

	if end <= start || uint64(uint(end-1)) != end-1 {
		return fmt.Errorf("mapping %#x-%#x out of range", pa, pa+uint64(size))
	}

	m.Lock()
	defer m.Unlock()

	if prev, ok := m.overlaps(start, end); ok {
		if prev != t {
			return fmt.Errorf("mapping %#x-%#x conflicts with %s region", start, end, prev)
		}

		if m.find(t, pa) && m.find(t, pa+uint64(size)-1) {
			return nil
		}

		return fmt.Errorf("mapping %#x-%#x partially overlaps %s region", start, end, prev)
	}

	if m.Configure != nil {
		if err = m.Configure(t, start, end); err != nil {
			return
		}
	}

	if m.regions == nil {
		m.regions = make(map[MemType][]region)
	}

	m.regions[t] = append(m.regions[t], region{start: start, end: end})

	klog.V(1).Infof("mapped %s %#x-%#x", t, start, end)

	return
}
