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

package mmu

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
	"k8s.io/klog"
)

const devMemPath = "/dev/mem"

type devMapping struct {
	t    MemType
	pa   uint64
	data []byte
}

// DevMem maps physical I/O regions in a Linux process through /dev/mem. The
// memory type is only recorded, security attributes are enforced by the
// kernel and the TrustZone address space controller.
type DevMem struct {
	sync.Mutex

	f    *os.File
	maps []*devMapping
}

// OpenDevMem opens /dev/mem for synchronous read/write access.
func OpenDevMem() (*DevMem, error) {
	f, err := os.OpenFile(devMemPath, os.O_RDWR|os.O_SYNC, 0600)

	if err != nil {
		return nil, err
	}

	return &DevMem{f: f}, nil
}

// PhysToVirt returns the process address of a mapped physical address, zero
// is returned if the address is not mapped with the argument memory type.
func (d *DevMem) PhysToVirt(pa uint64, t MemType) uintptr {
	d.Lock()
	defer d.Unlock()

	for _, m := range d.maps {
		if m.t == t && pa >= m.pa && pa < m.pa+uint64(len(m.data)) {
			return uintptr(unsafe.Pointer(&m.data[pa-m.pa]))
		}
	}

	return 0
}

// AddMapping maps the argument physical range, expanded to page boundaries.
func (d *DevMem) AddMapping(t MemType, pa uint64, size int) error {
	if size <= 0 {
		return fmt.Errorf("invalid mapping size %d", size)
	}

	ps := uint64(os.Getpagesize())
	start := pa &^ (ps - 1)
	end := (pa + uint64(size) + ps - 1) &^ (ps - 1)

	if end <= start {
		return fmt.Errorf("mapping %#x-%#x out of range", pa, pa+uint64(size))
	}

	d.Lock()
	defer d.Unlock()

	data, err := unix.Mmap(int(d.f.Fd()), int64(start), int(end-start), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)

	if err != nil {
		return fmt.Errorf("could not map %#x-%#x, %v", start, end, err)
	}

	d.maps = append(d.maps, &devMapping{
		t:    t,
		pa:   start,
		data: data,
	})

	klog.V(1).Infof("mapped %s %#x-%#x from %s", t, start, end, devMemPath)

	return nil
}

// Close unmaps all regions and closes /dev/mem.
func (d *DevMem) Close() (err error) {
	d.Lock()
	defer d.Unlock()

	for _, m := range d.maps {
		if e := unix.Munmap(m.data); e != nil && err == nil {
			err = e
		}
	}

	d.maps = nil

	if e := d.f.Close(); e != nil && err == nil {
		err = e
	}

	return
}
