// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	_ "unsafe"

	"github.com/usbarmory/tamago/arm"
	"github.com/usbarmory/tamago/dma"
	"github.com/usbarmory/tamago/soc/nxp/imx6ul"

	"github.com/transparency-dev/armored-witness-wdog/internal/mmu"
)

const (
	// Secure Monitor
	secureStart = 0x80000000
	secureSize  = 0x0e000000 // 224MB

	// Secure Monitor DMA
	secureDMAStart = 0x8e000000
	secureDMASize  = 0x02000000 // 32MB

	// Secure Monitor Applet
	appletStart = 0x90000000
	appletSize  = 0x10000000 // 256MB
)

// first level translation table entry NS bit
// (p1330, B3.5.1 Short-descriptor translation table format descriptors, ARM DDI 0406C.d)
const tteNS = 1 << 19

//go:linkname ramStart runtime.ramStart
var ramStart uint32 = secureStart

//go:linkname ramSize runtime.ramSize
var ramSize uint32 = secureSize

var appletRegion *dma.Region

// memoryMap tracks peripheral mappings added after boot, the TamaGo MMU uses
// 1MB sections.
var memoryMap = &mmu.Table{
	Granule:   1 << 20,
	Configure: configureMMU,
}

// configureMMU programs the first level translation table for a device
// region, the runtime identity map is preserved.
func configureMMU(t mmu.MemType, start uint64, end uint64) error {
	if end > 1<<32 {
		return fmt.Errorf("region %#x-%#x outside 32-bit address space", start, end)
	}

	flags := uint32(arm.DeviceRegion)

	if t == mmu.IONonSecure {
		flags |= tteNS
	}

	imx6ul.ARM.ConfigureMMU(uint32(start), uint32(end), 0, flags)

	return nil
}

func init() {
	appletRegion, _ = dma.NewRegion(appletStart, appletSize, false)
	appletRegion.Reserve(appletSize, 0)

	dma.Init(secureDMAStart, secureDMASize)
}
