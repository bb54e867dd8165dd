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

package main

import (
	"embed"
	"log"
	"os"
	"runtime"

	usbarmory "github.com/usbarmory/tamago/board/usbarmory/mk2"
	"github.com/usbarmory/tamago/soc/nxp/imx6ul"

	"github.com/transparency-dev/armored-witness-wdog/internal/driver"
	"github.com/transparency-dev/armored-witness-wdog/internal/dt"
	"github.com/transparency-dev/armored-witness-wdog/wdog"
)

// initialized at compile time (see Makefile)
var (
	Build    string
	Revision string
	Version  string
)

const (
	dtbPath    = "assets/imx6ul-usbarmory.dtb"
	appletPath = "assets/trusted_applet.elf"
)

// The platform device tree is embedded at build time, a Trusted Applet can
// also be embedded for testing purposes with QEMU.
//
//go:embed assets
var assets embed.FS

var (
	drivers  = &driver.Registry{}
	watchdog = &wdog.Controller{}
)

func probeWatchdog() error {
	var tree *dt.Tree

	if blob, err := assets.ReadFile(dtbPath); err != nil {
		log.Printf("SM no device tree, %v", err)
	} else if tree, err = dt.Load(blob); err != nil {
		log.Printf("SM invalid device tree, %v", err)
	}

	return watchdog.Probe(&wdog.Config{
		Tree:   tree,
		Mapper: memoryMap,
	})
}

func init() {
	log.SetFlags(log.Ltime)
	log.SetOutput(os.Stdout)

	if imx6ul.Native {
		imx6ul.SetARMFreq(imx6ul.Freq792)
	}

	imx6ul.GIC.Init(true, false)

	log.Printf("%s/%s (%s) • TEE security monitor (Secure World system/monitor) • %s %s",
		runtime.GOOS, runtime.GOARCH, runtime.Version(),
		Revision, Build)

	drivers.Register("imx_wdog", probeWatchdog)
}

func main() {
	usbarmory.LED("blue", false)
	usbarmory.LED("white", false)

	if failed := drivers.Run(); failed > 0 {
		log.Printf("SM %d driver(s) failed to initialize", failed)
	}

	if !watchdog.Ready() {
		log.Printf("SM watchdog restart unavailable")
	}

	rpc := &RPC{
		Watchdog: watchdog,
	}

	if elf, err := assets.ReadFile(appletPath); err == nil && len(elf) != 0 {
		usbarmory.LED("white", true)

		if _, err = loadApplet(elf, rpc); err != nil {
			log.Printf("SM applet execution error, %v", err)
		}
	}

	log.Printf("SM no applet running, restarting")

	// never returns
	watchdog.Restart()
}
