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

// The wdogctl tool reports which i.MX watchdog a device tree blob makes
// available to the Secure World and, on Linux, can restart the system through
// it.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/coreos/go-semver/semver"
	"k8s.io/klog"

	"github.com/transparency-dev/armored-witness-wdog/api/rpc"
	"github.com/transparency-dev/armored-witness-wdog/internal/dt"
	"github.com/transparency-dev/armored-witness-wdog/internal/mmu"
	"github.com/transparency-dev/armored-witness-wdog/wdog"
)

// initialized at compile time
var Version = "0.0.0"

var (
	dtbFile    = flag.String("dtb", "", "Device tree blob to inspect.")
	candidates = flag.String("candidates", "", "Comma separated watchdog node paths, overriding the built-in table.")
	doReset    = flag.Bool("reset", false, "Restart the system through the selected watchdog (Linux, requires /dev/mem access).")
)

func splitPaths(s string) (paths []string) {
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); len(p) > 0 {
			paths = append(paths, p)
		}
	}

	return
}

func config(blob []byte, paths []string) (*wdog.Config, error) {
	tree, err := dt.Load(blob)

	if err != nil {
		return nil, err
	}

	return &wdog.Config{
		Tree:       tree,
		Candidates: paths,
	}, nil
}

// inspect resolves the watchdog against a translation table which is never
// programmed, no register is accessed.
func inspect(cfg *wdog.Config) (*rpc.Status, error) {
	cfg.Mapper = &mmu.Table{}

	s := &rpc.Status{
		Runtime: runtime.Version(),
	}

	if v, err := semver.NewVersion(Version); err == nil {
		s.Version = *v
	}

	c := &wdog.Controller{}

	if err := c.Probe(cfg); err != nil {
		return s, err
	}

	p, _ := c.Peripheral()

	s.Watchdog = true
	s.WatchdogPath = p.Path
	s.ExtReset = p.ExtReset

	klog.Infof("register window %#x-%#x (%s), reset value %#x", p.Base, p.Base+uint64(p.Size), p.MemType, resetValue(p))

	return s, nil
}

func resetValue(p *wdog.Peripheral) uint16 {
	if p.ExtReset {
		return wdog.ResetExternal
	}

	return wdog.ResetInternal
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if len(*dtbFile) == 0 {
		flag.PrintDefaults()
		os.Exit(1)
	}

	blob, err := os.ReadFile(*dtbFile)

	if err != nil {
		klog.Exitf("Failed to read device tree %q: %v", *dtbFile, err)
	}

	cfg, err := config(blob, splitPaths(*candidates))

	if err != nil {
		klog.Exitf("Failed to load device tree %q: %v", *dtbFile, err)
	}

	s, err := inspect(cfg)

	fmt.Println(s.Print())

	if err != nil {
		klog.Exitf("No usable watchdog: %v", err)
	}

	if !*doReset {
		return
	}

	cfg.Mapper = nil

	if err = reset(cfg); err != nil {
		klog.Exitf("Failed to restart: %v", err)
	}
}
