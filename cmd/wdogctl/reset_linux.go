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
	"k8s.io/klog"

	"github.com/transparency-dev/armored-witness-wdog/internal/mmu"
	"github.com/transparency-dev/armored-witness-wdog/wdog"
)

// reset maps the watchdog registers through /dev/mem and restarts the system,
// it only returns on error.
func reset(cfg *wdog.Config) error {
	m, err := mmu.OpenDevMem()

	if err != nil {
		return err
	}

	defer m.Close()

	cfg.Mapper = m

	c := &wdog.Controller{}

	if err = c.Probe(cfg); err != nil {
		return err
	}

	klog.Infof("Restarting")
	klog.Flush()

	// never returns
	c.Restart()

	return nil
}
