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
	"errors"
	"log"
	"runtime"

	"github.com/coreos/go-semver/semver"
	"github.com/usbarmory/GoTEE/monitor"

	"github.com/transparency-dev/armored-witness-wdog/api/rpc"
	"github.com/transparency-dev/armored-witness-wdog/wdog"
)

// RPC represents the Secure Monitor receiver for user/system mode RPC over
// system calls.
type RPC struct {
	Watchdog *wdog.Controller
	Ctx      *monitor.ExecCtx
}

func getStatus(c *wdog.Controller) *rpc.Status {
	s := &rpc.Status{
		Runtime: runtime.Version(),
	}

	if v, err := semver.NewVersion(Version); err == nil {
		s.Version = *v
	}

	if p, ok := c.Peripheral(); ok {
		s.Watchdog = true
		s.WatchdogPath = p.Path
		s.ExtReset = p.ExtReset
	}

	return s
}

// Status returns Secure Monitor status information.
func (r *RPC) Status(_ any, status *rpc.Status) error {
	if status == nil {
		return errors.New("invalid argument")
	}

	*status = *getStatus(r.Watchdog)

	return nil
}

// Reboot resets the system through Controller.Restart. It checks availability
// first, so that an applet receives ErrNotSupported instead of halting the
// monitor, the fatal path of an uninitialized controller is reached only
// through SYS_RESET or the monitor itself.
func (r *RPC) Reboot(_ *any, _ *bool) error {
	if !r.Watchdog.Ready() {
		return wdog.ErrNotSupported
	}

	log.Printf("SM rebooting")

	// never returns
	r.Watchdog.Restart()

	return nil
}
