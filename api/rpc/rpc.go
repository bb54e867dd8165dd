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

// Package rpc defines the Secure Monitor interface exposed to Trusted Applets.
package rpc

import (
	"fmt"

	"github.com/coreos/go-semver/semver"
)

// Supervisor calls served by the Secure Monitor, in addition to the GoTEE
// ones.
const (
	// SYS_RESET restarts the system, it never returns.
	SYS_RESET = 0x10000004
)

// Status represents the Secure Monitor status.
type Status struct {
	Version semver.Version
	Runtime string

	// Watchdog is set when system restart through the watchdog is
	// available.
	Watchdog bool
	// WatchdogPath is the device tree path of the watchdog in use.
	WatchdogPath string
	// ExtReset is set when the watchdog drives the external reset output.
	ExtReset bool
}

// Print returns the status in textual format.
func (s *Status) Print() string {
	restart := "unavailable"

	if s.Watchdog {
		restart = fmt.Sprintf("%s (ext_reset:%v)", s.WatchdogPath, s.ExtReset)
	}

	return fmt.Sprintf("Version ................: %s\nRuntime ................: %s\nWatchdog restart .......: %s",
		s.Version.String(), s.Runtime, restart)
}
