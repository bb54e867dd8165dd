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

// Package wdog implements system restart through the NXP i.MX Watchdog Timer
// (WDOG), for Secure World use.
//
// The watchdog instance is discovered in the platform device tree by Resolve
// and handed to a Controller at boot, the Controller Restart method then
// asserts the watchdog reset and never returns.
//
// The candidate device tree paths are selected at build time, i.MX6 paths are
// used by default while the `mx7` build tag selects i.MX7 ones.
package wdog

import (
	"errors"
	"fmt"

	"github.com/usbarmory/tamago/bits"
	"k8s.io/klog"
)

// WDOG registers
// (p1139, 26.6 WDOG Memory Map/Register Definition, IMX6ULLRM).
const (
	WDOGx_WCR = 0x00
	WCR_WDA   = 5
	WCR_SRS   = 4
	WCR_WDE   = 2

	WDOGx_WSR = 0x02
	WSR_SEQ1  = 0x5555
	WSR_SEQ2  = 0xaaaa

	windowSize = WDOGx_WSR + 2
)

// Reset commands, WDA and SRS are active low.
var (
	// ResetExternal asserts WDOG_B, routed to the external reset output.
	ResetExternal = command(WCR_SRS)
	// ResetInternal asserts the software reset signal.
	ResetInternal = command(WCR_WDA)
)

func command(keep int) uint16 {
	var wcr uint32

	bits.Set(&wcr, WCR_WDE)
	bits.Set(&wcr, keep)

	return uint16(wcr)
}

type state interface {
	isState()
}

type uninitialized struct{}

func (uninitialized) isState() {}

type ready struct {
	p *Peripheral
}

func (ready) isState() {}

// Controller represents the watchdog restart driver state. The zero value is
// an uninitialized controller.
type Controller struct {
	state state

	// overridden in tests
	fatalf func(format string, args ...interface{})
	wait   func()
}

// Init moves the controller to its ready state, it can only succeed once.
func (c *Controller) Init(p *Peripheral) error {
	if p == nil || p.Window == nil {
		return errors.New("missing watchdog register window")
	}

	if c.Ready() {
		return errors.New("watchdog already initialized")
	}

	c.state = ready{p: p}

	return nil
}

// Probe resolves the watchdog instance and initializes the controller.
func (c *Controller) Probe(cfg *Config) error {
	p, err := Resolve(cfg)

	if err != nil {
		return err
	}

	if err = c.Init(p); err != nil {
		return fmt.Errorf("%v: %w", err, ErrGeneric)
	}

	klog.Infof("wdog %s (%s) at %#x, ext_reset:%v", p.Path, p.MemType, p.Base, p.ExtReset)

	return nil
}

func (c *Controller) current() state {
	if c.state == nil {
		return uninitialized{}
	}

	return c.state
}

// Ready returns whether the controller can restart the system.
func (c *Controller) Ready() bool {
	_, ok := c.current().(ready)
	return ok
}

// Peripheral returns the watchdog instance in use, if any.
func (c *Controller) Peripheral() (*Peripheral, bool) {
	if r, ok := c.current().(ready); ok {
		return r.p, true
	}

	return nil, false
}

func (c *Controller) halt() {
	if c.wait != nil {
		c.wait()
	}
}

// Restart resets the system through the watchdog, it never returns.
//
// An uninitialized controller is a fatal error: no register is accessed and
// the process is terminated.
func (c *Controller) Restart() {
	r, ok := c.current().(ready)

	if !ok {
		fatalf := c.fatalf

		if fatalf == nil {
			fatalf = klog.Exitf
		}

		klog.Errorf("no wdog mapped")
		fatalf("wdog: restart requested without a mapped watchdog")

		for {
			c.halt()
		}
	}

	win := r.p.Window
	val := ResetInternal

	if r.p.ExtReset {
		val = ResetExternal
	}

	klog.V(1).Infof("wdog restart val %#x", val)

	win.Write16(WDOGx_WCR, val)
	win.Barrier()

	wcr := uint32(win.Read16(WDOGx_WCR))

	// an enabled watchdog requires the service sequence
	if bits.Get(&wcr, WCR_WDE, 1) == 1 {
		win.Write16(WDOGx_WSR, WSR_SEQ1)
		win.Write16(WDOGx_WSR, WSR_SEQ2)
	}

	win.Write16(WDOGx_WCR, val)
	win.Write16(WDOGx_WCR, val)

	for {
		c.halt()
	}
}
