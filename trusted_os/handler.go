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
	"log"

	"github.com/usbarmory/tamago/arm"
	"github.com/usbarmory/tamago/soc/nxp/imx6ul"

	"github.com/usbarmory/GoTEE/monitor"
	"github.com/usbarmory/GoTEE/syscall"

	"github.com/transparency-dev/armored-witness-wdog/api/rpc"
	"github.com/transparency-dev/armored-witness-wdog/wdog"
)

// The exception handler is responsible for the following tasks:
//   - override GoTEE default handling for SYS_WRITE to avoid interleaved logs
//   - serve SYS_RESET through the argument watchdog restart driver
func newHandler(c *wdog.Controller) func(ctx *monitor.ExecCtx) error {
	return func(ctx *monitor.ExecCtx) error {
		return handle(ctx, c)
	}
}

func handle(ctx *monitor.ExecCtx, c *wdog.Controller) (err error) {
	switch ctx.ExceptionVector {
	case arm.SUPERVISOR:
		switch ctx.A0() {
		case syscall.SYS_WRITE:
			return bufferedStdoutLog(byte(ctx.A1()))
		case rpc.SYS_RESET:
			log.Printf("SM applet requested restart")
			// never returns
			c.Restart()
		default:
			return monitor.SecureHandler(ctx)
		}
	case arm.IRQ:
		log.Printf("SM unexpected IRQ %d", imx6ul.GIC.GetInterrupt(true))
	default:
		log.Fatalf("unhandled exception %x", ctx.ExceptionVector)
	}

	return
}
