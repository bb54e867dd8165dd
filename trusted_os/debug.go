// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build debug
// +build debug

package main

import (
	"flag"
	_ "unsafe"

	usbarmory "github.com/usbarmory/tamago/board/usbarmory/mk2"
	"k8s.io/klog"
)

const debug = true

//go:linkname printk runtime.printk
func printk(c byte) {
	usbarmory.UART2.Tx(c)
}

func init() {
	// driver debug messages (selected watchdog, reset value)
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	_ = fs.Set("logtostderr", "true")
	_ = fs.Set("v", "1")
}
