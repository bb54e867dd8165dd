// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"sync"
)

const (
	outputLimit = 1024
	flushChr    = 0x0a // \n
)

// appletLog buffers Trusted Applet SYS_WRITE output until a full line is
// available, Secure Monitor and applet logs would otherwise interleave.
type appletLog struct {
	sync.Mutex
	buf bytes.Buffer
}

var taLog appletLog

func (l *appletLog) WriteByte(c byte) (err error) {
	l.Lock()
	defer l.Unlock()

	l.buf.WriteByte(c)

	if c == flushChr || l.buf.Len() > outputLimit {
		_, err = os.Stdout.Write(l.buf.Bytes())
		l.buf.Reset()
	}

	return
}

func bufferedStdoutLog(c byte) error {
	return taLog.WriteByte(c)
}
