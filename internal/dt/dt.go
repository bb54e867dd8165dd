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

// Package dt provides the flattened device tree lookup primitives used by
// Secure Monitor drivers to discover their peripherals.
package dt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/platinasystems/fdt"
)

const (
	magic = 0xd00dfeed
	// FDT header size for version 17 blobs
	headerSize = 40

	// libfdt defaults when a parent does not declare its cell sizes
	defaultAddressCells = 2
	defaultSizeCells    = 1
)

// InvalidAddress is returned by RegBase when a node has no usable register
// base address.
const InvalidAddress = ^uint64(0)

// Status represents the domains a node is enabled for.
type Status int

// Status flags
const (
	StatusOKNonSecure Status = 1 << iota
	StatusOKSecure
)

// Secure returns whether the node is usable by the Secure World.
func (s Status) Secure() bool {
	return s&StatusOKSecure != 0
}

// NonSecure returns whether the node is usable by the Normal World.
func (s Status) NonSecure() bool {
	return s&StatusOKNonSecure != 0
}

func (s Status) String() string {
	switch {
	case s.Secure() && s.NonSecure():
		return "okay"
	case s.Secure():
		return "secure"
	case s.NonSecure():
		return "non-secure"
	default:
		return "disabled"
	}
}

// Tree represents a parsed device tree blob.
type Tree struct {
	t *fdt.Tree
}

// Load parses a big endian device tree blob.
func Load(blob []byte) (tree *Tree, err error) {
	if len(blob) < headerSize {
		return nil, errors.New("device tree blob too short")
	}

	if m := binary.BigEndian.Uint32(blob[0:4]); m != magic {
		return nil, fmt.Errorf("invalid device tree magic %#x", m)
	}

	if size := binary.BigEndian.Uint32(blob[4:8]); int64(size) > int64(len(blob)) {
		return nil, fmt.Errorf("device tree size %d exceeds blob length %d", size, len(blob))
	}

	// the parser indexes the blob without bounds checks
	defer func() {
		if r := recover(); r != nil {
			tree = nil
			err = fmt.Errorf("malformed device tree, %v", r)
		}
	}()

	t := &fdt.Tree{IsLittleEndian: false}
	t.Parse(blob)

	if t.RootNode == nil {
		return nil, errors.New("device tree has no root node")
	}

	return &Tree{t: t}, nil
}

// Lookup returns the node at the argument absolute path (e.g.
// "/soc/aips-bus@02000000/wdog@020bc000").
func (t *Tree) Lookup(path string) (*Node, bool) {
	if t == nil || !strings.HasPrefix(path, "/") {
		return nil, false
	}

	n := &Node{
		path:         "/",
		n:            t.t.RootNode,
		tree:         t,
		addressCells: defaultAddressCells,
		sizeCells:    defaultSizeCells,
	}

	for _, name := range strings.Split(path, "/") {
		if len(name) == 0 {
			continue
		}

		c, ok := n.n.Children[name]

		if !ok {
			return nil, false
		}

		n = &Node{
			path:         strings.TrimSuffix(n.path, "/") + "/" + name,
			n:            c,
			tree:         t,
			addressCells: cells(t.t, n.n, "#address-cells", defaultAddressCells),
			sizeCells:    cells(t.t, n.n, "#size-cells", defaultSizeCells),
		}
	}

	return n, true
}

func cells(t *fdt.Tree, parent *fdt.Node, name string, def int) int {
	v, ok := parent.Properties[name]

	if !ok || len(v) != 4 {
		return def
	}

	return int(t.PropUint32(v))
}

// Node represents a device tree node, together with the cell sizes declared
// by its parent.
type Node struct {
	path string
	n    *fdt.Node
	tree *Tree

	addressCells int
	sizeCells    int
}

// Path returns the node absolute path.
func (n *Node) Path() string {
	return n.path
}

// HasProperty returns whether the node carries the named property.
func (n *Node) HasProperty(name string) bool {
	_, ok := n.n.Properties[name]
	return ok
}

// Status returns the node status. A missing "status" property defaults to
// "okay", a missing "secure-status" defaults to "status".
func (n *Node) Status() (st Status) {
	if v, ok := n.n.Properties["status"]; !ok || isOkay(v) {
		st |= StatusOKNonSecure
	}

	if v, ok := n.n.Properties["secure-status"]; !ok {
		if st.NonSecure() {
			st |= StatusOKSecure
		}
	} else if isOkay(v) {
		st |= StatusOKSecure
	}

	return
}

func isOkay(v []byte) bool {
	s := strings.TrimRight(string(v), "\x00")
	return s == "okay" || s == "ok"
}

func (n *Node) reg() (c []uint32, ok bool) {
	v, ok := n.n.Properties["reg"]

	if !ok || len(v) == 0 || len(v)%4 != 0 {
		return nil, false
	}

	return n.tree.t.PropUint32Slice(v), true
}

func join(c []uint32) (v uint64) {
	for _, w := range c {
		v = v<<32 | uint64(w)
	}

	return
}

// RegBase returns the physical base address of the first register window, or
// InvalidAddress.
func (n *Node) RegBase() uint64 {
	ac := n.addressCells

	if ac < 1 || ac > 2 {
		return InvalidAddress
	}

	c, ok := n.reg()

	if !ok || len(c) < ac {
		return InvalidAddress
	}

	return join(c[:ac])
}

// RegSize returns the byte size of the first register window, a negative value
// is returned on error.
func (n *Node) RegSize() int64 {
	ac := n.addressCells
	sc := n.sizeCells

	if ac < 1 || ac > 2 || sc < 1 || sc > 2 {
		return -1
	}

	c, ok := n.reg()

	if !ok || len(c) < ac+sc {
		return -1
	}

	size := join(c[ac : ac+sc])

	if size > math.MaxInt64 {
		return -1
	}

	return int64(size)
}
