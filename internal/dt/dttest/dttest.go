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

// Package dttest provides support for device tree tests.
package dttest

import (
	"encoding/binary"
	"strings"
)

const (
	fdtMagic     = 0xd00dfeed
	fdtBeginNode = 0x1
	fdtEndNode   = 0x2
	fdtProp      = 0x3
	fdtEnd       = 0x9

	version     = 17
	lastVersion = 16
	headerSize  = 40
	// single terminating reserve map entry
	rsvmapSize = 16
)

// Prop is a device tree property.
type Prop struct {
	Name  string
	Value []byte
}

// Node is a device tree node, properties and children are emitted in order.
type Node struct {
	Name     string
	Props    []Prop
	Children []*Node
}

// String encodes a NUL terminated string property value.
func String(s string) []byte {
	return append([]byte(s), 0)
}

// Cells encodes a list of 32-bit cells property value.
func Cells(v ...uint32) []byte {
	b := make([]byte, 4*len(v))

	for i, c := range v {
		binary.BigEndian.PutUint32(b[i*4:], c)
	}

	return b
}

// Bus returns a node with one address and one size cell for its children, as
// used by the i.MX AIPS bus nodes.
func Bus(name string, children ...*Node) *Node {
	return &Node{
		Name: name,
		Props: []Prop{
			{"#address-cells", Cells(1)},
			{"#size-cells", Cells(1)},
		},
		Children: children,
	}
}

// Tree returns a root node holding the nodes found at the argument paths,
// intermediate nodes are created as buses.
func Tree(nodes map[string]*Node) *Node {
	root := Bus("")

	for path, n := range nodes {
		parent := root
		names := strings.Split(strings.Trim(path, "/"), "/")

		for _, name := range names[:len(names)-1] {
			parent = child(parent, name)
		}

		n.Name = names[len(names)-1]
		parent.Children = append(parent.Children, n)
	}

	return root
}

func child(parent *Node, name string) *Node {
	for _, c := range parent.Children {
		if c.Name == name {
			return c
		}
	}

	c := Bus(name)
	parent.Children = append(parent.Children, c)

	return c
}

type builder struct {
	dt      []byte
	strings []byte
	offsets map[string]int
}

func (b *builder) cell(v uint32) {
	b.dt = binary.BigEndian.AppendUint32(b.dt, v)
}

func (b *builder) pad() {
	for len(b.dt)%4 != 0 {
		b.dt = append(b.dt, 0)
	}
}

func (b *builder) stringOffset(name string) int {
	if off, ok := b.offsets[name]; ok {
		return off
	}

	off := len(b.strings)
	b.offsets[name] = off
	b.strings = append(b.strings, String(name)...)

	return off
}

func (b *builder) node(n *Node) {
	b.cell(fdtBeginNode)
	b.dt = append(b.dt, String(n.Name)...)
	b.pad()

	for _, p := range n.Props {
		b.cell(fdtProp)
		b.cell(uint32(len(p.Value)))
		b.cell(uint32(b.stringOffset(p.Name)))
		b.dt = append(b.dt, p.Value...)
		b.pad()
	}

	for _, c := range n.Children {
		b.node(c)
	}

	b.cell(fdtEndNode)
}

// Blob serializes the argument root node as a flattened device tree blob.
func Blob(root *Node) []byte {
	b := &builder{
		offsets: make(map[string]int),
	}

	b.node(root)
	b.cell(fdtEnd)

	offStruct := headerSize + rsvmapSize
	offStrings := offStruct + len(b.dt)
	total := offStrings + len(b.strings)

	blob := make([]byte, 0, total)

	for _, v := range []uint32{
		fdtMagic,
		uint32(total),
		uint32(offStruct),
		uint32(offStrings),
		headerSize,
		version,
		lastVersion,
		0,
		uint32(len(b.strings)),
		uint32(len(b.dt)),
	} {
		blob = binary.BigEndian.AppendUint32(blob, v)
	}

	blob = append(blob, make([]byte, rsvmapSize)...)
	blob = append(blob, b.dt...)
	blob = append(blob, b.strings...)

	return blob
}
