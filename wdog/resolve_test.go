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

package wdog

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/transparency-dev/armored-witness-wdog/internal/dt"
	"github.com/transparency-dev/armored-witness-wdog/internal/dt/dttest"
	"github.com/transparency-dev/armored-witness-wdog/internal/mmu"
	"github.com/transparency-dev/armored-witness-wdog/internal/reg/regtest"
)

const (
	pathA = "/soc/aips-bus@02000000/wdog@020b8000"
	pathB = "/soc/aips-bus@02000000/wdog@020bc000"
	pathC = "/soc/aips-bus@02000000/wdog@020c0000"
)

var (
	disabled   = dttest.Prop{Name: "status", Value: dttest.String("disabled")}
	secureOK   = dttest.Prop{Name: "secure-status", Value: dttest.String("okay")}
	secureOff  = dttest.Prop{Name: "secure-status", Value: dttest.String("disabled")}
	extReset   = dttest.Prop{Name: ExtResetProperty}
	candidates = []string{pathA, pathB, pathC}
)

func wdogNode(base uint32, props ...dttest.Prop) *dttest.Node {
	return &dttest.Node{
		Props: append([]dttest.Prop{{Name: "reg", Value: dttest.Cells(base, 0x4000)}}, props...),
	}
}

func loadTree(t *testing.T, nodes map[string]*dttest.Node) *dt.Tree {
	t.Helper()

	tree, err := dt.Load(dttest.Blob(dttest.Tree(nodes)))

	if err != nil {
		t.Fatalf("dt.Load: %v", err)
	}

	return tree
}

// fakeMapper identity maps added regions and records all requests.
type fakeMapper struct {
	mapped map[uint64]mmu.MemType
	addErr error
	// translation keeps failing after a successful AddMapping
	noVA bool

	calls []string
}

func newFakeMapper() *fakeMapper {
	return &fakeMapper{
		mapped: make(map[uint64]mmu.MemType),
	}
}

func (m *fakeMapper) PhysToVirt(pa uint64, t mmu.MemType) uintptr {
	m.calls = append(m.calls, fmt.Sprintf("PhysToVirt %#x %s", pa, t))

	if mt, ok := m.mapped[pa]; !ok || mt != t || m.noVA {
		return 0
	}

	return uintptr(pa)
}

func (m *fakeMapper) AddMapping(t mmu.MemType, pa uint64, size int) error {
	m.calls = append(m.calls, fmt.Sprintf("AddMapping %s %#x %#x", t, pa, size))

	if m.addErr != nil {
		return m.addErr
	}

	m.mapped[pa] = t

	return nil
}

func TestResolveSelection(t *testing.T) {
	for _, test := range []struct {
		name        string
		nodes       map[string]*dttest.Node
		wantPath    string
		wantMemType mmu.MemType
		wantErr     error
	}{
		{
			name: "absent, non-secure only, secure",
			nodes: map[string]*dttest.Node{
				pathB: wdogNode(0x020bc000, secureOff),
				pathC: wdogNode(0x020c0000),
			},
			wantPath:    pathC,
			wantMemType: mmu.IONonSecure,
		}, {
			name: "first secure wins",
			nodes: map[string]*dttest.Node{
				pathA: wdogNode(0x020b8000),
				pathB: wdogNode(0x020bc000),
				pathC: wdogNode(0x020c0000),
			},
			wantPath:    pathA,
			wantMemType: mmu.IONonSecure,
		}, {
			name: "secure only",
			nodes: map[string]*dttest.Node{
				pathA: wdogNode(0x020b8000, disabled),
				pathB: wdogNode(0x020bc000, disabled, secureOK),
			},
			wantPath:    pathB,
			wantMemType: mmu.IOSecure,
		}, {
			name: "all disabled",
			nodes: map[string]*dttest.Node{
				pathA: wdogNode(0x020b8000, disabled),
				pathB: wdogNode(0x020bc000, secureOff),
				pathC: wdogNode(0x020c0000, disabled, secureOff),
			},
			wantErr: ErrNotFound,
		}, {
			name:    "no candidates",
			nodes:   map[string]*dttest.Node{},
			wantErr: ErrNotFound,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			m := newFakeMapper()
			p, err := Resolve(&Config{
				Tree:       loadTree(t, test.nodes),
				Candidates: candidates,
				Mapper:     m,
				Bus:        regtest.New(),
			})

			if !errors.Is(err, test.wantErr) {
				t.Fatalf("Resolve: %v, want %v", err, test.wantErr)
			}

			if err != nil {
				if len(m.calls) != 0 {
					t.Errorf("unexpected mapping requests: %v", m.calls)
				}
				return
			}

			if p.Path != test.wantPath {
				t.Errorf("Path = %s, want %s", p.Path, test.wantPath)
			}

			if p.MemType != test.wantMemType {
				t.Errorf("MemType = %s, want %s", p.MemType, test.wantMemType)
			}

			if p.Window == nil || p.Window.Base() != uintptr(p.Base) {
				t.Errorf("Window not mapped at %#x", p.Base)
			}
		})
	}
}

func TestResolveNoTree(t *testing.T) {
	m := newFakeMapper()

	if _, err := Resolve(&Config{Mapper: m}); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("Resolve: %v, want %v", err, ErrNotSupported)
	}
}

func TestResolveDefaultCandidates(t *testing.T) {
	tree := loadTree(t, map[string]*dttest.Node{
		Candidates[len(Candidates)-1]: wdogNode(0x020c0000),
	})

	p, err := Resolve(&Config{
		Tree:   tree,
		Mapper: newFakeMapper(),
		Bus:    regtest.New(),
	})

	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if want := Candidates[len(Candidates)-1]; p.Path != want {
		t.Errorf("Path = %s, want %s", p.Path, want)
	}
}

func TestResolveExtReset(t *testing.T) {
	for _, want := range []bool{false, true} {
		t.Run(fmt.Sprintf("ext_reset=%v", want), func(t *testing.T) {
			n := wdogNode(0x020bc000)

			if want {
				n.Props = append(n.Props, extReset)
			}

			p, err := Resolve(&Config{
				Tree:       loadTree(t, map[string]*dttest.Node{pathB: n}),
				Candidates: candidates,
				Mapper:     newFakeMapper(),
				Bus:        regtest.New(),
			})

			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}

			if p.ExtReset != want {
				t.Errorf("ExtReset = %v, want %v", p.ExtReset, want)
			}
		})
	}
}

func TestResolveGeometry(t *testing.T) {
	for _, test := range []struct {
		name string
		reg  []byte
	}{
		{name: "missing reg"},
		{name: "missing size", reg: dttest.Cells(0x020bc000)},
		{name: "empty window", reg: dttest.Cells(0x020bc000, 0)},
		{name: "window too small", reg: dttest.Cells(0x020bc000, 2)},
	} {
		t.Run(test.name, func(t *testing.T) {
			n := &dttest.Node{}

			if test.reg != nil {
				n.Props = []dttest.Prop{{Name: "reg", Value: test.reg}}
			}

			m := newFakeMapper()
			_, err := Resolve(&Config{
				Tree:       loadTree(t, map[string]*dttest.Node{pathB: n}),
				Candidates: candidates,
				Mapper:     m,
				Bus:        regtest.New(),
			})

			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("Resolve: %v, want %v", err, ErrNotFound)
			}

			if len(m.calls) != 0 {
				t.Errorf("unexpected mapping requests: %v", m.calls)
			}
		})
	}
}

func TestResolveMapping(t *testing.T) {
	for _, test := range []struct {
		name      string
		premapped bool
		addErr    error
		noVA      bool
		wantErr   error
		wantCalls []string
	}{
		{
			name: "new mapping",
			wantCalls: []string{
				"PhysToVirt 0x20bc000 IO_NSEC",
				"AddMapping IO_NSEC 0x20bc000 0x4000",
				"PhysToVirt 0x20bc000 IO_NSEC",
			},
		}, {
			name:      "existing mapping",
			premapped: true,
			wantCalls: []string{
				"PhysToVirt 0x20bc000 IO_NSEC",
				"PhysToVirt 0x20bc000 IO_NSEC",
			},
		}, {
			name:    "mapping failure",
			addErr:  errors.New("out of translation tables"),
			wantErr: ErrGeneric,
			wantCalls: []string{
				"PhysToVirt 0x20bc000 IO_NSEC",
				"AddMapping IO_NSEC 0x20bc000 0x4000",
			},
		}, {
			name:    "translation failure",
			noVA:    true,
			wantErr: ErrGeneric,
			wantCalls: []string{
				"PhysToVirt 0x20bc000 IO_NSEC",
				"AddMapping IO_NSEC 0x20bc000 0x4000",
				"PhysToVirt 0x20bc000 IO_NSEC",
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			m := newFakeMapper()
			m.addErr = test.addErr
			m.noVA = test.noVA

			if test.premapped {
				m.mapped[0x020bc000] = mmu.IONonSecure
			}

			_, err := Resolve(&Config{
				Tree:       loadTree(t, map[string]*dttest.Node{pathB: wdogNode(0x020bc000)}),
				Candidates: candidates,
				Mapper:     m,
				Bus:        regtest.New(),
			})

			if !errors.Is(err, test.wantErr) {
				t.Fatalf("Resolve: %v, want %v", err, test.wantErr)
			}

			if diff := cmp.Diff(test.wantCalls, m.calls); diff != "" {
				t.Errorf("unexpected mapping requests (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveTable(t *testing.T) {
	var configured int

	table := &mmu.Table{
		Configure: func(mmu.MemType, uint64, uint64) error {
			configured++
			return nil
		},
	}

	tree := loadTree(t, map[string]*dttest.Node{
		pathB: wdogNode(0x020bc000, disabled, secureOK),
	})

	p, err := Resolve(&Config{
		Tree:       tree,
		Candidates: candidates,
		Mapper:     table,
		Bus:        regtest.New(),
	})

	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if configured != 1 {
		t.Errorf("Configure called %d times, want 1", configured)
	}

	if va := table.PhysToVirt(p.Base, mmu.IOSecure); va != p.Window.Base() {
		t.Errorf("PhysToVirt() = %#x, want %#x", va, p.Window.Base())
	}
}
