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

package driver

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRun(t *testing.T) {
	var calls []string
	errProbe := errors.New("probe failed")

	r := &Registry{}

	r.Register("first", func() error {
		calls = append(calls, "first")
		return nil
	})

	r.Register("second", func() error {
		calls = append(calls, "second")
		return errProbe
	})

	r.Register("third", func() error {
		calls = append(calls, "third")
		return nil
	})

	if done, _ := r.Result("first"); done {
		t.Error("Result(first) reported before Run")
	}

	if failed := r.Run(); failed != 1 {
		t.Errorf("Run() = %d failures, want 1", failed)
	}

	if failed := r.Run(); failed != 0 {
		t.Errorf("second Run() = %d failures, want 0", failed)
	}

	if diff := cmp.Diff([]string{"first", "second", "third"}, calls); diff != "" {
		t.Errorf("unexpected init sequence (-want +got):\n%s", diff)
	}

	for _, test := range []struct {
		name    string
		wantErr error
		wantOK  bool
	}{
		{name: "first", wantOK: true},
		{name: "second", wantErr: errProbe, wantOK: true},
		{name: "third", wantOK: true},
		{name: "unknown"},
	} {
		ok, err := r.Result(test.name)

		if ok != test.wantOK || !errors.Is(err, test.wantErr) {
			t.Errorf("Result(%s) = %v, %v, want %v, %v", test.name, err, ok, test.wantErr, test.wantOK)
		}
	}
}

func TestRegisterPanics(t *testing.T) {
	nop := func() error { return nil }

	for _, test := range []struct {
		name string
		fn   func(r *Registry)
	}{
		{
			name: "duplicate",
			fn: func(r *Registry) {
				r.Register("wdog", nop)
				r.Register("wdog", nop)
			},
		}, {
			name: "nil init",
			fn: func(r *Registry) {
				r.Register("wdog", nil)
			},
		}, {
			name: "after run",
			fn: func(r *Registry) {
				r.Run()
				r.Register("wdog", nop)
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()

			test.fn(&Registry{})
		})
	}
}
