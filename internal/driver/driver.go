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

// Package driver implements the Secure Monitor boot time driver
// initialization sequence.
//
// Drivers are registered before boot and initialized exactly once, in
// registration order, by Run. An initialization failure is logged and
// recorded, it does not prevent the remaining drivers from initializing.
package driver

import (
	"fmt"
	"sync"

	"k8s.io/klog"
)

// InitFunc initializes a driver.
type InitFunc func() error

type entry struct {
	name string
	init InitFunc

	done bool
	err  error
}

// Registry represents an ordered set of drivers.
type Registry struct {
	sync.Mutex

	once    sync.Once
	started bool
	drivers []*entry
}

// Register adds a driver to the boot sequence. It panics if the name is
// already registered or if the sequence already ran.
func (r *Registry) Register(name string, fn InitFunc) {
	r.Lock()
	defer r.Unlock()

	if r.started {
		panic(fmt.Sprintf("driver: %s registered after boot", name))
	}

	if fn == nil {
		panic(fmt.Sprintf("driver: %s has no init function", name))
	}

	for _, d := range r.drivers {
		if d.name == name {
			panic(fmt.Sprintf("driver: %s registered twice", name))
		}
	}

	r.drivers = append(r.drivers, &entry{
		name: name,
		init: fn,
	})
}

// Run initializes all registered drivers, subsequent calls have no effect.
// It returns the number of failed initializations.
func (r *Registry) Run() (failed int) {
	r.once.Do(func() {
		r.Lock()
		r.started = true
		drivers := r.drivers
		r.Unlock()

		for _, d := range drivers {
			err := d.init()

			r.Lock()
			d.done = true
			d.err = err
			r.Unlock()

			if err != nil {
				klog.Errorf("driver %s initialization failed, %v", d.name, err)
				failed++
				continue
			}

			klog.V(1).Infof("driver %s initialized", d.name)
		}
	})

	return
}

// Result returns the initialization outcome of the named driver, done is false
// if the driver is unknown or has not been initialized yet.
func (r *Registry) Result(name string) (done bool, err error) {
	r.Lock()
	defer r.Unlock()

	for _, d := range r.drivers {
		if d.name == name {
			return d.done, d.err
		}
	}

	return false, nil
}
