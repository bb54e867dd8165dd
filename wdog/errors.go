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

// Code is a watchdog driver error, comparable with errors.Is.
type Code string

func (c Code) Error() string { return string(c) }

// Driver initialization errors
const (
	// ErrNotSupported is returned when no device tree is available.
	ErrNotSupported Code = "not supported"
	// ErrNotFound is returned when no usable watchdog is found, or when its
	// register window is malformed.
	ErrNotFound Code = "item not found"
	// ErrGeneric is returned when the register window cannot be mapped.
	ErrGeneric Code = "generic error"
)
