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

//go:build !mx7
// +build !mx7

package wdog

// Candidates lists the i.MX6 watchdog instances in selection order.
var Candidates = []string{
	"/soc/aips-bus@02000000/wdog@020bc000",
	"/soc/aips-bus@02000000/wdog@020c0000",
}
