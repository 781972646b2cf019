// Copyright 2026 The yuzu Authors.
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

package arbiter

import "math"

// tieBreak orders waiters on the same address: lower priority value sorts
// first, ties broken by insertion sequence, giving stable FIFO order among
// equal priorities per spec.md §3.
type tieBreak struct {
	priority int32
	seq      uint64
}

func (a tieBreak) less(b tieBreak) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

// minTieBreak sorts before every real tie-break for a given address, used
// to build a lower-bound pivot.
var minTieBreak = tieBreak{priority: math.MinInt32, seq: 0}

// Key is a WaitTree node's position: the address a thread waits on, paired
// with its tie-break. spec.md §3 requires a thread's stored
// address_arbiter_key to equal its position key in the tree.
type Key struct {
	Addr  uintptr
	Break tieBreak
}

func (k Key) less(o Key) bool {
	if k.Addr != o.Addr {
		return k.Addr < o.Addr
	}
	return k.Break.less(o.Break)
}
