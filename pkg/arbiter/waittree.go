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

import (
	"github.com/google/btree"

	"github.com/p0ken/yuzu/pkg/sched"
)

// waiter is a WaitTree node: a thread enrolled at a position key.
type waiter struct {
	thread *sched.Thread
	key    Key
}

// WaitTree is the ordered multiset of spec.md §4.2, keyed by (address,
// tie-break). It is backed by github.com/google/btree's generic BTreeG,
// which gives lower-bound lookup and ordered iteration without the
// intrusive node handles the teacher's source relies on (spec.md §9 notes
// a sorted-container-plus-handle is an acceptable language-neutral
// equivalent).
//
// Every method requires the owning Arbiter's scheduler lock to be held by
// the caller, per spec.md §3's "no entry is in the tree without the
// scheduler lock being held by the mutator".
type WaitTree struct {
	tree *btree.BTreeG[*waiter]
}

func newWaitTree(degree int) *WaitTree {
	return &WaitTree{
		tree: btree.NewG(degree, func(a, b *waiter) bool {
			return a.key.less(b.key)
		}),
	}
}

// insert adds w to the tree, positioned by w.key.
func (t *WaitTree) insert(w *waiter) {
	t.tree.ReplaceOrInsert(w)
}

// erase removes w from the tree.
func (t *WaitTree) erase(w *waiter) {
	t.tree.Delete(w)
}

// lowerBound returns the first node whose key is >= (addr, minTieBreak),
// per spec.md §4.2's lower_bound_for. The caller must check the returned
// waiter's key.Addr against addr to confirm a hit, since the first node
// at or past addr may belong to a different, higher address.
func (t *WaitTree) lowerBound(addr uintptr) *waiter {
	pivot := &waiter{key: Key{Addr: addr, Break: minTieBreak}}
	var found *waiter
	t.tree.AscendGreaterOrEqual(pivot, func(item *waiter) bool {
		found = item
		return false
	})
	return found
}

// countAdditional counts waiters strictly after first that still match
// addr, stopping as soon as the running count reaches limit (limit <= 0
// means uncounted/no early stop). Used by
// SignalAndModifyByWaitingCountIfEqual's waiting-count formula.
func (t *WaitTree) countAdditional(first *waiter, addr uintptr, limit int) int {
	count := 0
	t.tree.AscendGreaterOrEqual(first, func(item *waiter) bool {
		if item == first {
			return true
		}
		if item.key.Addr != addr {
			return false
		}
		count++
		if limit > 0 && count >= limit {
			return false
		}
		return true
	})
	return count
}

// countAt returns the number of waiters currently enrolled at addr,
// without removing any of them.
func (t *WaitTree) countAt(addr uintptr) int {
	pivot := &waiter{key: Key{Addr: addr, Break: minTieBreak}}
	count := 0
	t.tree.AscendGreaterOrEqual(pivot, func(item *waiter) bool {
		if item.key.Addr != addr {
			return false
		}
		count++
		return true
	})
	return count
}

// drainMatching removes and returns up to max waiters at addr, in tree
// (priority-then-FIFO) order. max <= 0 means "all". This implements
// spec.md §4.3's wake-a-batch loop's enumeration step; erase is deferred
// to a second pass since btree iteration is not delete-safe.
func (t *WaitTree) drainMatching(addr uintptr, max int) []*waiter {
	pivot := &waiter{key: Key{Addr: addr, Break: minTieBreak}}
	var collected []*waiter
	t.tree.AscendGreaterOrEqual(pivot, func(item *waiter) bool {
		if item.key.Addr != addr {
			return false
		}
		collected = append(collected, item)
		return max <= 0 || len(collected) < max
	})
	for _, w := range collected {
		t.tree.Delete(w)
	}
	return collected
}
