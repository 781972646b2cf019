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

// Package arbiter implements the address arbiter: a futex-style
// primitive that lets threads block on a 32-bit user memory cell and be
// woken when another thread signals that cell. See spec.md for the full
// design; this package implements spec.md §4.3's five public operations
// over a WaitTree (this file's sibling waittree.go) and a WaitSession
// (waitsession.go).
package arbiter

import (
	"sync/atomic"
	"time"

	"github.com/p0ken/yuzu/internal/arblog"
	"github.com/p0ken/yuzu/pkg/config"
	"github.com/p0ken/yuzu/pkg/memory"
	"github.com/p0ken/yuzu/pkg/sched"
	"github.com/p0ken/yuzu/pkg/timer"
)

var log = arblog.For("arbiter")

// Arbiter is a per-process address arbiter: one WaitTree plus the
// collaborators (scheduler, timer manager, user memory) needed to run
// spec.md §4.3's five operations. Create one per process; an Arbiter must
// have no waiters left when its owning process is torn down.
type Arbiter struct {
	scheduler *sched.Scheduler
	timers    *timer.Manager
	mem       *memory.UserAtomicOps
	tree      *WaitTree
	nextSeq   atomic.Uint64
}

// New returns an Arbiter backed by the given scheduler, timer manager, and
// user-memory accessor.
func New(scheduler *sched.Scheduler, timers *timer.Manager, mem *memory.UserAtomicOps, tunables config.Tunables) *Arbiter {
	return &Arbiter{
		scheduler: scheduler,
		timers:    timers,
		mem:       mem,
		tree:      newWaitTree(tunables.WaitTreeDegree),
	}
}

// WaitersAt returns the number of threads currently enrolled at addr.
// Intended for tests and for a user-space fast path that wants to know
// whether a wake is even worth attempting.
func (a *Arbiter) WaitersAt(addr uintptr) int {
	a.scheduler.Lock()
	defer a.scheduler.Unlock()
	return a.tree.countAt(addr)
}

// wakeBatchLocked implements spec.md §4.3's "wake a batch" loop. Must be
// called with the scheduler lock held. count <= 0 means wake every
// waiter at addr.
func (a *Arbiter) wakeBatchLocked(addr uintptr, count int) int {
	max := 0
	if count > 0 {
		max = count
	}
	woken := a.tree.drainMatching(addr, max)
	for _, w := range woken {
		w.thread.SetWaitResult(nil)
		if !w.thread.IsWaitingForAddressArbiter() {
			panic("address arbiter: waiter present in WaitTree without an arbiter binding")
		}
		w.thread.Wakeup()
		w.thread.ClearAddressArbiter()
	}
	log.WithField("addr", addr).WithField("woken", len(woken)).Debug("wake batch")
	return len(woken)
}

// Signal implements spec.md §4.3.1: wake up to count waiters at addr.
// count <= 0 wakes all of them. Never fails.
func (a *Arbiter) Signal(addr uintptr, count int) error {
	a.scheduler.Lock()
	defer a.scheduler.Unlock()
	a.wakeBatchLocked(addr, count)
	return nil
}

// SignalAndIncrementIfEqual implements spec.md §4.3.2: if the cell at addr
// equals expected, store expected+1, then wake up to count waiters.
func (a *Arbiter) SignalAndIncrementIfEqual(core memory.CoreID, addr uintptr, expected uint32, count int) error {
	a.scheduler.Lock()
	defer a.scheduler.Unlock()

	userValue, ok := a.mem.UpdateIfEqual(core, addr, expected, expected+1)
	if !ok {
		return ErrInvalidCurrentMemory
	}
	if userValue != expected {
		return ErrInvalidState
	}
	a.wakeBatchLocked(addr, count)
	return nil
}

// SignalAndModifyByWaitingCountIfEqual implements spec.md §4.3.3: the
// value stored at addr depends on how many waiters currently queue on
// addr relative to count, per the formula in spec.md §4.3.3. It then
// wakes up to count waiters regardless of whether the store changed
// anything.
func (a *Arbiter) SignalAndModifyByWaitingCountIfEqual(core memory.CoreID, addr uintptr, expected uint32, count int) error {
	a.scheduler.Lock()
	defer a.scheduler.Unlock()

	first := a.tree.lowerBound(addr)
	hasWaiter := first != nil && first.key.Addr == addr

	var newValue uint32
	switch {
	case count <= 0:
		if hasWaiter {
			newValue = expected - 2
		} else {
			newValue = expected + 1
		}
	case !hasWaiter:
		newValue = expected + 1
	default:
		extras := a.tree.countAdditional(first, addr, count)
		if extras < count {
			newValue = expected - 1
		} else {
			newValue = expected
		}
	}

	var userValue uint32
	var ok bool
	if newValue != expected {
		userValue, ok = a.mem.UpdateIfEqual(core, addr, expected, newValue)
	} else {
		userValue, ok = a.mem.Read(addr)
	}
	if !ok {
		return ErrInvalidCurrentMemory
	}
	if userValue != expected {
		return ErrInvalidState
	}

	a.wakeBatchLocked(addr, count)
	return nil
}

// WaitIfLessThan implements spec.md §4.3.4: block thread until a signaler
// wakes it or timeout elapses, provided the cell at addr is currently
// less than bound. If decrement is true, the cell is atomically
// decremented as part of the check (DecrementIfLessThan); otherwise the
// cell is only read. timeout <= 0 is treated as spec.md §5 describes:
// exactly 0 is a poll (never blocks), any negative value waits forever.
func (a *Arbiter) WaitIfLessThan(thread *sched.Thread, addr uintptr, bound uint32, decrement bool, timeout time.Duration) error {
	perform := func() (uint32, bool) {
		if decrement {
			return a.mem.DecrementIfLessThan(thread.Core(), addr, bound)
		}
		return a.mem.Read(addr)
	}
	// Signed comparison, matching memory.DecrementIfLessThan and the
	// original kernel's s32 cast — see memory.go's DecrementIfLessThan
	// doc comment.
	matches := func(v uint32) bool { return int32(v) < int32(bound) }
	return a.waitIf(thread, addr, timeout, perform, matches)
}

// WaitIfEqual implements spec.md §4.3.5: identical to WaitIfLessThan
// except the precondition is that the cell at addr equals expected, and
// the cell is never modified by the check itself.
func (a *Arbiter) WaitIfEqual(thread *sched.Thread, addr uintptr, expected uint32, timeout time.Duration) error {
	perform := func() (uint32, bool) { return a.mem.Read(addr) }
	matches := func(v uint32) bool { return v == expected }
	return a.waitIf(thread, addr, timeout, perform, matches)
}

// waitIf implements the two-phase protocol shared by WaitIfLessThan and
// WaitIfEqual (spec.md §4.3.4/§4.3.5): check a precondition under the
// scheduler lock, enroll in the WaitTree and park if it holds, then on
// resume determine whether a signaler or the timeout won the race.
func (a *Arbiter) waitIf(thread *sched.Thread, addr uintptr, timeout time.Duration, perform func() (uint32, bool), matches func(uint32) bool) error {
	a.scheduler.Lock()
	session := newWaitSession(a.scheduler, a.timers, thread)

	if thread.IsTerminationRequested() {
		session.Cancel()
		return ErrTerminationRequested
	}

	// Pre-set the default outcome, per spec.md §4.3.4 step 2: if nothing
	// else runs before the timer fires, the wait resolves to TimedOut.
	thread.SetSyncedObject(nil, ErrTimedOut)

	userValue, ok := perform()
	if !ok {
		session.Cancel()
		return ErrInvalidCurrentMemory
	}
	if !matches(userValue) {
		session.Cancel()
		return ErrInvalidState
	}
	if timeout == 0 {
		session.Cancel()
		return ErrTimedOut
	}

	w := &waiter{
		thread: thread,
		key:    Key{Addr: addr, Break: tieBreak{priority: thread.Priority(), seq: a.nextSeq.Add(1)}},
	}
	thread.SetAddressArbiter(a, addr)
	a.tree.insert(w)
	thread.SetState(sched.Waiting)
	thread.SetWaitReason(sched.WaitReasonArbitration)

	session.Park(timeout)

	// Phase B: the thread is Runnable again and holds the scheduler lock.
	// If it's still bound to this arbiter, no signal path removed it —
	// the timer won the race, so this thread self-erases, guarded by the
	// same flag a signaler would have cleared.
	if thread.IsWaitingForAddressArbiter() {
		a.tree.erase(w)
		thread.ClearAddressArbiter()
	}
	thread.SetState(sched.Runnable)
	result := thread.GetWaitResult()
	a.scheduler.Unlock()
	return result
}
