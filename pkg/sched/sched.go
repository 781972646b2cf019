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

// Package sched provides the scheduler-lock, thread-state, and wake
// primitives the arbiter specification treats as an external contract:
// a single global lock serializing every thread-state transition, plus
// per-thread state needed to park a goroutine and resume it either from a
// signaler or from a timeout.
package sched

import (
	"sync"
	"sync/atomic"

	"github.com/p0ken/yuzu/internal/arblog"
	"github.com/p0ken/yuzu/pkg/memory"
)

var log = arblog.For("sched")

// State is a thread's scheduling state.
type State int

const (
	// Running is a thread currently executing.
	Running State = iota
	// Runnable is a thread eligible to run but not currently scheduled.
	Runnable
	// Waiting is a thread parked pending an external wake or timeout.
	Waiting
)

// WaitReason records why a Waiting thread is parked. The arbiter only
// ever sets WaitReasonArbitration; other reasons are left for a fuller
// scheduler to define.
type WaitReason int

const (
	// WaitReasonNone is the reason for a thread that isn't waiting.
	WaitReasonNone WaitReason = iota
	// WaitReasonArbitration is set while a thread is enrolled in an
	// Arbiter's WaitTree.
	WaitReasonArbitration
)

// arbiterBinding records which WaitTree (opaque to this package) and
// address a thread is enrolled against, per spec.md §3's "a thread's
// stored address_arbiter_key equals its position key in the tree".
type arbiterBinding struct {
	tree interface{}
	addr uintptr
}

// Thread is the external Thread contract from spec.md §3: a scheduler
// entity with the accessors the arbiter needs to enroll, wake, and read
// the outcome of a wait, plus the goroutine-park/resume hand-off the
// arbiter's WaitSession drives.
//
// Every method below must be called with the owning Scheduler's lock held,
// matching the contract of the teacher's TaskSet-protected Task fields.
type Thread struct {
	id       uint64
	core     memory.CoreID
	priority int32

	state      State
	waitReason WaitReason
	binding    *arbiterBinding

	syncedObject interface{}
	waitResult   error

	terminated atomic.Bool

	// wake is sent to by Wakeup and received by the park/resume helper in
	// pkg/arbiter.WaitSession. Buffered 1, mirroring the teacher's
	// Waiter.C.
	wake chan struct{}
}

// NewThread returns a new Thread in state Running. priority orders this
// thread against others waiting on the same address (lower sorts first);
// ties among equal priorities are broken by the Arbiter's own enrollment
// counter (spec.md §3's "tie_break"), not by anything on Thread itself.
func NewThread(id uint64, core memory.CoreID, priority int32) *Thread {
	return &Thread{
		id:       id,
		core:     core,
		priority: priority,
		state:    Running,
		wake:     make(chan struct{}, 1),
	}
}

// ID returns the thread's identifier.
func (t *Thread) ID() uint64 { return t.id }

// Core returns the CPU core this thread is currently executing on.
func (t *Thread) Core() memory.CoreID { return t.core }

// Priority returns the thread's scheduling priority (lower sorts first in
// a WaitTree, matching spec.md §3's priority-then-FIFO ordering).
func (t *Thread) Priority() int32 { return t.priority }

// State returns the thread's current scheduling state.
func (t *Thread) State() State { return t.state }

// SetState transitions the thread's scheduling state.
func (t *Thread) SetState(s State) { t.state = s }

// SetWaitReason records why the thread is Waiting.
func (t *Thread) SetWaitReason(r WaitReason) { t.waitReason = r }

// SetSyncedObject records the object a waiter is synchronized on and the
// default result that will be observed if nothing else overwrites it —
// spec.md §4.3.4 step 2 pre-sets this to TimedOut before a wait blocks.
func (t *Thread) SetSyncedObject(obj interface{}, defaultResult error) {
	t.syncedObject = obj
	t.waitResult = defaultResult
}

// SetWaitResult overwrites the result a waiter will observe on wake,
// called by a signaler right before Wakeup (spec.md §4.3's wake-a-batch
// loop sets it to Success).
func (t *Thread) SetWaitResult(result error) { t.waitResult = result }

// GetWaitResult returns the thread's most recently recorded wait result.
func (t *Thread) GetWaitResult() error { return t.waitResult }

// SetAddressArbiter records that the thread is enrolled in tree at addr.
// tree is opaque to this package; the arbiter passes itself.
func (t *Thread) SetAddressArbiter(tree interface{}, addr uintptr) {
	t.binding = &arbiterBinding{tree: tree, addr: addr}
}

// ClearAddressArbiter removes the thread's arbiter binding.
func (t *Thread) ClearAddressArbiter() {
	t.binding = nil
}

// IsWaitingForAddressArbiter reports whether the thread is currently
// bound to a WaitTree, per spec.md §3's flag-consistency invariant.
func (t *Thread) IsWaitingForAddressArbiter() bool {
	return t.binding != nil
}

// ArbiterBinding returns the WaitTree and address the thread is currently
// enrolled against, if any.
func (t *Thread) ArbiterBinding() (tree interface{}, addr uintptr, ok bool) {
	if t.binding == nil {
		return nil, 0, false
	}
	return t.binding.tree, t.binding.addr, true
}

// RequestTermination marks the thread for teardown; safe to call without
// the scheduler lock, mirroring a real kernel's ability to signal
// termination from another thread.
func (t *Thread) RequestTermination() { t.terminated.Store(true) }

// IsTerminationRequested reports whether the thread is being torn down.
func (t *Thread) IsTerminationRequested() bool { return t.terminated.Load() }

// Wakeup delivers a wake to the thread's park/resume channel and marks it
// Runnable. Non-blocking: a thread that is not currently parked simply
// has a wake buffered for its next park.
func (t *Thread) Wakeup() {
	t.state = Runnable
	select {
	case t.wake <- struct{}{}:
	default:
	}
	log.WithField("thread", t.ID()).Debug("woken")
}

// armWake drains any stale wake before a new park, matching the teacher's
// WaitPrepare draining w.C before enqueueing.
func (t *Thread) armWake() {
	select {
	case <-t.wake:
	default:
	}
}

// waitChan exposes the wake channel to pkg/arbiter's WaitSession, which
// blocks receiving from it; a timeout arrives on the same channel through
// Scheduler.WakeLocked.
func (t *Thread) waitChan() <-chan struct{} { return t.wake }

// Scheduler is the single global lock serializing every thread-state
// transition and WaitTree mutation, grounded on the teacher's
// TaskSet.mu ("approximately equivalent to Linux's tasklist_lock").
type Scheduler struct {
	mu sync.Mutex
}

// NewScheduler returns an unlocked Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Lock acquires the scheduler lock.
func (s *Scheduler) Lock() { s.mu.Lock() }

// Unlock releases the scheduler lock.
func (s *Scheduler) Unlock() { s.mu.Unlock() }

// ArmAndPark drains any stale wake on t, then exposes its wake channel for
// a caller (pkg/arbiter.WaitSession) to block on until a signaler or a
// timeout wakes t. Must be
// called with the scheduler lock held; the lock must be released by the
// caller before receiving from the returned channel.
func (s *Scheduler) ArmAndPark(t *Thread) <-chan struct{} {
	t.armWake()
	return t.waitChan()
}

// WakeLocked acquires the scheduler lock, wakes t, then releases it. Every
// other caller of Wakeup already holds the scheduler lock as part of a
// larger locked critical section (e.g. Arbiter.wakeBatchLocked); a timer
// callback has no such section of its own, so this is the lock-acquiring
// shim a timeout wake routes through instead of calling Wakeup bare.
func (s *Scheduler) WakeLocked(t *Thread) {
	s.Lock()
	t.Wakeup()
	s.Unlock()
}
