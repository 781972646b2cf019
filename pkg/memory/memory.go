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

// Package memory implements the UserAtomicOps contract from the arbiter
// specification: reads and conditional stores on a guest virtual address,
// performed through a per-core exclusive-access monitor so the caller's
// view of the cell and the value a store would commit never diverge.
//
// Everything in this package assumes the caller already verified that addr
// is user-accessible; a fault is reported by returning ok=false, never by
// panicking.
package memory

import (
	"time"

	"github.com/cenkalti/backoff"

	"github.com/p0ken/yuzu/internal/arblog"
	"github.com/p0ken/yuzu/pkg/config"
)

var log = arblog.For("memory")

// CoreID identifies the CPU core a thread is currently executing on, and
// therefore which exclusive-monitor reservation slot it owns.
type CoreID int

// Monitor abstracts the per-core exclusive-access monitor. Implementations
// must guarantee that ExclusiveWrite32 commits iff no write — by any core —
// landed on addr since the matching ExclusiveRead32, and that a reservation
// never outlives the next ExclusiveWrite32 or ClearExclusive on that core.
type Monitor interface {
	// ExclusiveRead32 loads the 32-bit value at addr and arms core's
	// reservation on addr. ok is false if addr is not readable.
	ExclusiveRead32(core CoreID, addr uintptr) (value uint32, ok bool)

	// ExclusiveWrite32 commits value to addr iff core's reservation is
	// still valid for addr, then clears the reservation regardless of
	// outcome. ok is false both on a lost reservation and on a fault.
	ExclusiveWrite32(core CoreID, addr uintptr, value uint32) (ok bool)

	// ClearExclusive drops core's reservation without performing a store.
	ClearExclusive(core CoreID)
}

// Space abstracts a plain (non-exclusive) 32-bit load from guest memory.
type Space interface {
	// ReadU32 loads the 32-bit value at addr. ok is false if addr is not
	// readable.
	ReadU32(addr uintptr) (value uint32, ok bool)
}

// UserAtomicOps performs the three operations spec.md §4.1 requires:
// Read, DecrementIfLessThan, and UpdateIfEqual.
type UserAtomicOps struct {
	monitor  Monitor
	space    Space
	tunables config.Tunables
}

// New returns a UserAtomicOps backed by monitor and space, using tunables
// to bound the exclusive-monitor retry loop.
func New(monitor Monitor, space Space, tunables config.Tunables) *UserAtomicOps {
	return &UserAtomicOps{monitor: monitor, space: space, tunables: tunables}
}

// Read performs one plain 32-bit load, per spec.md §4.1's Read(addr).
func (u *UserAtomicOps) Read(addr uintptr) (value uint32, ok bool) {
	return u.space.ReadU32(addr)
}

// DecrementIfLessThan implements spec.md §4.1's DecrementIfLessThan:
// if the cell is less than bound, decrement it; otherwise leave it
// untouched. Returns the value observed before any modification.
//
// The comparison is signed, matching the original kernel's
// k_address_arbiter.cpp (which reads the cell as s32 before comparing):
// a cell with the high bit set is a large unsigned value but a negative
// signed one, and those compare differently against bound.
func (u *UserAtomicOps) DecrementIfLessThan(core CoreID, addr uintptr, bound uint32) (before uint32, ok bool) {
	return u.retryingCAS(core, addr, func(v uint32) (newValue uint32, write bool) {
		if int32(v) < int32(bound) {
			return v - 1, true
		}
		return v, false
	})
}

// UpdateIfEqual implements spec.md §4.1's UpdateIfEqual: if the cell equals
// expected, store newValue; otherwise leave it untouched. Returns the value
// observed before any modification.
func (u *UserAtomicOps) UpdateIfEqual(core CoreID, addr uintptr, expected, newValue uint32) (before uint32, ok bool) {
	return u.retryingCAS(core, addr, func(v uint32) (uint32, bool) {
		if v == expected {
			return newValue, true
		}
		return v, false
	})
}

// retryingCAS implements the read/decide/commit-or-restart loop common to
// DecrementIfLessThan and UpdateIfEqual. decide inspects the value most
// recently observed under the exclusive monitor and returns the value to
// store and whether a store should be attempted at all. A lost reservation
// restarts from a fresh exclusive read, per spec.md §4.1's "a failed store
// must restart the read, not reuse v".
func (u *UserAtomicOps) retryingCAS(core CoreID, addr uintptr, decide func(uint32) (uint32, bool)) (before uint32, ok bool) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = u.tunables.CASBackoffInitial
	b.MaxInterval = u.tunables.CASBackoffMax
	b.Multiplier = 2
	// This loop never gives up (a failed store always restarts from a
	// fresh read, per spec.md §4.1), so the backoff must never stop
	// either: left at its default, NextBackOff returns backoff.Stop after
	// 15 minutes of elapsed retrying, and time.Sleep(backoff.Stop) (-1)
	// returns immediately, turning the capped backoff into a busy spin.
	b.MaxElapsedTime = 0
	// NewExponentialBackOff already reset the current interval to the
	// library's default initial interval; reset again so the first retry
	// starts from CASBackoffInitial.
	b.Reset()

	for attempt := 0; ; attempt++ {
		v, readOK := u.monitor.ExclusiveRead32(core, addr)
		if !readOK {
			return 0, false
		}

		newValue, write := decide(v)
		if !write {
			u.monitor.ClearExclusive(core)
			return v, true
		}

		if u.monitor.ExclusiveWrite32(core, addr, newValue) {
			return v, true
		}

		if attempt >= u.tunables.CASMaxRetries {
			log.WithField("addr", addr).Warn("exclusive monitor contention exceeded retry budget, continuing")
		}
		time.Sleep(b.NextBackOff())
	}
}
