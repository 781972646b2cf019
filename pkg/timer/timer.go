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

// Package timer implements the timer-manager contract spec.md §6 treats
// as an external collaborator: scheduling a one-shot callback after a
// wait's timeout elapses, and unscheduling it if the wait resolves first.
package timer

import (
	"time"

	"github.com/p0ken/yuzu/internal/arblog"
)

var log = arblog.For("timer")

// Forever is the sentinel timeout meaning "block indefinitely" — any
// negative duration, per spec.md §5's "a negative or very large timeout
// (sentinel 'forever') produces an indefinite wait".
const Forever time.Duration = -1

// Event is a handle to a scheduled sleep, returned by Manager.ScheduleSleep.
// A nil *Event, or an Event holding no timer (as returned when timeout is
// Forever), always unschedules as a no-op.
type Event struct {
	timer *time.Timer
}

// Manager schedules and cancels the per-thread sleep timers that back
// WaitIfLessThan and WaitIfEqual's timeout behavior.
type Manager struct{}

// NewManager returns a Manager. Manager is stateless; timers are owned by
// the Event handles it returns.
func NewManager() *Manager {
	return &Manager{}
}

// ScheduleSleep arranges for fire to be called after timeout elapses. If
// timeout is Forever (or otherwise negative), no timer is scheduled and
// fire will never run; the caller must rely solely on an external wake.
func (m *Manager) ScheduleSleep(timeout time.Duration, fire func()) *Event {
	if timeout < 0 {
		return &Event{}
	}
	log.WithField("timeout", timeout).Debug("sleep scheduled")
	return &Event{timer: time.AfterFunc(timeout, fire)}
}

// UnscheduleTimeEvent cancels ev's timer if it hasn't already fired. It is
// a no-op if the timer already fired or ev never held one (Forever wait).
func (m *Manager) UnscheduleTimeEvent(ev *Event) {
	if ev == nil || ev.timer == nil {
		return
	}
	ev.timer.Stop()
}
