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
	"time"

	"github.com/p0ken/yuzu/pkg/sched"
	"github.com/p0ken/yuzu/pkg/timer"
)

// WaitSession is the per-thread sleep+cancel coordinator of spec.md §2/§9:
// a resource whose Park releases the scheduler lock and arms a sleep
// timer in one indivisible step, and whose Cancel aborts before ever
// parking. Exactly one of Cancel or Park is ever called for a session.
type WaitSession struct {
	scheduler *sched.Scheduler
	timers    *timer.Manager
	thread    *sched.Thread
	event     *timer.Event
}

// newWaitSession must be called with the scheduler lock already held.
func newWaitSession(s *sched.Scheduler, tm *timer.Manager, t *sched.Thread) *WaitSession {
	return &WaitSession{scheduler: s, timers: tm, thread: t}
}

// Cancel releases the scheduler lock without parking the thread. Used on
// every phase-A early-return path in WaitIfLessThan/WaitIfEqual:
// termination, memory fault, precondition mismatch, or a zero timeout.
func (ws *WaitSession) Cancel() {
	ws.scheduler.Unlock()
}

// Park arms the thread's wake channel, releases the scheduler lock, and
// blocks until the thread is woken — either by a signaler's Wakeup or by
// timeout. On return the scheduler lock is held again. The wake channel is
// armed and the timer scheduled before Park gives up the lock, so a
// signaler that acquires the lock immediately after can never
// observe the thread as "about to park" without also being able to wake
// it.
//
// The timer callback runs on its own goroutine, outside any critical
// section this call held; it wakes the thread through
// Scheduler.WakeLocked rather than calling Thread.Wakeup directly, so the
// resulting state transition is still made under the scheduler lock like
// every other one.
func (ws *WaitSession) Park(timeout time.Duration) {
	wakeCh := ws.scheduler.ArmAndPark(ws.thread)
	if timeout > 0 {
		thread, scheduler := ws.thread, ws.scheduler
		ws.event = ws.timers.ScheduleSleep(timeout, func() {
			scheduler.WakeLocked(thread)
		})
	}
	ws.scheduler.Unlock()

	<-wakeCh

	ws.timers.UnscheduleTimeEvent(ws.event)
	ws.scheduler.Lock()
}
