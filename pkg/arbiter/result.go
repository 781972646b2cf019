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

// ResultCode is one of the named outcomes from spec.md §3. Success is not
// a ResultCode value: every operation below returns a plain error, and a
// nil error means Success. The four failure codes are singletons,
// comparable by identity exactly like the teacher's syserror.ErrWouldBlock.
type ResultCode struct {
	name string
}

// Error implements error.
func (r *ResultCode) Error() string { return r.name }

var (
	// ErrInvalidCurrentMemory is returned when an exclusive read or write
	// reported the user address as unreadable.
	ErrInvalidCurrentMemory = &ResultCode{"address-arbiter: invalid current memory"}

	// ErrInvalidState is returned when the user cell's published value did
	// not match the operation's precondition.
	ErrInvalidState = &ResultCode{"address-arbiter: invalid state"}

	// ErrTimedOut is returned when a wait's timeout elapsed before a
	// signaler woke it, or immediately when timeout is zero and the
	// precondition held.
	ErrTimedOut = &ResultCode{"address-arbiter: timed out"}

	// ErrTerminationRequested is returned when the calling thread is being
	// torn down and must not enroll in a wait.
	ErrTerminationRequested = &ResultCode{"address-arbiter: termination requested"}
)
