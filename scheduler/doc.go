// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package scheduler multiplexes a fixed set of tasks onto a single logical core.

Each task body runs on its own goroutine, but only one body executes at any instant.  A body
interacts with the scheduler exclusively through its *Task:  Delay, Acquire, Release, Busy and
the critical section pair.  Each of those calls hands control to the dispatch loop, which owns
all scheduling state and decides which task runs next.  The highest priority Ready task always
runs, with ties broken by the order in which tasks became Ready.

Time is logical.  The dispatch loop keeps its own notion of now and uses a clock.Interface only
to wait.  With clock.System() a run paces itself against the wall clock.  With a
clock.FastForward a run executes its timeline as fast as the host allows, which is how the
tests drive it.
*/
package scheduler
