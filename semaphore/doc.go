// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package semaphore provides a binary semaphore whose waiters are tasks rather than goroutines.

A Binary never blocks the calling goroutine.  Acquire either grants the token or places the
caller at the tail of a FIFO wait queue and reports that the caller must wait.  Whoever drives
the callers, normally a scheduler, suspends the caller until a later Release hands it the token.
Handing the token directly to the head waiter means no third party can take the token between
the Release and the waiter's resumption.
*/
package semaphore
