// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package blinky installs the LED workload on a scheduler:  periodic tasks that toggle an output,
some of which also take turns using a shared resource.

In the default semaphore mode the resource is guarded by a binary semaphore, so tasks that never
touch it keep their timing.  The critical mode guards it by disabling preemption instead, which
delays every other task for the length of the access.
*/
package blinky
