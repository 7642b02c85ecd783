// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package concurrent provides the process lifecycle plumbing:  starting long running operations,
waiting for a termination signal, and shutting those operations down within a bounded time.
*/
package concurrent
