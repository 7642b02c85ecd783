// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package status serves a read-only HTTP view of a running scheduler:  its tasks, its semaphores,
the shared resource and the Prometheus metrics.  Responses are JSON unless the client asks for
msgpack.
*/
package status
