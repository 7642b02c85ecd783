// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package xmetrics provides configurability for Prometheus-based metrics.  The more general go-kit interfaces
are used where possible.

A Registry is both a Prometheus registry, suitable for exposition with promhttp, and a go-kit provider.Provider
that components use to create their metrics.  Components describe the metrics they use as Modules so that labels
and help text are registered before any metric is created.
*/
package xmetrics
