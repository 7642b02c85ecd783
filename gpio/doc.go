// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package gpio models the digital outputs that tasks toggle.  Real pins are not driven: an Output
logs transitions, records them for analysis, or exports them as a Prometheus gauge.
*/
package gpio
