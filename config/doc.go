// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package config loads the rtsem configuration with Viper, following the usual conventions:  a file
named after the application under /etc, $HOME or the working directory, environment variables
with the application prefix, and command line flags, each overriding the last.
*/
package config
