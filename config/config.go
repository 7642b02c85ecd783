// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"github.com/xmidt-org/rtsem/blinky"
	"github.com/xmidt-org/rtsem/xmetrics"
)

var durationType = reflect.TypeOf(time.Duration(0))

// DurationHook decodes durations from either Go duration strings, such as "200ms", or plain
// numbers, which are taken as milliseconds.  Numeric strings, as environment variables produce,
// are also milliseconds.
func DurationHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != durationType || from == durationType {
			return data, nil
		}

		switch from.Kind() {
		case reflect.String:
			if ms, err := cast.ToInt64E(data); err == nil {
				return time.Duration(ms) * time.Millisecond, nil
			}

			return cast.ToDurationE(data)

		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			ms, err := cast.ToFloat64E(data)
			if err != nil {
				return nil, err
			}

			return time.Duration(ms * float64(time.Millisecond)), nil
		}

		return data, nil
	}
}

// Status configures the HTTP status surface
type Status struct {
	// Address is the listen address.  The status surface is disabled when this is empty.
	Address string
}

// Config is the complete application configuration, apart from logging
type Config struct {
	Tasks      map[string]blinky.TaskConfig
	AccessTime time.Duration
	Mode       blinky.Mode

	// Simulate is the logical time to run as fast as possible.  Zero runs in real time until signaled.
	Simulate time.Duration

	Status  Status
	Metrics xmetrics.Options
}

// Blinky returns the workload portion of this configuration
func (c Config) Blinky() blinky.Config {
	return blinky.Config{
		Tasks:      c.Tasks,
		AccessTime: c.AccessTime,
		Mode:       c.Mode,
	}
}

// Unmarshal decodes the whole configuration from a Viper instance
func Unmarshal(v *viper.Viper) (Config, error) {
	var c Config
	err := v.Unmarshal(
		&c,
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			DurationHook(),
			mapstructure.StringToSliceHookFunc(","),
		)),
	)

	return c, err
}
