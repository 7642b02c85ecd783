// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xmidt-org/rtsem/blinky"
	"github.com/xmidt-org/rtsem/logging"
	"github.com/xmidt-org/rtsem/xmetrics"
)

const (
	ApplicationName = "rtsem"

	FileFlag     = "file"
	NameFlag     = "name"
	SimulateFlag = "simulate"
	ModeFlag     = "mode"
	StatusFlag   = "status"

	TasksKey         = "tasks"
	AccessTimeKey    = "accessTime"
	ModeKey          = "mode"
	SimulateKey      = "simulate"
	StatusAddressKey = "status.address"
	NamespaceKey     = "metrics.namespace"
	SubsystemKey     = "metrics.subsystem"
)

// Configer is the subset of Viper behavior dealing with configuration paths and locations
type Configer interface {
	AddConfigPath(string)
	SetConfigName(string)
	SetConfigFile(string)
}

// AddStandardConfigPaths adds the standard *nix-style configuration paths
func AddStandardConfigPaths(c Configer, applicationName string) {
	c.AddConfigPath(fmt.Sprintf("/etc/%s", applicationName))
	c.AddConfigPath(fmt.Sprintf("$HOME/.%s", applicationName))
	c.AddConfigPath(".")
}

// BindConfig uses the file flag, if set, as the exact configuration file.  Otherwise the name flag,
// if set, replaces the configuration file name that is searched for.  This function returns true
// if the configuration file was named explicitly by either flag.
func BindConfig(c Configer, fs *pflag.FlagSet) bool {
	if f := fs.Lookup(FileFlag); f != nil && len(f.Value.String()) > 0 {
		c.SetConfigFile(f.Value.String())
		return true
	}

	if f := fs.Lookup(NameFlag); f != nil && len(f.Value.String()) > 0 {
		c.SetConfigName(f.Value.String())
		return true
	}

	return false
}

// AddFlags defines the command line flags understood by New, including the logging flags
func AddFlags(fs *pflag.FlagSet) {
	fs.StringP(FileFlag, "f", "", "the configuration file to use.  Overrides --name.")
	fs.StringP(NameFlag, "n", "", "the configuration file name, without extension, to search for.  Defaults to the application name.")
	fs.Duration(SimulateFlag, 0, "run this much logical time as fast as possible, then print a summary and exit")
	fs.String(ModeFlag, "", "how the shared resource is protected: semaphore or critical")
	fs.String(StatusFlag, "", "the address to serve the status API on, e.g. :8080")
	logging.AddFlags(fs)
}

// SetDefaults stores a workload configuration as Viper defaults, so that a configuration file
// can override individual task settings
func SetDefaults(v *viper.Viper, cfg blinky.Config) {
	for name, tc := range cfg.Tasks {
		prefix := TasksKey + "." + name + "."
		v.SetDefault(prefix+"pin", int(tc.Pin))
		v.SetDefault(prefix+"period", tc.Period)
		v.SetDefault(prefix+"priority", tc.Priority)
		v.SetDefault(prefix+"contending", tc.Contending)
	}

	v.SetDefault(AccessTimeKey, cfg.AccessTime)
	v.SetDefault(ModeKey, string(cfg.Mode))
	v.SetDefault(SimulateKey, 0)
	v.SetDefault(StatusAddressKey, "")
	v.SetDefault(NamespaceKey, xmetrics.DefaultNamespace)
	v.SetDefault(SubsystemKey, xmetrics.DefaultSubsystem)
}

// BindFlags binds the flags from AddFlags to their configuration keys.  Flags missing from the
// flag set are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for flag, key := range map[string]string{
		SimulateFlag: SimulateKey,
		ModeFlag:     ModeKey,
		StatusFlag:   StatusAddressKey,
	} {
		if f := fs.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	return logging.BindFlags(v, fs)
}

// New produces a Viper instance configured with the application conventions and reads the
// configuration file.  A missing configuration file is only an error if one was named on the
// command line.  The flag set must already be parsed.
func New(applicationName string, fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	AddStandardConfigPaths(v, applicationName)
	v.SetConfigName(applicationName)
	v.SetEnvPrefix(applicationName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v, blinky.DefaultConfig())
	if err := BindFlags(v, fs); err != nil {
		return nil, err
	}

	explicit := BindConfig(v, fs)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read configuration: %w", err)
		}
	}

	return v, nil
}
