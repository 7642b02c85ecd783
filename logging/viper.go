package logging

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// LoggingKey is the Viper subkey under which logging should be stored.
	LoggingKey = "log"

	LevelFlag = "log-level"
	JSONFlag  = "log-json"
	FileFlag  = "log-file"
)

// AddFlags defines the command line flags that override the logging configuration
func AddFlags(fs *pflag.FlagSet) {
	fs.String(LevelFlag, "", "the log level: ERROR, WARN, INFO, or DEBUG")
	fs.Bool(JSONFlag, false, "whether to log in JSON instead of logfmt")
	fs.String(FileFlag, "", "the log file, or stdout/stderr")
}

// BindFlags binds the flags created by AddFlags to the nested keys under LoggingKey.
// Flags missing from the flag set are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for flag, key := range map[string]string{
		LevelFlag: LoggingKey + ".level",
		JSONFlag:  LoggingKey + ".json",
		FileFlag:  LoggingKey + ".file",
	} {
		if f := fs.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	return nil
}

// FromViper produces an Options from the LoggingKey section of a (possibly nil) Viper instance.
// Bound flags take precedence over configuration files, as usual for Viper.
func FromViper(v *viper.Viper) (*Options, error) {
	var root struct {
		Log Options
	}

	if v != nil {
		if err := v.Unmarshal(&root); err != nil {
			return nil, err
		}
	}

	return &root.Log, nil
}
