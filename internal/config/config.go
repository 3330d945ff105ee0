// Package config loads jirasync settings from a YAML file and the
// environment through a package-level viper instance.
//
// Precedence, highest first: values set with Set (command-line flags),
// JIRASYNC_* environment variables, the CI fallbacks listed on each Key
// (JIRA_URL, GITHUB_TOKEN, ...), the config file, and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by jirasync.
const EnvPrefix = "JIRASYNC"

// FileName is the config file looked up in the working directory.
const FileName = ".jirasync.yaml"

var v *viper.Viper

// Initialize sets up the viper instance. configFile may be empty, in which
// case JIRASYNC_CONFIG, ./.jirasync.yaml and the user config directory
// (jirasync/config.yaml) are tried in that order; finding none is fine.
// An explicit file that cannot be read is an error.
func Initialize(configFile string) error {
	v = viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for _, k := range Keys {
		if k.Default != nil {
			v.SetDefault(k.Name, k.Default)
		}
		names := append([]string{k.Name, EnvVar(k.Name)}, k.Env...)
		if err := v.BindEnv(names...); err != nil {
			return fmt.Errorf("bind env for %s: %w", k.Name, err)
		}
	}

	explicit := configFile != ""
	if !explicit {
		configFile = findConfigFile()
	}
	if configFile == "" {
		return nil
	}

	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}
	return nil
}

func findConfigFile() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		return path
	}
	candidates := []string{FileName}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "jirasync", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ResetForTesting drops the viper instance so the next call starts clean.
func ResetForTesting() {
	v = nil
}

func instance() *viper.Viper {
	if v == nil {
		// Initialize without a file never fails on a missing file, and bind
		// errors only happen for empty key names.
		_ = Initialize("")
	}
	return v
}

// ConfigFileUsed returns the path of the loaded config file, or "".
func ConfigFileUsed() string {
	return instance().ConfigFileUsed()
}

// Set overrides a key, typically from a command-line flag.
func Set(key string, value interface{}) {
	instance().Set(key, value)
}

// IsSet reports whether key has a value from any source other than defaults.
func IsSet(key string) bool {
	return instance().IsSet(key)
}

// GetString retrieves a string value.
func GetString(key string) string {
	return instance().GetString(key)
}

// GetBool retrieves a boolean value.
func GetBool(key string) bool {
	return instance().GetBool(key)
}

// GetInt retrieves an integer value.
func GetInt(key string) int {
	return instance().GetInt(key)
}

// GetDuration retrieves a duration value.
func GetDuration(key string) time.Duration {
	return instance().GetDuration(key)
}

// GetStringSlice retrieves a list. A plain string (as environment variables
// always are) is split on commas.
func GetStringSlice(key string) []string {
	raw := instance().Get(key)
	switch val := raw.(type) {
	case nil:
		return nil
	case string:
		return splitList(val)
	default:
		return instance().GetStringSlice(key)
	}
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// AllSettings returns every scalar key with its effective value as a string,
// secrets masked. Used by `jirasync config`.
func AllSettings() map[string]string {
	out := make(map[string]string, len(Keys))
	for _, k := range Keys {
		var val string
		switch instance().Get(k.Name).(type) {
		case []interface{}, []string:
			val = strings.Join(GetStringSlice(k.Name), ",")
		default:
			val = GetString(k.Name)
		}
		if k.Secret && val != "" {
			val = "********"
		}
		out[k.Name] = val
	}
	return out
}
