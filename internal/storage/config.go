package storage

import (
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// GetString returns config[key], or defaultValue when the key is absent or
// empty.
func GetString(config map[string]string, key, defaultValue string) string {
	if v := config[key]; v != "" {
		return v
	}
	return defaultValue
}

// GetBool parses config[key] as a boolean. Beyond strconv's forms it accepts
// yes/no. An absent or empty value yields defaultValue.
func GetBool(config map[string]string, key string, defaultValue bool) (bool, error) {
	v := config[key]
	if v == "" {
		return defaultValue, nil
	}

	switch strings.ToLower(v) {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &ConfigError{
			Field:   key,
			Value:   v,
			Message: "must be a boolean (true/false, 1/0, yes/no)",
			Cause:   err,
		}
	}
	return b, nil
}

// GetInt parses config[key] as an integer, yielding defaultValue when the key
// is absent or empty.
func GetInt(config map[string]string, key string, defaultValue int) (int, error) {
	v := config[key]
	if v == "" {
		return defaultValue, nil
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ConfigError{
			Field:   key,
			Value:   v,
			Message: "must be an integer",
			Cause:   err,
		}
	}
	return i, nil
}

// GetDuration parses config[key] as a Go duration string ("90s", "1m30s") or,
// for convenience, a bare integer count of seconds.
func GetDuration(config map[string]string, key string, defaultValue time.Duration) (time.Duration, error) {
	v := config[key]
	if v == "" {
		return defaultValue, nil
	}

	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, &ConfigError{
		Field:   key,
		Value:   v,
		Message: "must be a duration (e.g. '90s', '1m30s') or integer seconds",
	}
}

// ExpandPath resolves a leading ~/ against the user's home directory and
// cleans the result. A path it cannot resolve is returned untouched.
func ExpandPath(path string) string {
	if after, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, after)
	}
	return filepath.Clean(path)
}

// MergeConfig overlays src on dst into a fresh map; src wins per key.
func MergeConfig(dst, src map[string]string) map[string]string {
	merged := make(map[string]string, len(dst)+len(src))
	maps.Copy(merged, dst)
	maps.Copy(merged, src)
	return merged
}
