package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvString reads a string environment variable. The second return
// value reports whether the variable was set and non-empty.
func EnvString(key string) (string, bool) {
	value := os.Getenv(key)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment variable.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration reads a duration environment variable. Bare numbers are
// interpreted as seconds, so DELAY=2 and DELAY=2s mean the same thing.
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(seconds * float64(time.Second)), true, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}
