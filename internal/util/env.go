// Package util holds small helpers for reading configuration from the
// environment.
package util

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// ParseBoolEnv reads key as a boolean. Recognizes 1/t/true/yes/on and
// 0/f/false/no/off in any case; anything else keeps the fallback.
func ParseBoolEnv(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}
	slog.Warn("util.ParseBoolEnv: unrecognized value, keeping default", "key", key, "value", raw, "default", fallback)
	return fallback
}

// ParseIntEnv reads key as an integer, keeping the fallback when the
// variable is unset or unparseable.
func ParseIntEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("util.ParseIntEnv: unrecognized value, keeping default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return n
}
