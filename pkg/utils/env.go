package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvOrDefault returns the value of key, or def when it is unset or empty.
func EnvOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// DurationEnv parses key as a time.Duration. Unset or invalid values yield def.
func DurationEnv(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return d
}

func Int64Env(key string, def int64) int64 {
	n, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return def
	}
	return n
}

func IntEnv(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return n
}

// ListEnv splits a comma separated variable. Empty entries are skipped.
func ListEnv(key string) StringList {
	var list StringList
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list
}
