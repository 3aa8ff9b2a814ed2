package utils

import "os"

// GetEnv returns the value of key, or fallback when it is unset or empty.
func GetEnv(key string, fallback ...string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return ""
}
