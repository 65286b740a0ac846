package config

import (
	"io"
	"time"
)

// TimeConfig reads integer keys as durations in a fixed unit.
type TimeConfig interface {
	// GetSecond reads key as a number of seconds.
	GetSecond(key string) time.Duration
	// GetMinute reads key as a number of minutes.
	GetMinute(key string) time.Duration
	// GetHour reads key as a number of hours.
	GetHour(key string) time.Duration
}

// NumberConfig reads numeric keys. Missing or malformed values read as zero.
type NumberConfig interface {
	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetUint(key string) uint
	GetUint16(key string) uint16
	GetUint64(key string) uint64
	GetFloat64(key string) float64
}

// Config is the read side of the application configuration.
//
// Implementations return zero values for missing keys; callers apply their own
// defaults. The file is the source of truth, environment variables override it.
type Config interface {
	io.Closer
	TimeConfig
	NumberConfig

	// GetBool reads key as a boolean.
	GetBool(key string) bool

	// GetString reads key as a string.
	GetString(key string) string

	// GetBinary reads a base64 encoded key and returns the decoded bytes,
	// or nil when the value is not valid base64.
	GetBinary(key string) []byte

	// GetArray reads a comma separated key (<e1>,<e2>,...). Elements are
	// trimmed and empty elements are dropped.
	GetArray(key string) []string
}
