package observability

import (
	"time"

	"go.uber.org/zap"
)

// Field helpers keep call sites independent of the zap import.

// String constructs a string field.
func String(key, val string) zap.Field { return zap.String(key, val) }

// Int constructs an int field.
func Int(key string, val int) zap.Field { return zap.Int(key, val) }

// Int64 constructs an int64 field.
func Int64(key string, val int64) zap.Field { return zap.Int64(key, val) }

// Bool constructs a bool field.
func Bool(key string, val bool) zap.Field { return zap.Bool(key, val) }

// Float64 constructs a float64 field.
func Float64(key string, val float64) zap.Field { return zap.Float64(key, val) }

// Duration constructs a duration field.
func Duration(key string, val time.Duration) zap.Field { return zap.Duration(key, val) }

// Strings constructs a string slice field.
func Strings(key string, val []string) zap.Field { return zap.Strings(key, val) }

// Error constructs an error field under the "error" key.
func Error(err error) zap.Field { return zap.Error(err) }
