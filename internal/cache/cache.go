// Package cache holds small in-process caches for remote lookups.
package cache

import "time"

// Cache defines a generic keyed cache
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time
