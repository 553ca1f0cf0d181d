// Package cache provides the second-level cache construction primitives the
// resolution engine composes: a perpetual base store and named decorators for
// eviction, size bounds, periodic flushing, read/write safety, and blocking
// lookups.
package cache
