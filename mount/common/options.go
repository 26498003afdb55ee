// Package common defines configuration shared between the mount stack
// and its enumeration cache, split into its own package to avoid an
// import cycle between the stack and its policy settings.
package common

// Options configures a mount.Stack. CacheTimeSeconds bounds how long a
// directory enumeration answer may be served from cache before the
// resolver re-walks the mount list.
type Options struct {
	CacheTimeSeconds int
}

// DefaultOptions sets a 120s enumeration cache lifetime.
func DefaultOptions() Options {
	return Options{CacheTimeSeconds: 120}
}
