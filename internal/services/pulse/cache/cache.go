// Package cache stores job snapshots and per-target collections for a bounded time.
// Two backends share one contract: an in-process map for single instances and redis
// when several API replicas must see the same jobs
package cache

import (
	"time"
)

// Defaults for entry lifetimes
const (
	DefaultTTL      = 15 * time.Minute
	DefaultClaimTTL = 10 * time.Minute
)

// Options configure either backend
type Options struct {
	// TTL bounds how long job snapshots and collections are kept after their last write
	TTL time.Duration
	// ClaimTTL bounds how long a build slot survives an owner that never releases it
	ClaimTTL time.Duration
	// Prefix namespaces redis keys
	Prefix string
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.ClaimTTL <= 0 {
		o.ClaimTTL = DefaultClaimTTL
	}
	if o.Prefix == "" {
		o.Prefix = "pulse:"
	}
	return o
}
