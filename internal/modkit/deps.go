// Package modkit provides module wiring and core deps
package modkit

import (
	"audiencepulse/internal/platform/config"
	"audiencepulse/internal/platform/logger"
	"audiencepulse/internal/platform/store"
)

// Deps holds core dependencies passed to modules
// Store may be nil or have nil backends; modules fall back to in-process implementations
type Deps struct {
	Log   logger.Logger
	Cfg   config.Conf
	Store *store.Store
}
