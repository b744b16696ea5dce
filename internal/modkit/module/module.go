// Package module is the contract API modules satisfy plus the helpers main uses to compose them
package module

import (
	"context"
	"errors"
	"fmt"

	phttp "audiencepulse/internal/platform/net/http"
)

// Module is what the api composition root mounts
// kept apart from modkit so a module can export its own ports type without an import cycle
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}

// Closer is implemented by modules that own background work such as workers or janitors
type Closer interface {
	Close(ctx context.Context) error
}

// Mount registers each module's ports under its name, then mounts its routes on r
func Mount(r phttp.Router, mods ...Module) {
	for _, m := range mods {
		Register(m.Name(), m.Ports())
		m.MountRoutes(r)
	}
}

// CloseAll closes modules in reverse order; every Closer is called and failures are joined
func CloseAll(ctx context.Context, mods ...Module) error {
	var errs []error
	for i := len(mods) - 1; i >= 0; i-- {
		c, ok := mods[i].(Closer)
		if !ok {
			continue
		}
		if err := c.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", mods[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}
