package wgpu

import (
	"fmt"

	"github.com/gogpu/reproject/backend"
)

func init() {
	backend.Register(backend.WGPU, func(cfg backend.Config) (backend.Backend, error) {
		if cfg.Provider == nil {
			return nil, fmt.Errorf("%w: no device provider", backend.ErrBackendNotAvailable)
		}
		return NewFromProvider(cfg.Provider,
			WithMemoryBudget(cfg.MemoryBudgetMB),
			WithLogger(cfg.Logger),
		)
	})
}
