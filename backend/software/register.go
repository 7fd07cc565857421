package software

import "github.com/gogpu/reproject/backend"

func init() {
	backend.Register(backend.Software, func(cfg backend.Config) (backend.Backend, error) {
		return New(
			WithWorkers(cfg.Workers),
			WithMemoryBudget(cfg.MemoryBudgetMB),
			WithLogger(cfg.Logger),
		), nil
	})
}
