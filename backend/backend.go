package backend

import (
	"errors"
	"log/slog"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/reproject/warp"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or cannot run with the given configuration.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Backend names.
const (
	Software = "software"
	WGPU     = "wgpu"
)

// Backend is a [warp.Backend] owning device resources.
// The backend should not be used after Close is called.
type Backend interface {
	warp.Backend

	// Close releases every buffer still allocated and the backend's own
	// resources.
	Close()
}

// Config is handed to backend factories. Backends ignore the fields they
// have no use for.
type Config struct {
	// Workers is the number of CPU workers; zero picks a default.
	Workers int

	// MemoryBudgetMB limits buffer memory; zero picks a default.
	MemoryBudgetMB int

	// Logger receives backend logs. Nil disables logging.
	Logger *slog.Logger

	// Provider supplies the GPU device for GPU backends.
	Provider gpucontext.DeviceProvider
}
