package cli

import (
	"log/slog"
	"sync"

	"github.com/gogpu/reproject/warp"
)

// tracingBackend records the passes run through it.
type tracingBackend struct {
	warp.Backend

	mu     sync.Mutex
	passes []warp.PassID
}

func (b *tracingBackend) Invoke(pass warp.PassID, bind warp.Bindings, out ...warp.Buffer) error {
	if err := b.Backend.Invoke(pass, bind, out...); err != nil {
		return err
	}
	b.mu.Lock()
	b.passes = append(b.passes, pass)
	b.mu.Unlock()
	return nil
}

// SetLogger forwards the logger to the wrapped backend.
func (b *tracingBackend) SetLogger(l *slog.Logger) {
	if ls, ok := b.Backend.(interface{ SetLogger(*slog.Logger) }); ok {
		ls.SetLogger(l)
	}
}

// take returns the passes recorded since the last call.
func (b *tracingBackend) take() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.passes))
	for i, p := range b.passes {
		names[i] = p.String()
	}
	b.passes = b.passes[:0]
	return names
}
