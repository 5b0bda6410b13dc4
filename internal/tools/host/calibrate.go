package host

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Calibrate sends a lightweight empty-args probe to every registered tool,
// measures round-trip latency, and updates each tool's assigned
// [tools.Class] the same way a live call would (spec §5: tool calls of a
// single iteration run concurrently).
//
// Probes run concurrently using an errgroup and respect ctx for
// cancellation. Per-tool errors are recorded in the rolling window rather
// than propagated; only context cancellation is returned.
func (h *Host) Calibrate(ctx context.Context) error {
	h.mu.RLock()
	names := make([]string, 0, len(h.tools))
	for name := range h.tools {
		names = append(names, name)
	}
	h.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, _ = h.ExecuteTool(gctx, name, "{}")
			return nil
		})
	}
	return g.Wait()
}
