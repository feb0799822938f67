package journey

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Runner drives an engine from a real ticker until the journey completes or
// ctx is done.
type Runner struct {
	engine *Engine
	logger *slog.Logger
}

func NewRunner(engine *Engine, logger *slog.Logger) *Runner {
	return &Runner{
		engine: engine,
		logger: logger.With("component", "journey_runner"),
	}
}

func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.engine.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.engine.Done():
			return
		case <-ticker.C:
			if _, err := r.engine.Tick(ctx); err != nil {
				if errors.Is(err, ErrNotOngoing) {
					return
				}
				r.logger.Error("journey tick failed", "error", err)
			}
		}
	}
}
