package service

import (
	"context"

	"github.com/fjod/marketplace/internal/logging"
	"github.com/fjod/marketplace/internal/metrics"
	"go.uber.org/zap"
)

type compensation struct {
	step string
	undo func(ctx context.Context) error
}

// journal records the completed writes of a multi-step operation so they can be
// undone, last first, when a later step fails.
type journal struct {
	flow    string
	metrics *metrics.Metrics
	done    []compensation
}

func newJournal(flow string, m *metrics.Metrics) *journal {
	return &journal{flow: flow, metrics: m}
}

// run executes do and records undo once do has succeeded.
func (j *journal) run(ctx context.Context, step string, do, undo func(ctx context.Context) error) error {
	if err := do(ctx); err != nil {
		logging.FromContext(ctx).Warn("write step failed",
			zap.String("flow", j.flow),
			zap.String("step", step),
			zap.Error(err))
		return err
	}
	j.done = append(j.done, compensation{step: step, undo: undo})
	return nil
}

// rollback undoes every recorded step in reverse order. It never stops early:
// a failed undo is logged and counted, then the next one runs.
func (j *journal) rollback(ctx context.Context) {
	logger := logging.FromContext(ctx)
	logger.Warn("rolling back", zap.String("flow", j.flow), zap.Strings("steps", j.steps()))

	for i := len(j.done) - 1; i >= 0; i-- {
		c := j.done[i]
		err := c.undo(ctx)
		j.metrics.ObserveCompensation(c.step, err)
		if err != nil {
			logger.Error("failed to compensate step",
				zap.String("flow", j.flow),
				zap.String("step", c.step),
				zap.Error(err))
		}
	}
	j.done = nil
}

func (j *journal) steps() []string {
	names := make([]string, len(j.done))
	for i, c := range j.done {
		names[i] = c.step
	}
	return names
}
