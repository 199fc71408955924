package service

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/marketplace/internal/logging"
	"github.com/fjod/marketplace/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestJournal_RollbackIsLastInFirstOut(t *testing.T) {
	j := newJournal("test", nil)
	ctx := context.Background()
	var undone []string

	for _, step := range []string{"a", "b", "c"} {
		err := j.run(ctx, step,
			func(context.Context) error { return nil },
			func(context.Context) error { undone = append(undone, step); return nil })
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "c"}, j.steps())

	j.rollback(ctx)
	assert.Equal(t, []string{"c", "b", "a"}, undone)
	assert.Empty(t, j.steps())
}

func TestJournal_FailedStepIsNotRecorded(t *testing.T) {
	j := newJournal("test", nil)
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, j.run(ctx, "a", func(context.Context) error { return nil }, func(context.Context) error { return nil }))
	err := j.run(ctx, "b", func(context.Context) error { return boom }, func(context.Context) error {
		t.Fatal("undo of a failed step must not run")
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, j.steps())

	j.rollback(ctx)
}

func TestJournal_RollbackContinuesAndReports(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := logging.ContextWithLogger(context.Background(), zap.New(core))
	m := metrics.New(prometheus.NewRegistry())
	j := newJournal("create", m)

	var undone []string
	ok := func(step string) func(context.Context) error {
		return func(context.Context) error { undone = append(undone, step); return nil }
	}
	noop := func(context.Context) error { return nil }

	require.NoError(t, j.run(ctx, "create_cart", noop, ok("create_cart")))
	require.NoError(t, j.run(ctx, "record_movement", noop, func(context.Context) error {
		return errors.New("delete failed")
	}))
	require.NoError(t, j.run(ctx, "decrement_stock", noop, ok("decrement_stock")))

	j.rollback(ctx)

	assert.Equal(t, []string{"decrement_stock", "create_cart"}, undone)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Compensations.WithLabelValues("record_movement", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Compensations.WithLabelValues("create_cart", "ok")))

	failed := logs.FilterMessage("failed to compensate step").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "record_movement", failed[0].ContextMap()["step"])
}
