package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funnel-cli/internal/model"
)

func TestReconcileAtStartupRequeuesOrphanedJobs(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t)

	_, err := q.Enqueue(ctx, &model.Job{ContactKey: "5215512345678", RunID: "r1"})
	require.NoError(t, err)

	// Claim but never complete, as a crashed worker would.
	claimed, err := q.Claim(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, reconcileAtStartup(ctx, q))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Zero(t, stats.Processing)
}

func TestReconcileAtStartupNoopOnCleanQueue(t *testing.T) {
	ctx := context.Background()
	q := testQueue(t)

	_, err := q.Enqueue(ctx, &model.Job{ContactKey: "5215512345678", RunID: "r1"})
	require.NoError(t, err)

	require.NoError(t, reconcileAtStartup(ctx, q))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
}
