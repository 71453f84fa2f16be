package trainer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"powerpulse/internal/feature"
	"powerpulse/internal/registry"
)

func TestScheduler_RunOncePublishesAndNotifies(t *testing.T) {
	const window = 6
	set := trainingSet(t, 200, window)

	repo, err := registry.NewFSRepository(t.TempDir())
	require.NoError(t, err)
	reg := registry.New()
	tr := New(fastTrainingConfig(window), repo, reg, zap.NewNop())

	loads := 0
	sched := NewScheduler(tr, func() (*feature.Set, error) {
		loads++
		return set, nil
	}, zap.NewNop())

	var notified time.Time
	sched.Notify = func(trainedAt time.Time) { notified = trainedAt }

	sched.runOnce()

	assert.Equal(t, 1, loads)
	current, ok := reg.Current()
	require.True(t, ok)
	assert.Equal(t, current.TrainedAt, notified)
}

func TestScheduler_KeepsPreviousSetOnFailure(t *testing.T) {
	const window = 6
	set := trainingSet(t, 200, window)

	repo, err := registry.NewFSRepository(t.TempDir())
	require.NoError(t, err)
	reg := registry.New()
	tr := New(fastTrainingConfig(window), repo, reg, zap.NewNop())

	tr2 := New(fastTrainingConfig(window), repo, reg, zap.NewNop())
	res, err := tr2.Run(context.Background(), set)
	require.NoError(t, err)

	sched := NewScheduler(tr, func() (*feature.Set, error) {
		return nil, fmt.Errorf("source offline")
	}, zap.NewNop())
	sched.Notify = func(time.Time) { t.Fatal("notify must not fire on failure") }

	sched.runOnce()

	current, ok := reg.Current()
	require.True(t, ok)
	assert.Same(t, res.Set, current)
}

func TestScheduler_RejectsBadCronSpec(t *testing.T) {
	reg := registry.New()
	repo, err := registry.NewFSRepository(t.TempDir())
	require.NoError(t, err)
	tr := New(fastTrainingConfig(4), repo, reg, zap.NewNop())

	sched := NewScheduler(tr, nil, zap.NewNop())
	err = sched.Start("not a cron spec")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrain schedule")
}
