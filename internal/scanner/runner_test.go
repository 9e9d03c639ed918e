package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoneinfo/server/internal/category"
	"github.com/zoneinfo/server/internal/counts"
	"github.com/zoneinfo/server/internal/testutil"
	"github.com/zoneinfo/server/internal/world"
	"golang.org/x/time/rate"
)

func TestRunnerStepWithoutWorldSkips(t *testing.T) {
	s, _ := newScanner(t)
	r := NewRunner(s, DefaultRunnerConfig(), nil)
	res := r.Step()
	assert.True(t, res.Skipped)
}

func TestRunnerPublishHooks(t *testing.T) {
	w := testutil.RandomWorld(t, 21, 40)
	s, store := newScanner(t)
	r := NewRunner(s, RunnerConfig{BlocksPerTick: 16}, nil)
	r.SetWorld(w.Context())

	var published []*counts.Buffer
	r.OnPublish(func(buf *counts.Buffer) { published = append(published, buf) })

	for i := 0; i < 3; i++ {
		r.Step()
	}
	require.Len(t, published, 1)
	assert.Same(t, store.Final(), published[0])
	assert.NotZero(t, published[0].Get(category.Total, world.DistrictEntireCity).Total)
}

func TestRunnerRecountIsRateLimited(t *testing.T) {
	s, _ := newScanner(t)
	r := NewRunner(s, RunnerConfig{RecountRate: rate.Every(time.Hour), RecountBurst: 1}, nil)

	assert.True(t, r.RequestFullRecount())
	assert.False(t, r.RequestFullRecount())
}

func TestRunnerRunStopsOnCancel(t *testing.T) {
	w := testutil.RandomWorld(t, 2, 20)
	s, store := newScanner(t)
	r := NewRunner(s, RunnerConfig{TickInterval: time.Millisecond, BlocksPerTick: 8}, nil)
	r.SetWorld(w.Context())

	published := make(chan struct{}, 1)
	r.OnPublish(func(*counts.Buffer) {
		select {
		case published <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case <-published:
	case <-time.After(5 * time.Second):
		t.Fatal("no pass published")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
	assert.True(t, s.Stopped())
	assert.NotZero(t, store.Final().Pass)
}
