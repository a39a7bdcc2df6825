package observation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/delaneyj/observatory/observation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop(t *testing.T) {
	sys := newSystem(t, observation.WithDirtyCheck(observation.DirtyCheckSettings{Interval: 5 * time.Millisecond}))
	loop := observation.NewLoop(sys)
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	var runErr error
	go func() {
		defer wg.Done()
		runErr = loop.Run(ctx)
	}()

	o := observation.NewObject("x", 0)
	var log *changeLog
	require.NoError(t, loop.Do(ctx, func() error {
		_, log = observe(t, sys, o, "x")
		return nil
	}))

	require.NoError(t, loop.Do(ctx, func() error {
		return o.Set("x", 1)
	}))
	var got []change
	require.NoError(t, loop.Do(ctx, func() error {
		got = append(got, log.changes...)
		return nil
	}))
	assert.Equal(t, []change{{1, 0}}, got, "the loop flushes after every task")

	p := &point{}
	changed := make(chan struct{}, 1)
	require.NoError(t, loop.Do(ctx, func() error {
		_, plog := observe(t, sys, p, "X")
		plog.onChange = func(_, _ any) { changed <- struct{}{} }
		return nil
	}))
	require.NoError(t, loop.Post(ctx, func() { p.X = 7 }))
	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("dirty check never noticed the change")
	}

	cancel()
	wg.Wait()
	assert.ErrorIs(t, runErr, context.Canceled)
}

func TestLoopDoReturnsPanics(t *testing.T) {
	sys := newSystem(t)
	loop := observation.NewLoop(sys)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	err := loop.Do(ctx, func() error {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	assert.NoError(t, loop.Do(ctx, func() error { return nil }), "the loop keeps running")
}
