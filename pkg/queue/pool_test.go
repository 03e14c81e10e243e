package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsJob(t *testing.T) {
	p := NewPool(2, 4)
	defer func() { _ = p.Stop(context.Background()) }()

	done := make(chan struct{})
	require.NoError(t, p.Submit("inv-1", func(context.Context) { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
}

func TestSubmitRejectsDuplicateWhileActive(t *testing.T) {
	p := NewPool(1, 4)
	defer func() { _ = p.Stop(context.Background()) }()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit("inv-1", func(context.Context) {
		close(started)
		<-release
	}))
	<-started

	assert.ErrorIs(t, p.Submit("inv-1", func(context.Context) {}), ErrDuplicate)
	close(release)
}

func TestSubmitQueueFull(t *testing.T) {
	p := NewPool(1, 1)
	defer func() { _ = p.Stop(context.Background()) }()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit("running", func(context.Context) {
		close(started)
		<-release
	}))
	<-started

	require.NoError(t, p.Submit("queued", func(context.Context) {}))
	err := p.Submit("overflow", func(context.Context) {})
	assert.ErrorIs(t, err, ErrQueueFull)

	// A rejected submission releases its id for a later retry.
	close(release)
	require.Eventually(t, func() bool {
		return p.Submit("overflow", func(context.Context) {}) == nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCancelRunningJob(t *testing.T) {
	p := NewPool(1, 4)
	defer func() { _ = p.Stop(context.Background()) }()

	started := make(chan struct{})
	stopped := make(chan struct{})
	require.NoError(t, p.Submit("inv-1", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(stopped)
	}))
	<-started

	assert.True(t, p.Cancel("inv-1"))
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not reach the job context")
	}

	assert.False(t, p.Cancel("inv-1"), "finished ids are no longer active")
}

func TestCancelWhileQueuedSkipsJob(t *testing.T) {
	p := NewPool(1, 4)
	defer func() { _ = p.Stop(context.Background()) }()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit("running", func(context.Context) {
		close(started)
		<-release
	}))
	<-started

	var ran atomic.Bool
	require.NoError(t, p.Submit("queued", func(context.Context) { ran.Store(true) }))
	assert.True(t, p.Cancel("queued"))

	close(release)
	require.Eventually(t, func() bool { return p.Active() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, ran.Load(), "cancelled-while-queued jobs never start")
}

func TestCancelUnknownID(t *testing.T) {
	p := NewPool(1, 1)
	defer func() { _ = p.Stop(context.Background()) }()

	assert.False(t, p.Cancel("ghost"))
}

func TestStopCancelsInFlightAndRejectsNew(t *testing.T) {
	p := NewPool(2, 4)

	started := make(chan struct{})
	require.NoError(t, p.Submit("inv-1", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))

	assert.ErrorIs(t, p.Submit("inv-2", func(context.Context) {}), ErrStopped)
	assert.NoError(t, p.Stop(context.Background()), "stop is idempotent")
}
