package supervisor_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/on-the-ground/modelstore/internal/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSupervisor_AllTasksRunAndComplete(t *testing.T) {
	sv := supervisor.New(nil)
	var ran atomic.Int32

	for i := 0; i < 3; i++ {
		sv.Go(context.Background(), "task", func(context.Context) {
			time.Sleep(10 * time.Millisecond)
			ran.Add(1)
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sv.Wait(ctx))
	assert.Equal(t, int32(3), ran.Load())
	assert.Zero(t, sv.InFlight())
}

func TestSupervisor_WaitWithNothingInFlight(t *testing.T) {
	sv := supervisor.New(nil)
	assert.NoError(t, sv.Wait(context.Background()))
}

func TestSupervisor_WaitHonorsContext(t *testing.T) {
	sv := supervisor.New(nil)
	release := make(chan struct{})
	defer close(release)

	sv.Go(context.Background(), "blocked", func(context.Context) { <-release })
	assert.Equal(t, 1, sv.InFlight())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sv.Wait(ctx), context.DeadlineExceeded)
}

func TestSupervisor_WaitCoversTasksSpawnedByTasks(t *testing.T) {
	sv := supervisor.New(nil)
	var ran atomic.Int32

	sv.Go(context.Background(), "parent", func(ctx context.Context) {
		sv.Go(ctx, "child", func(context.Context) {
			time.Sleep(20 * time.Millisecond)
			ran.Add(1)
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sv.Wait(ctx))
	assert.Equal(t, int32(1), ran.Load())
}

func TestSupervisor_PanicIsRecoveredAndLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sv := supervisor.New(zap.New(core))

	sv.Go(context.Background(), "panicky", func(context.Context) { panic("child boom") })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sv.Wait(ctx))

	entries := logs.FilterMessage("panic in supervised routine").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "panicky", entries[0].ContextMap()["routine"])
}
