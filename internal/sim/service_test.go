package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTemplate(pool *ResourcePool, demand map[string]float64, ticks, maxAttempts int) *ServiceTemplate {
	return &ServiceTemplate{
		Identifier:  "svc",
		Pool:        pool,
		Demand:      demand,
		Ticks:       ticks,
		MaxAttempts: maxAttempts,
	}
}

func TestServiceInstance_StartRunsToFinish(t *testing.T) {
	pool := NewResourcePool("pool-a", map[string]float64{"cpu": 4})
	template := newTestTemplate(pool, map[string]float64{"cpu": 2}, 2, 3)
	job := &JobInstance{Identifier: 1}
	svc := newServiceInstance(template, job, 0)

	require.NoError(t, svc.Start())
	assert.Equal(t, ServiceRunning, svc.State)
	level, _ := pool.Level("cpu")
	assert.Equal(t, 2.0, level)

	svc.Step()
	assert.Equal(t, ServiceRunning, svc.State, "one tick of a two-tick service stays running")

	svc.Step()
	assert.Equal(t, ServiceFinished, svc.State)
	level, _ = pool.Level("cpu")
	assert.Zero(t, level, "finishing a service releases its resources")
}

func TestServiceInstance_StartFailsOnCapacity(t *testing.T) {
	pool := NewResourcePool("pool-a", map[string]float64{"cpu": 1})
	template := newTestTemplate(pool, map[string]float64{"cpu": 2}, 2, 3)
	job := &JobInstance{Identifier: 1}
	svc := newServiceInstance(template, job, 0)

	err := svc.Start()
	require.Error(t, err)
	assert.True(t, Is(err, ErrResourceCapacityExceeded))
	assert.Equal(t, ServicePending, svc.State)
	assert.Equal(t, 1, svc.Attempts)
}

func TestServiceInstance_MaxAttemptsReached(t *testing.T) {
	pool := NewResourcePool("pool-a", map[string]float64{"cpu": 1})
	template := newTestTemplate(pool, map[string]float64{"cpu": 2}, 2, 1)
	job := &JobInstance{Identifier: 1}
	svc := newServiceInstance(template, job, 0)

	err := svc.Start()
	assert.True(t, Is(err, ErrResourceCapacityExceeded))

	err = svc.Start()
	require.Error(t, err)
	assert.True(t, Is(err, ErrMaxAttemptsReached))
}

func TestServiceInstance_AbortReleasesResourcesWhileRunning(t *testing.T) {
	pool := NewResourcePool("pool-a", map[string]float64{"cpu": 4})
	template := newTestTemplate(pool, map[string]float64{"cpu": 2}, 5, 3)
	job := &JobInstance{Identifier: 1}
	svc := newServiceInstance(template, job, 0)

	require.NoError(t, svc.Start())
	svc.Abort()

	assert.Equal(t, ServiceAborted, svc.State)
	level, _ := pool.Level("cpu")
	assert.Zero(t, level)
}

func TestServiceInstance_AbortIsNoopWhenFinished(t *testing.T) {
	pool := NewResourcePool("pool-a", map[string]float64{"cpu": 4})
	template := newTestTemplate(pool, map[string]float64{"cpu": 2}, 1, 3)
	job := &JobInstance{Identifier: 1}
	svc := newServiceInstance(template, job, 0)

	require.NoError(t, svc.Start())
	svc.Step()
	require.Equal(t, ServiceFinished, svc.State)

	svc.Abort()
	assert.Equal(t, ServiceFinished, svc.State, "abort must not downgrade a finished service")
}

func TestServiceInstance_Identity(t *testing.T) {
	pool := NewResourcePool("pool-a", map[string]float64{"cpu": 4})
	template := newTestTemplate(pool, map[string]float64{"cpu": 1}, 1, 1)
	template.Identifier = "A"
	job := &JobInstance{Identifier: 7}
	svc := newServiceInstance(template, job, 2)

	assert.Equal(t, "7:2:A", svc.Identity())
	assert.Equal(t, 2, svc.StageIndex())
}
