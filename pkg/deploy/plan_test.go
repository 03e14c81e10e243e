package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsure-ai/inquest/pkg/config"
)

func svc(name string, deps ...string) config.ServiceConfig {
	return config.ServiceConfig{Name: name, DependsOn: deps}
}

func TestPlanLayersByDependency(t *testing.T) {
	phases, err := Plan([]config.ServiceConfig{
		svc("api", "db", "cache"),
		svc("worker", "db"),
		svc("db"),
		svc("cache"),
		svc("gateway", "api"),
	})
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"cache", "db"},
		{"api", "worker"},
		{"gateway"},
	}, phases)
}

func TestPlanEmpty(t *testing.T) {
	phases, err := Plan(nil)
	require.NoError(t, err)
	assert.Empty(t, phases)
}

func TestPlanIndependentServicesShareOnePhase(t *testing.T) {
	phases, err := Plan([]config.ServiceConfig{svc("b"), svc("a"), svc("c")})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b", "c"}}, phases)
}

func TestPlanDetectsCycle(t *testing.T) {
	_, err := Plan([]config.ServiceConfig{
		svc("a", "b"),
		svc("b", "a"),
		svc("root"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDependencyCycle)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
}

func TestPlanSelfDependencyIsCycle(t *testing.T) {
	_, err := Plan([]config.ServiceConfig{svc("a", "a")})
	assert.ErrorIs(t, err, ErrDependencyCycle)
}

func TestPlanUnknownDependency(t *testing.T) {
	_, err := Plan([]config.ServiceConfig{svc("api", "db")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownDependency)
	assert.NotErrorIs(t, err, ErrDependencyCycle)
	assert.Contains(t, err.Error(), "api depends on db")
}
