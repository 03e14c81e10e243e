package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(yaml), 0o644))
	return dir
}

func TestInitializeDefaultsWhenNoFile(t *testing.T) {
	cfg, err := Initialize(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Engine.LLM.Provider)
	assert.Equal(t, "TRANSACTIONS_ENRICHED", cfg.Engine.Warehouse.TransactionsTable)
	assert.Equal(t, 500, cfg.Engine.Warehouse.ResultLimit)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Engine.Queue.WorkerCount)
	assert.Equal(t, 10*time.Minute, cfg.Deploy.PhaseTimeout)
	assert.Equal(t, LiveLimits(), cfg.Limits)
}

func TestInitializeMergesUserOverDefaults(t *testing.T) {
	dir := writeConfig(t, `
engine:
  test_mode: true
  llm:
    provider: mock
server:
  port: 9191
`)
	cfg, err := Initialize(dir)
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.Engine.LLM.Provider)
	assert.Equal(t, 9191, cfg.Server.Port)
	// Untouched defaults survive the merge.
	assert.Equal(t, 4096, cfg.Engine.LLM.MaxTokens)
	assert.Equal(t, "TRANSACTIONS_ENRICHED", cfg.Engine.Warehouse.TransactionsTable)
	// test_mode resolves the tightened policy.
	assert.Equal(t, TestLimits(), cfg.Limits)
	assert.Equal(t, 45, cfg.Limits.OrchestratorCalls)
}

func TestInitializeExpandsEnvironment(t *testing.T) {
	t.Setenv("INQUEST_TEST_TX_TABLE", "TX_SANDBOX")
	dir := writeConfig(t, `
engine:
  llm:
    provider: mock
  warehouse:
    transactions_table: ${INQUEST_TEST_TX_TABLE}
    result_limit: ${INQUEST_TEST_TX_LIMIT:-250}
`)
	cfg, err := Initialize(dir)
	require.NoError(t, err)

	assert.Equal(t, "TX_SANDBOX", cfg.Engine.Warehouse.TransactionsTable)
	assert.Equal(t, 250, cfg.Engine.Warehouse.ResultLimit)
}

func TestInitializeMissingEnvFails(t *testing.T) {
	dir := writeConfig(t, "engine:\n  llm:\n    model: ${INQUEST_TEST_NO_SUCH_MODEL}\n")

	_, err := Initialize(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INQUEST_TEST_NO_SUCH_MODEL")
}

func TestInitializeRejectsInvalidYAML(t *testing.T) {
	dir := writeConfig(t, "engine: [not a mapping")

	_, err := Initialize(dir)
	assert.Error(t, err)
}

func TestInitializeValidates(t *testing.T) {
	dir := writeConfig(t, `
engine:
  llm:
    provider: openai
`)
	_, err := Initialize(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestValidateDeployGraphReferences(t *testing.T) {
	cfg := defaults()
	cfg.Deploy.Services = []ServiceConfig{
		{Name: "api", DependsOn: []string{"db"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown service")

	cfg.Deploy.Services = []ServiceConfig{
		{Name: "db"},
		{Name: "db"},
	}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestDeployConfigServiceLookup(t *testing.T) {
	d := DeployConfig{Services: []ServiceConfig{{Name: "db", HealthURL: "http://db/health"}}}

	svc, ok := d.Service("db")
	require.True(t, ok)
	assert.Equal(t, "http://db/health", svc.HealthURL)

	_, ok = d.Service("cache")
	assert.False(t, ok)
}
