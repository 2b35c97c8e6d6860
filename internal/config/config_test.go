package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/rota/pkg/errors"
	"github.com/paiban/rota/pkg/scheduler/objective"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rota.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, 25*time.Second, cfg.Solver.TimeLimit)
	assert.Equal(t, "lexicographic", cfg.Solver.Strategy)
	assert.Equal(t, 2, cfg.Solver.MaxConsecutiveDays)
	assert.Equal(t, 1000, cfg.Solver.UnavailableThreshold)
	assert.Equal(t, 1, cfg.Solver.Top3Guarantee)
	assert.True(t, cfg.Solver.ForbidUnavailable)
	assert.Equal(t, 4, cfg.Solver.MaxBackgroundSolves)
	assert.False(t, cfg.Database.Enabled)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFile_YAMLThenEnv(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 8080
solver:
  time_limit: 10s
  strategy: weighted
  max_consecutive_days: 3
api:
  api_keys: [k1, k2]
`)
	t.Setenv("SOLVER_MAX_CONSECUTIVE_DAYS", "4")
	t.Setenv("SOLVER_MAX_BACKGROUND_SOLVES", "0")
	t.Setenv("API_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, 10*time.Second, cfg.Solver.TimeLimit)
	assert.Equal(t, "weighted", cfg.Solver.Strategy)
	// 环境变量优先于文件
	assert.Equal(t, 4, cfg.Solver.MaxConsecutiveDays)
	assert.Equal(t, 0, cfg.Solver.MaxBackgroundSolves)
	assert.Equal(t, []string{"k1", "k2"}, cfg.API.APIKeys)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.CORS.Origins)
	// 文件中没有的字段保持默认
	assert.Equal(t, 1000, cfg.Solver.UnavailableThreshold)

	opts := cfg.SchedulerOptions()
	assert.Equal(t, objective.StrategyWeighted, opts.Strategy)
	assert.Equal(t, 4, opts.MaxConsecutiveDays)
	assert.Equal(t, 10*time.Second, opts.TimeLimit)
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.Code
	}{
		{"语法错误", "solver: [", errors.CodeInvalidInput},
		{"未知策略", "solver:\n  strategy: greedy\n", errors.CodeValidationFail},
		{"连续天数为零", "solver:\n  max_consecutive_days: 0\n", errors.CodeValidationFail},
		{"并发数为零", "solver:\n  batch_workers: 0\n", errors.CodeValidationFail},
		{"后台搜索上限为负", "solver:\n  max_background_solves: -1\n", errors.CodeValidationFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.content))
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_UsesEnvPath(t *testing.T) {
	t.Setenv("ROTA_CONFIG", writeConfig(t, "app:\n  env: production\n"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "host=localhost port=5432 user=rota password=rota123 dbname=rota sslmode=disable", cfg.Database.DSN())
}
