package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskpilot/internal/config"
)

func TestPoolConfig(t *testing.T) {
	cfg, err := PoolConfig(config.DatabaseConfig{
		URL:             "postgres://u:p@db:5432/tasks?sslmode=disable",
		MaxOpenConns:    8,
		MaxIdleConns:    20,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 10 * time.Minute,
		HealthCheck:     30 * time.Second,
		ConnectTimeout:  3 * time.Second,
		ApplicationName: "taskpilot-test",
	})
	require.NoError(t, err)

	assert.Equal(t, int32(8), cfg.MaxConns)
	assert.Equal(t, int32(8), cfg.MinConns)
	assert.Equal(t, time.Hour, cfg.MaxConnLifetime)
	assert.Equal(t, 10*time.Minute, cfg.MaxConnIdleTime)
	assert.Equal(t, 30*time.Second, cfg.HealthCheckPeriod)
	assert.Equal(t, 3*time.Second, cfg.ConnConfig.ConnectTimeout)
	assert.Equal(t, "db", cfg.ConnConfig.Host)
	assert.Equal(t, "tasks", cfg.ConnConfig.Database)
	assert.Equal(t, "taskpilot-test", cfg.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "UTC", cfg.ConnConfig.RuntimeParams["timezone"])
}

func TestPoolConfigKeepsExplicitTimezone(t *testing.T) {
	cfg, err := PoolConfig(config.DatabaseConfig{
		URL: "postgres://u:p@db:5432/tasks?timezone=Europe/Berlin",
	})
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", cfg.ConnConfig.RuntimeParams["timezone"])
	assert.Empty(t, cfg.ConnConfig.RuntimeParams["application_name"])
}

func TestPoolConfigRejectsBadURL(t *testing.T) {
	_, err := PoolConfig(config.DatabaseConfig{URL: "postgres://u:p@db:notaport/tasks"})
	assert.Error(t, err)
}
