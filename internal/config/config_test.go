package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fieldTasks/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// TestLoad тестирует чтение YAML поверх значений по умолчанию
func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
repository:
  type: postgres
database:
  url: postgres://u:p@db:5432/app
auth:
  jwt_secret: 0123456789abcdef
capture:
  location_timeout: 20s
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, ":9090", cfg.GetServerAddr())
	assert.Equal(t, config.RepositoryPostgres, cfg.Repository.Type)
	assert.Equal(t, 20*time.Second, cfg.Capture.LocationTimeout)
	// значения по умолчанию сохраняются
	assert.Equal(t, "completion-photos", cfg.Storage.Bucket)
	assert.Equal(t, 2*time.Hour, cfg.Capture.DraftTTL)
	assert.Equal(t, int32(10), cfg.Database.MaxConnections)
}

// TestLoad_EnvOverrides тестирует переопределение через окружение
func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: 0123456789abcdef
`)
	t.Setenv("FIELDTASKS_SERVER_PORT", "7000")
	t.Setenv("FIELDTASKS_STORAGE_BUCKET", "photos")
	t.Setenv("FIELDTASKS_CAPTURE_DRAFT_TTL", "30m")
	t.Setenv("FIELDTASKS_SERVER_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "photos", cfg.Storage.Bucket)
	assert.Equal(t, 30*time.Minute, cfg.Capture.DraftTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("FIELDTASKS_AUTH_JWT_SECRET", "0123456789abcdef")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, config.RepositoryInMemory, cfg.Repository.Type)
}

// TestValidate тестирует проверку конфигурации
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		errMsg string
	}{
		{name: "success - defaults with secret", mutate: func(*config.Config) {}},
		{
			name:   "postgres without url",
			mutate: func(c *config.Config) { c.Repository.Type = config.RepositoryPostgres },
			errMsg: "database.url",
		},
		{
			name:   "unknown repository",
			mutate: func(c *config.Config) { c.Repository.Type = "sqlite" },
			errMsg: "неизвестный тип репозитория",
		},
		{
			name:   "short secret",
			mutate: func(c *config.Config) { c.Auth.JWTSecret = "short" },
			errMsg: "jwt_secret",
		},
		{
			name:   "empty bucket",
			mutate: func(c *config.Config) { c.Storage.Bucket = "" },
			errMsg: "storage.bucket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Auth.JWTSecret = "0123456789abcdef"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
