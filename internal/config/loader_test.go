package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalYAML = `
database:
  host: localhost
  dbname: psicorisco
`

func TestLoad(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9000
  mode: debug
database:
  host: db.internal
  dbname: psicorisco
  password: secret
worker:
  concurrency: 5
  poll_interval: 2s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5, cfg.Worker.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Worker.PollInterval)
	// defaults still fill unset sections
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Worker.MaxRetries)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	path := writeConfigFile(t, `
server:
  mode: production
database:
  host: localhost
  dbname: psicorisco
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.mode")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PSICORISCO_DATABASE_PASSWORD", "from-env")
	t.Setenv("PSICORISCO_SERVER_PORT", "7001")

	cfg, err := Load(writeConfigFile(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, 7001, cfg.Server.Port)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PSICORISCO_DATABASE_HOST", "envhost")
	t.Setenv("PSICORISCO_DATABASE_DBNAME", "envdb")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "envhost", cfg.Database.Host)
	assert.Equal(t, "envdb", cfg.Database.DBName)
}

func TestMustLoad_PanicsOnError(t *testing.T) {
	assert.Panics(t, func() { MustLoad("/nonexistent/config.yaml") })
}

func TestWatch_RequiresPath(t *testing.T) {
	err := Watch("", func(*Config) {}, nil)
	assert.Error(t, err)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := writeConfigFile(t, minimalYAML)

	changed := make(chan *Config, 1)
	require.NoError(t, Watch(path, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	}, nil))

	require.NoError(t, os.WriteFile(path, []byte(minimalYAML+`
worker:
  concurrency: 7
`), 0o644))

	select {
	case cfg := <-changed:
		assert.Equal(t, 7, cfg.Worker.Concurrency)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not observed")
	}
}
