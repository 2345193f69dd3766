package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoDB.URI)
	assert.Equal(t, "media_queue", cfg.MongoDB.Database)
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URI)
	assert.Equal(t, 3000, cfg.API.Port)
	assert.Equal(t, 8080, cfg.Monitor.Port)
	assert.Equal(t, "output", cfg.Worker.OutputDir)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
mongodb:
  uri: "mongodb://db:27017"
  database: "media_test"
redis:
  uri: "redis://cache:6379"
api:
  port: 9000
worker:
  output_dir: "/var/media/out"
  worker_id: "worker-7"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db:27017", cfg.MongoDB.URI)
	assert.Equal(t, "media_test", cfg.MongoDB.Database)
	assert.Equal(t, "redis://cache:6379", cfg.Redis.URI)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, "/var/media/out", cfg.Worker.OutputDir)
	assert.Equal(t, "worker-7", cfg.Worker.WorkerID)

	// Unset fields still get defaults
	assert.Equal(t, "0.0.0.0", cfg.API.Host)
	assert.Equal(t, 8080, cfg.Monitor.Port)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mongodb: ["), 0o644))

	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestBuildCLICommands(t *testing.T) {
	root := BuildCLI()

	expected := []string{"api", "worker", "monitor", "submit", "status"}
	for _, name := range expected {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
