package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/uploads", cfg.Media.PublicPrefix)
	assert.Equal(t, int64(50<<20), cfg.Media.MaxLocalSize)
	assert.Equal(t, 5*time.Second, cfg.Refresh.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Refresh.RoundTimeout)
	assert.Equal(t, 10, cfg.Media.AwaitAttempts)
	assert.Equal(t, 2*time.Second, cfg.Media.AwaitInterval)
	assert.False(t, cfg.MinIO.Enabled)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
database:
  driver: sqlite
  path: ":memory:"
media:
  upload_root: /srv/uploads
video:
  webhook_secret: from-file
`), 0o644))

	t.Setenv("MEDIA_VIDEO_WEBHOOK_SECRET", "from-env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/srv/uploads", cfg.Media.UploadRoot)
	assert.Equal(t, "from-env", cfg.Video.WebhookSecret)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadMedia(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	cfg.Media.PublicPrefix = "uploads"
	assert.Error(t, cfg.Validate())
}
