package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 5, cfg.Orchestrator.BatchSize)
	require.Equal(t, 20, cfg.Orchestrator.MaxConcurrentJobs)
	require.Equal(t, 3, cfg.Orchestrator.MaxRetries)
	require.Equal(t, 10*time.Second, cfg.PollInterval())
	require.Equal(t, 10*time.Minute, cfg.JobTimeout())
	require.Equal(t, 2, cfg.Crawler.Concurrency)
	require.Equal(t, "generic-news", cfg.Crawler.DefaultParser)
	require.True(t, cfg.Crawler.RespectRobots)
	require.Equal(t, "memory", cfg.Storage.Backend)
	require.False(t, cfg.Headless.Enabled)
	require.True(t, cfg.Logging.Development)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
orchestrator:
  batch_size: 10
  max_concurrent_jobs: 4
  poll_interval_seconds: 2
  job_timeout_seconds: 120
  max_retries: 1
crawler:
  concurrency: 6
  max_requests: 50
  user_agent: newsgrab-test
  respect_robots: false
  timeout_seconds: 45
  default_parser: microblog
headless:
  enabled: true
  max_parallel: 2
  nav_timeout_seconds: 30
storage:
  backend: gcs
  gcs_bucket: bucket
  prefix: raw
db:
  dsn: postgres://localhost/newsgrab
pubsub:
  project_id: proj
  topic_name: articles
logging:
  development: false
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 10, cfg.Orchestrator.BatchSize)
	require.Equal(t, 2*time.Second, cfg.PollInterval())
	require.Equal(t, 2*time.Minute, cfg.JobTimeout())
	require.Equal(t, "microblog", cfg.Crawler.DefaultParser)
	require.False(t, cfg.Crawler.RespectRobots)
	require.Equal(t, "gcs", cfg.Storage.Backend)
	require.Equal(t, "bucket", cfg.Storage.GCSBucket)
	require.Equal(t, "postgres://localhost/newsgrab", cfg.DB.DSN)
	require.Equal(t, "articles", cfg.PubSub.TopicName)
	require.False(t, cfg.Logging.Development)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Server.Port = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Orchestrator.BatchSize = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Headless.Enabled = true
	cfg.Headless.MaxParallel = 0
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Storage.Backend = "tape"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Storage.Backend = "gcs"
	cfg.Storage.GCSBucket = ""
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Storage.Backend = "local"
	cfg.Storage.LocalDir = ""
	require.Error(t, cfg.Validate())
}

func TestLoadMissingFileFails(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
