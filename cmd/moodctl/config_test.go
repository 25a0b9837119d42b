package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

const sampleYAML = `
base_url: "https://journal.example.com/api"
mode: "cookie"
timeout: "5s"
log_level: "debug"
store:
  kind: "redis"
  redis_addr: "127.0.0.1:6379"
  profile: "work"
  ttl: "1h"
`

const brokenYAML = `
store:
  kind: [unclosed
`

func TestLoad_WithExplicitPath(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "config.yaml", sampleYAML)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	require.Equal(t, "https://journal.example.com/api", cfg.BaseURL)
	require.Equal(t, "cookie", cfg.Mode)
	require.Equal(t, 5*time.Second, cfg.Timeout)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "redis", cfg.Store.Kind)
	require.Equal(t, "127.0.0.1:6379", cfg.Store.RedisAddr)
	require.Equal(t, "moodctl", cfg.Store.RedisPrefix)
	require.Equal(t, "work", cfg.Store.Profile)
	require.Equal(t, time.Hour, cfg.Store.TTL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "config.yaml", sampleYAML)
	t.Setenv("MOODCTL_MODE", "bearer")

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, "bearer", cfg.Mode)
}

func TestLoad_ConfigEnvPath(t *testing.T) {
	t.Setenv(configEnv, writeFile(t, t.TempDir(), "env.yaml", sampleYAML))

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "work", cfg.Store.Profile)
}

func TestLoad_LocalFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, defaultFile, "base_url: \"http://local:9000/api\"\n")
	chdir(t, dir)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "http://local:9000/api", cfg.BaseURL)
	require.Equal(t, "file", cfg.Store.Kind)
}

func TestLoad_EnvOnlyDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/api", cfg.BaseURL)
	require.Equal(t, "bearer", cfg.Mode)
	require.Equal(t, 30*time.Second, cfg.Timeout)
	require.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeFile(t, dir, "broken.yaml", brokenYAML))
	require.Error(t, err)

	_, err = Load(writeFile(t, dir, "mode.yaml", "mode: \"basic\"\n"))
	require.ErrorContains(t, err, "mode")

	_, err = Load(writeFile(t, dir, "redis.yaml", "store:\n  kind: \"redis\"\n"))
	require.ErrorContains(t, err, "redis_addr")
}

func TestCredentialsPath(t *testing.T) {
	cfg := Config{Store: StoreConfig{Path: "/tmp/x.cred"}}
	p, err := cfg.credentialsPath()
	require.NoError(t, err)
	require.Equal(t, "/tmp/x.cred", p)
}
