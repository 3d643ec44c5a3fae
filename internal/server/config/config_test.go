package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = append([]string{"cuesync-server"}, args...)
}

func writeJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Equal(t, 5*time.Minute, c.PresenceTTL)
	assert.Equal(t, 15*time.Minute, c.AccessTokenValidityDuration)
	assert.Zero(t, c.BackupInterval)
}

func TestParseFlags(t *testing.T) {
	setArgs(t,
		"-a", "127.0.0.1:9090", "-w", ":9091", "-d", "db", "-s", "secret", "-t", "5",
		"-u", "user", "-p", "password", "-b", "bucket", "-g", "eu-west-1", "-e", "http://minio",
		"-i", "60", "-k", "abcd", "-l", "debug", "-x", "ignored",
	)

	cfg := &Config{}
	require.NotPanics(t, func() { parseFlags(cfg) })

	want := &Config{
		EndpointAddrGRPC:            "127.0.0.1:9090",
		EndpointAddrHTTP:            ":9091",
		DatabaseDSN:                 "db",
		SecretKey:                   "secret",
		AccessTokenValidityDuration: 5 * time.Minute,
		S3RootUser:                  "user",
		S3RootPassword:              "password",
		S3Bucket:                    "bucket",
		S3Region:                    "eu-west-1",
		S3BaseEndpoint:              "http://minio",
		BackupInterval:              time.Hour,
		BackupKey:                   "abcd",
		LogLevel:                    "debug",
	}
	assert.Empty(t, cmp.Diff(want, cfg))
}

func TestParseFlags_BadValuePanics(t *testing.T) {
	setArgs(t, "-t", "soon")
	require.Panics(t, func() { parseFlags(&Config{}) })
}

func TestParseJson_OverlaysOnlyPresentKeys(t *testing.T) {
	path := writeJSON(t, map[string]any{
		"endpoint_addr_grpc": "grpc.local:9000",
		"presence_ttl":       "2m",
		"backup_interval":    "1h",
	})
	setArgs(t, "-c", path)

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, "grpc.local:9000", cfg.EndpointAddrGRPC)
	assert.Equal(t, 2*time.Minute, cfg.PresenceTTL)
	assert.Equal(t, time.Hour, cfg.BackupInterval)
	assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenValidityDuration)
}

func TestParseJson_NoFile(t *testing.T) {
	setArgs(t)
	cfg := &Config{}
	parseJson(cfg)
	assert.Equal(t, &Config{}, cfg)
}

func TestParseJson_Panics(t *testing.T) {
	setArgs(t, "-c", filepath.Join(t.TempDir(), "missing.json"))
	require.Panics(t, func() { parseJson(&Config{}) })

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	setArgs(t, "-config", bad)
	require.Panics(t, func() { parseJson(&Config{}) })
}

func TestLoadConfig_FlagsWinOverJSON(t *testing.T) {
	path := writeJSON(t, map[string]any{"secret_key": "from-json", "database_dsn": "json-dsn"})
	setArgs(t, "-c", path, "-s", "from-flag")

	cfg := LoadConfig()
	assert.Equal(t, "from-flag", cfg.SecretKey)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN)
}
