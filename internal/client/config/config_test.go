package config

import (
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
	os.Args = append([]string{"cuesync"}, args...)
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "127.0.0.1:50051", c.ServerEndpointAddr)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, 10*time.Second, c.ReplayTimeout)
	assert.Empty(t, c.ClientID)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	setArgs(t)
	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "127.0.0.1:50051", cfg.ServerEndpointAddr)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
}

func TestParseFlags(t *testing.T) {
	setArgs(t, "-a", "srv:1", "-e", "ws://srv/events", "-i", "7", "-o", "1", "-r", "4",
		"-d", "x.db", "-f", "x.log", "-l", "debug", "-n", "laptop", "-z", "skip")

	cfg := &Config{}
	require.NotPanics(t, func() { parseFlags(cfg) })

	want := &Config{
		ServerEndpointAddr:  "srv:1",
		EventsURL:           "ws://srv/events",
		OnlineCheckInterval: 7 * time.Second,
		ProbeTimeout:        time.Second,
		ReplayTimeout:       4 * time.Second,
		DatabasePath:        "x.db",
		LogFile:             "x.log",
		LogLevel:            "debug",
		ClientID:            "laptop",
	}
	assert.Empty(t, cmp.Diff(want, cfg))
}

func TestParseFlags_InvalidValuePanics(t *testing.T) {
	setArgs(t, "-i", "often")
	assert.Panics(t, func() { parseFlags(&Config{}) })
}

func TestParseJson_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server_endpoint_addr":"10.0.0.2:50051","replay_timeout":"30s"}`), 0o600))
	setArgs(t, "-c", path)

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, "10.0.0.2:50051", cfg.ServerEndpointAddr)
	assert.Equal(t, 30*time.Second, cfg.ReplayTimeout)
	assert.Equal(t, "cuesync.db", cfg.DatabasePath)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
}

func TestParseJson_BadFilePanics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))
	setArgs(t, "-config", path)
	assert.Panics(t, func() { parseJson(&Config{}) })
}
