// Package config handles configuration for the CueSync client: defaults,
// an optional JSON file and command-line flags, applied in that order.
package config

import "time"

// Config holds runtime settings for the CueSync CLI.
//
// ClientID identifies this installation on the push channel. When empty a
// random id is generated on first start and kept in the local database.
type Config struct {
	ServerEndpointAddr  string
	EventsURL           string
	OnlineCheckInterval time.Duration
	ProbeTimeout        time.Duration
	ReplayTimeout       time.Duration
	DatabasePath        string
	LogFile             string
	LogLevel            string
	ClientID            string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.EventsURL = "ws://127.0.0.1:8080/events"
	c.OnlineCheckInterval = 3 * time.Second
	c.ProbeTimeout = 2 * time.Second
	c.ReplayTimeout = 10 * time.Second
	c.DatabasePath = "cuesync.db"
	c.LogFile = "cuesync-client.log"
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
