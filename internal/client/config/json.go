package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cuesync/internal/flagx"
	"github.com/dmitrijs2005/cuesync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds.
type JsonConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr"`
	EventsURL           string         `json:"events_url"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	ProbeTimeout        timex.Duration `json:"probe_timeout"`
	ReplayTimeout       timex.Duration `json:"replay_timeout"`
	DatabasePath        string         `json:"database_path"`
	LogFile             string         `json:"log_file"`
	LogLevel            string         `json:"log_level"`
	ClientID            string         `json:"client_id"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c/-config. Keys missing from the file keep their current values.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	jc := JsonConfig{
		ServerEndpointAddr:  cfg.ServerEndpointAddr,
		EventsURL:           cfg.EventsURL,
		OnlineCheckInterval: timex.Duration{Duration: cfg.OnlineCheckInterval},
		ProbeTimeout:        timex.Duration{Duration: cfg.ProbeTimeout},
		ReplayTimeout:       timex.Duration{Duration: cfg.ReplayTimeout},
		DatabasePath:        cfg.DatabasePath,
		LogFile:             cfg.LogFile,
		LogLevel:            cfg.LogLevel,
		ClientID:            cfg.ClientID,
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	cfg.EventsURL = jc.EventsURL
	cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	cfg.ProbeTimeout = jc.ProbeTimeout.Duration
	cfg.ReplayTimeout = jc.ReplayTimeout.Duration
	cfg.DatabasePath = jc.DatabasePath
	cfg.LogFile = jc.LogFile
	cfg.LogLevel = jc.LogLevel
	cfg.ClientID = jc.ClientID
}
