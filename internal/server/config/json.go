package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/cuesync/internal/flagx"
	"github.com/dmitrijs2005/cuesync/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Durations accept
// strings such as "30s" or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	PresenceTTL                 timex.Duration `json:"presence_ttl"`
	PresenceSweepInterval       timex.Duration `json:"presence_sweep_interval"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	BackupInterval              timex.Duration `json:"backup_interval"`
	BackupKey                   string         `json:"backup_key"`
	LogLevel                    string         `json:"log_level"`
}

// parseJson overlays the file named by -c/-config onto config. Keys absent
// from the file keep their current values. An unreadable or malformed
// file panics.
func parseJson(config *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{
		EndpointAddrGRPC:            config.EndpointAddrGRPC,
		EndpointAddrHTTP:            config.EndpointAddrHTTP,
		DatabaseDSN:                 config.DatabaseDSN,
		SecretKey:                   config.SecretKey,
		AccessTokenValidityDuration: timex.Duration{Duration: config.AccessTokenValidityDuration},
		PresenceTTL:                 timex.Duration{Duration: config.PresenceTTL},
		PresenceSweepInterval:       timex.Duration{Duration: config.PresenceSweepInterval},
		S3RootUser:                  config.S3RootUser,
		S3RootPassword:              config.S3RootPassword,
		S3Bucket:                    config.S3Bucket,
		S3Region:                    config.S3Region,
		S3BaseEndpoint:              config.S3BaseEndpoint,
		BackupInterval:              timex.Duration{Duration: config.BackupInterval},
		BackupKey:                   config.BackupKey,
		LogLevel:                    config.LogLevel,
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.PresenceTTL = c.PresenceTTL.Duration
	config.PresenceSweepInterval = c.PresenceSweepInterval.Duration
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.BackupInterval = c.BackupInterval.Duration
	config.BackupKey = c.BackupKey
	config.LogLevel = c.LogLevel
}
