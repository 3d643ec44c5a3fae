package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/flagx"
)

// parseFlags overlays command-line flags onto config:
//
//	-a string   gRPC bind address
//	-w string   HTTP bind address for the push channel
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret
//	-t int      access token validity, minutes
//	-u/-p       S3 user / password
//	-b/-g/-e    S3 bucket / region / base endpoint
//	-i int      backup interval, minutes (0 disables)
//	-k string   hex AES key for backup encryption
//	-l string   log level
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-w", "-d", "-s", "-t", "-u", "-p", "-b", "-g", "-e", "-i", "-k", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.EndpointAddrHTTP, "w", config.EndpointAddrHTTP, "push channel address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	tokenMinutes := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	backupMinutes := fs.Int("i", int(config.BackupInterval.Minutes()), "backup interval (in minutes, 0 disables)")
	fs.StringVar(&config.BackupKey, "k", config.BackupKey, "backup encryption key (hex)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*tokenMinutes) * time.Minute
	config.BackupInterval = time.Duration(*backupMinutes) * time.Minute
}
