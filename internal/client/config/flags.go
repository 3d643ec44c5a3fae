package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/cuesync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   address and port of the gRPC server
//	-e string   push channel URL
//	-i int      online check interval in seconds
//	-o int      probe timeout in seconds
//	-r int      per-call replay timeout in seconds
//	-d string   local database file
//	-f string   log file
//	-l string   log level
//	-n string   client id
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-e", "-i", "-o", "-r", "-d", "-f", "-l", "-n"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.EventsURL, "e", cfg.EventsURL, "push channel URL")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	probeTimeout := fs.Int("o", int(cfg.ProbeTimeout.Seconds()), "probe timeout (in seconds)")
	replayTimeout := fs.Int("r", int(cfg.ReplayTimeout.Seconds()), "replay call timeout (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database file")
	fs.StringVar(&cfg.LogFile, "f", cfg.LogFile, "log file")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.ClientID, "n", cfg.ClientID, "client id")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.ProbeTimeout = time.Duration(*probeTimeout) * time.Second
	cfg.ReplayTimeout = time.Duration(*replayTimeout) * time.Second
}
