package config

import (
	"flag"
	"time"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/flagx"
)

// parseFlags overlays cfg with command-line flags found in args.
//
//	-u string   backend base URL
//	-k string   anon (publishable) API key
//	-d string   local database path
//	-i int      online check interval in seconds
//
// Unknown flags are filtered out first with flagx.FilterArgs. Invalid values
// panic, matching parseJson.
func parseFlags(cfg *Config, args []string) {
	filtered := flagx.FilterArgs(args, []string{"-u", "-k", "-d", "-i"})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.StringVar(&cfg.BackendURL, "u", cfg.BackendURL, "backend base URL")
	fs.StringVar(&cfg.AnonKey, "k", cfg.AnonKey, "anon API key")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	interval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(filtered); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*interval) * time.Second
}
