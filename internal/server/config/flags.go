package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-e string   environment ("development" or "production")
//	-k string   path to the RSA signing key (PEM)
//	-l string   log level
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-n int      token cache capacity
//	-m int      failed logins allowed per window
//	-w int      brute force window, minutes
//	-b string   brute force backend ("memory" or "redis")
//
// Flags are filtered with flagx.FilterArgs first so unrelated arguments
// (-c, -env-file) do not break parsing. Duration flags are whole minutes and
// only replace the loaded value when given, so a sub-minute duration from
// JSON or the environment survives.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-e", "-k", "-l", "-t", "-r", "-n", "-m", "-w", "-b"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.Environment, "e", config.Environment, "environment")
	fs.StringVar(&config.SigningKeyPath, "k", config.SigningKeyPath, "RSA signing key path")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	accessTokenTTL := fs.Int("t", int(config.AccessTokenTTL.Minutes()), "access token validity (in minutes)")
	refreshTokenTTL := fs.Int("r", int(config.RefreshTokenTTL.Minutes()), "refresh token validity (in minutes)")

	fs.IntVar(&config.CacheCapacity, "n", config.CacheCapacity, "token cache capacity")
	fs.IntVar(&config.BruteForceMaxAttempts, "m", config.BruteForceMaxAttempts, "failed logins allowed per window")
	window := fs.Int("w", int(config.BruteForceWindow.Minutes()), "brute force window (in minutes)")
	fs.StringVar(&config.BruteForceBackend, "b", config.BruteForceBackend, "brute force backend")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenTTL = time.Duration(*accessTokenTTL) * time.Minute
		case "r":
			config.RefreshTokenTTL = time.Duration(*refreshTokenTTL) * time.Minute
		case "w":
			config.BruteForceWindow = time.Duration(*window) * time.Minute
		}
	})
}
