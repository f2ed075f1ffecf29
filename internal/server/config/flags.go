package config

import (
	"flag"
	"os"

	"github.com/mkorchagin/onboardchat/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-r string   Redis address (e.g., "localhost:6379")
//	-s string   JWT HMAC secret key
//	-b string   public base URL for magic links
//
// Rate-limit and TTL tuning is env/JSON-only; the flag surface stays small
// on purpose. Args are first filtered through flagx.FilterArgs so this
// parser never sees flags owned by other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-r", "-s", "-b"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.BaseURL, "b", config.BaseURL, "public base URL")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
