// Package config handles configuration for the onboarding server,
// including defaults, environment variables, JSON overlay, and
// command-line flags.
package config

import "time"

// RateLimit holds the parameters of one limiter class.
type RateLimit struct {
	Window        time.Duration
	MaxAttempts   int
	BlockDuration time.Duration
}

// Config holds runtime settings for the onboarding server.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the public HTTP endpoint.
//   - DatabaseDSN: PostgreSQL DSN (pgx); when empty and RedisAddr is also
//     empty, the server runs on the in-memory store.
//   - RedisAddr: Redis address for the record store; takes precedence over
//     DatabaseDSN when set.
//   - SecretKey: HMAC secret for signing access tokens (HS256). Do not use
//     the default in prod.
//   - AdminToken: shared secret for the administrative reset endpoint;
//     empty disables the endpoint.
//   - BaseURL: public base URL used to render magic links.
//   - AccessTokenValidityDuration: session access-token lifetime.
//   - MagicLinkTTL: magic link token lifetime.
//   - MagicLinkRateLimit / ChatRateLimit: per-class limiter settings.
type Config struct {
	EndpointAddrHTTP string
	DatabaseDSN      string
	RedisAddr        string
	SecretKey        string
	AdminToken       string
	BaseURL          string

	AccessTokenValidityDuration time.Duration
	MagicLinkTTL                time.Duration

	MagicLinkRateLimit RateLimit
	ChatRateLimit      RateLimit
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.DatabaseDSN = ""
	c.RedisAddr = ""
	c.SecretKey = "secretKey"
	c.AdminToken = ""
	c.BaseURL = "http://localhost:8080"
	c.AccessTokenValidityDuration = 1 * time.Hour
	c.MagicLinkTTL = 15 * time.Minute
	c.MagicLinkRateLimit = RateLimit{
		Window:        1 * time.Hour,
		MaxAttempts:   3,
		BlockDuration: 1 * time.Hour,
	}
	c.ChatRateLimit = RateLimit{
		Window:        1 * time.Minute,
		MaxAttempts:   20,
		BlockDuration: 5 * time.Minute,
	}
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from the environment (including an optional .env file), an optional JSON
// file, and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
