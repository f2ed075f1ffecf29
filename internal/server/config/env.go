package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables. A .env file
// in the working directory is loaded first, if present; real environment
// variables win over .env entries.
//
// Durations use time.ParseDuration syntax ("15m", "1h30m").
func parseEnv(config *Config) {
	_ = godotenv.Load()

	setString(&config.EndpointAddrHTTP, "HTTP_ADDR")
	setString(&config.DatabaseDSN, "DATABASE_DSN")
	setString(&config.RedisAddr, "REDIS_ADDR")
	setString(&config.SecretKey, "SECRET_KEY")
	setString(&config.AdminToken, "ADMIN_TOKEN")
	setString(&config.BaseURL, "BASE_URL")

	setDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_VALIDITY")
	setDuration(&config.MagicLinkTTL, "MAGIC_LINK_TTL")

	setDuration(&config.MagicLinkRateLimit.Window, "MAGIC_LINK_RL_WINDOW")
	setInt(&config.MagicLinkRateLimit.MaxAttempts, "MAGIC_LINK_RL_MAX_ATTEMPTS")
	setDuration(&config.MagicLinkRateLimit.BlockDuration, "MAGIC_LINK_RL_BLOCK")

	setDuration(&config.ChatRateLimit.Window, "CHAT_RL_WINDOW")
	setInt(&config.ChatRateLimit.MaxAttempts, "CHAT_RL_MAX_ATTEMPTS")
	setDuration(&config.ChatRateLimit.BlockDuration, "CHAT_RL_BLOCK")
}

func setString(dst *string, name string) {
	if v, ok := os.LookupEnv(name); ok {
		*dst = v
	}
}

func setInt(dst *int, name string) {
	if v, ok := os.LookupEnv(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, name string) {
	if v, ok := os.LookupEnv(name); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
