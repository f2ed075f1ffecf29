package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/mkorchagin/onboardchat/internal/flagx"
	"github.com/mkorchagin/onboardchat/internal/timex"
)

// JsonConfig is the intermediate DTO for the optional JSON config file.
// Interval fields use timex.Duration so JSON can carry either duration
// strings ("15m") or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP string `json:"endpoint_addr_http"`
	DatabaseDSN      string `json:"database_dsn"`
	RedisAddr        string `json:"redis_addr"`
	SecretKey        string `json:"secret_key"`
	AdminToken       string `json:"admin_token"`
	BaseURL          string `json:"base_url"`

	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	MagicLinkTTL                timex.Duration `json:"magic_link_ttl"`

	MagicLinkRateLimit JsonRateLimit `json:"magic_link_rate_limit"`
	ChatRateLimit      JsonRateLimit `json:"chat_rate_limit"`
}

type JsonRateLimit struct {
	Window        timex.Duration `json:"window"`
	MaxAttempts   int            `json:"max_attempts"`
	BlockDuration timex.Duration `json:"block_duration"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c/-config command-line
// flags; when neither is set, no JSON file is loaded. An unreadable or
// invalid file panics: a half-applied config is worse than a refusal to
// start.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddrHTTP != "" {
		config.EndpointAddrHTTP = c.EndpointAddrHTTP
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.RedisAddr != "" {
		config.RedisAddr = c.RedisAddr
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.AdminToken != "" {
		config.AdminToken = c.AdminToken
	}
	if c.BaseURL != "" {
		config.BaseURL = c.BaseURL
	}
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	}
	if c.MagicLinkTTL.Duration != 0 {
		config.MagicLinkTTL = time.Duration(c.MagicLinkTTL.Duration)
	}

	applyJsonRateLimit(&config.MagicLinkRateLimit, c.MagicLinkRateLimit)
	applyJsonRateLimit(&config.ChatRateLimit, c.ChatRateLimit)
}

func applyJsonRateLimit(dst *RateLimit, src JsonRateLimit) {
	if src.Window.Duration != 0 {
		dst.Window = src.Window.Duration
	}
	if src.MaxAttempts != 0 {
		dst.MaxAttempts = src.MaxAttempts
	}
	if src.BlockDuration.Duration != 0 {
		dst.BlockDuration = src.BlockDuration.Duration
	}
}
