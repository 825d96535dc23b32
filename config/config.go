package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the authorization server.
// Tags use mapstructure for Viper unmarshalling; every key can also be set
// through the environment.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"` // empty disables the redis token cache
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`

	Issuer              string `mapstructure:"ISSUER"`
	AccessTokenTTLMin   int    `mapstructure:"ACCESS_TOKEN_TTL_MIN"`
	RefreshTokenTTLDays int    `mapstructure:"REFRESH_TOKEN_TTL_DAYS"`
	AuthCodeTTLMin      int    `mapstructure:"AUTH_CODE_TTL_MIN"`
	StrictScopes        bool   `mapstructure:"STRICT_SCOPES"`
	BcryptCost          int    `mapstructure:"BCRYPT_COST"`

	// Validator-side settings for deployments that verify against a remote
	// key set instead of the local key manager.
	JWKSURL         string `mapstructure:"JWKS_URL"`
	JWKSCacheTTLMin int    `mapstructure:"JWKS_CACHE_TTL_MIN"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/nexauth-idp/")
	v.AddConfigPath("$HOME/.nexauth-idp")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/nexauth_idp_dev")
	v.SetDefault("MONGO_DB_NAME", "nexauth_idp_dev")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("ISSUER", "oauth-idp")
	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 60)
	v.SetDefault("REFRESH_TOKEN_TTL_DAYS", 7)
	v.SetDefault("AUTH_CODE_TTL_MIN", 10)
	v.SetDefault("STRICT_SCOPES", false)
	v.SetDefault("BCRYPT_COST", 0) // 0 means the bcrypt default cost
	v.SetDefault("JWKS_URL", "")
	v.SetDefault("JWKS_CACHE_TTL_MIN", 5)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
