// Package config loads pipes-service's runtime configuration, adapted from
// the VAULT_ADDR/VAULT_TOKEN/VAULT_SECRET_PATH env-var pattern common to
// every arc-self service's main.go, but read through viper rather than
// os.Getenv so defaults, env binding, and (if ever needed) a config file all
// go through one path.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is every knob pipes-service's main() needs before it can start
// listening. Secrets (NATS_URL, etc.) are not modeled here: they come from
// Vault via pkg/config.SecretManager, not the environment.
type Config struct {
	HTTPAddr         string
	LogLevel         string
	VaultAddr        string
	VaultToken       string
	VaultSecretPath  string
	OTelEndpoint     string
	PollInterval     time.Duration
}

// Load reads configuration from the environment, applying the same defaults
// every arc-self service main.go hardcodes inline.
func Load() *Config {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("VAULT_ADDR", "http://localhost:8200")
	v.SetDefault("VAULT_TOKEN", "root")
	v.SetDefault("VAULT_SECRET_PATH", "secret/data/arc/pipes-service")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("PIPES_POLL_INTERVAL_SEC", 1)

	return &Config{
		HTTPAddr:        v.GetString("HTTP_ADDR"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		VaultAddr:       v.GetString("VAULT_ADDR"),
		VaultToken:      v.GetString("VAULT_TOKEN"),
		VaultSecretPath: v.GetString("VAULT_SECRET_PATH"),
		OTelEndpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		PollInterval:    time.Duration(v.GetFloat64("PIPES_POLL_INTERVAL_SEC") * float64(time.Second)),
	}
}
