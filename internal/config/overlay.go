package config

import "os"

// Environment overlay for credentials only. Everything else belongs in the
// config file; secrets often arrive via the process environment instead
// (systemd EnvironmentFile, CI, .env loaders).
const (
	EnvSourcePassword = "LEADSYNC_SOURCE_PASSWORD"
	EnvCRMToken       = "LEADSYNC_CRM_TOKEN"
)

func OverlayEnv(cfg *Config) {
	if v := os.Getenv(EnvSourcePassword); v != "" {
		cfg.Source.Password = v
	}
	if v := os.Getenv(EnvCRMToken); v != "" {
		cfg.CRM.AccessToken = v
	}
}
