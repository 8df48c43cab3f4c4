package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		DataDir       string `yaml:"data_dir"`
		DefaultRegion string `yaml:"default_region"` // phone parsing region, e.g. "US"
	} `yaml:"app"`

	Source struct {
		BaseURL   string `yaml:"base_url"`
		Username  string `yaml:"username"`
		Password  string `yaml:"password"` // optional: env or keychain fallback
		PageLimit int    `yaml:"page_limit"`
	} `yaml:"source"`

	CRM struct {
		BaseURL     string `yaml:"base_url"`
		AccessToken string `yaml:"access_token"` // optional: env or keychain fallback
		LocationID  string `yaml:"location_id"`
		APIVersion  string `yaml:"api_version"`
	} `yaml:"crm"`

	Sync struct {
		IntervalMinutes   int     `yaml:"interval_minutes"`
		BatchSize         int     `yaml:"batch_size"`
		MaxRetries        int     `yaml:"max_retries"`
		RetryDelayMinutes int     `yaml:"retry_delay_minutes"`
		DeliveryPerSecond float64 `yaml:"delivery_per_second"`
	} `yaml:"sync"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.Sync.IntervalMinutes) * time.Minute
}

func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Sync.RetryDelayMinutes) * time.Minute
}
