package config

import (
	"strings"
	"testing"
)

func minimalValid() Config {
	var cfg Config
	cfg.Source.BaseURL = "https://leads.example.com"
	cfg.Source.Username = "sync-bot"
	cfg.CRM.LocationID = "loc_123"
	return cfg
}

func TestNormalizeFillsDefaults(t *testing.T) {
	out, res := NormalizeAndValidate(minimalValid())
	if !res.OK() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}

	if out.App.DefaultRegion != "US" {
		t.Errorf("default_region = %q, want US", out.App.DefaultRegion)
	}
	if out.Source.PageLimit != 500 {
		t.Errorf("page_limit = %d, want 500", out.Source.PageLimit)
	}
	if out.CRM.BaseURL != "https://rest.gohighlevel.com/v1" {
		t.Errorf("crm base_url = %q", out.CRM.BaseURL)
	}
	if out.Sync.IntervalMinutes != 10 || out.Sync.BatchSize != 10 ||
		out.Sync.MaxRetries != 3 || out.Sync.RetryDelayMinutes != 30 {
		t.Errorf("sync defaults = %+v", out.Sync)
	}
	if out.Sync.DeliveryPerSecond != 2 {
		t.Errorf("delivery_per_second = %g, want 2", out.Sync.DeliveryPerSecond)
	}
}

func TestValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing source url", func(c *Config) { c.Source.BaseURL = "" }, "source.base_url"},
		{"relative source url", func(c *Config) { c.Source.BaseURL = "leads.example.com" }, "full URL"},
		{"missing username", func(c *Config) { c.Source.Username = " " }, "source.username"},
		{"missing location", func(c *Config) { c.CRM.LocationID = "" }, "crm.location_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := minimalValid()
			tt.mutate(&cfg)
			_, res := NormalizeAndValidate(cfg)
			if res.OK() {
				t.Fatal("expected a validation error")
			}
			found := false
			for _, e := range res.Errors {
				if strings.Contains(e, tt.wantErr) {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not mention %q", res.Errors, tt.wantErr)
			}
		})
	}
}

func TestValidateWarnsOnAggressiveSettings(t *testing.T) {
	cfg := minimalValid()
	cfg.Sync.IntervalMinutes = 1
	cfg.Sync.DeliveryPerSecond = 10

	_, res := NormalizeAndValidate(cfg)
	if !res.OK() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if len(res.Warnings) != 2 {
		t.Errorf("warnings = %v, want interval and rate warnings", res.Warnings)
	}
}

func TestNormalizeTrimsTrailingSlash(t *testing.T) {
	cfg := minimalValid()
	cfg.Source.BaseURL = "https://leads.example.com/"
	cfg.CRM.BaseURL = "https://api.example.com/v1/"

	out, _ := NormalizeAndValidate(cfg)
	if out.Source.BaseURL != "https://leads.example.com" {
		t.Errorf("source base_url = %q", out.Source.BaseURL)
	}
	if out.CRM.BaseURL != "https://api.example.com/v1" {
		t.Errorf("crm base_url = %q", out.CRM.BaseURL)
	}
}
