package config

import (
	"fmt"
	"net/url"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate fills defaults and returns a normalized copy plus
// everything wrong with it. Missing required values are startup errors, not
// per-cycle ones; credentials are checked later, after the env/keychain
// fallbacks have had their chance (see ResolveCredentials).
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	// ---- Defaults ----

	if strings.TrimSpace(out.App.DataDir) == "" {
		out.App.DataDir = "."
	}
	if strings.TrimSpace(out.App.DefaultRegion) == "" {
		out.App.DefaultRegion = "US"
	}
	out.Source.BaseURL = strings.TrimRight(strings.TrimSpace(out.Source.BaseURL), "/")
	if out.Source.PageLimit <= 0 {
		out.Source.PageLimit = 500
	}
	out.CRM.BaseURL = strings.TrimRight(strings.TrimSpace(out.CRM.BaseURL), "/")
	if out.CRM.BaseURL == "" {
		out.CRM.BaseURL = "https://rest.gohighlevel.com/v1"
	}
	if strings.TrimSpace(out.CRM.APIVersion) == "" {
		out.CRM.APIVersion = "2021-07-28"
	}
	if out.Sync.IntervalMinutes <= 0 {
		out.Sync.IntervalMinutes = 10
	}
	if out.Sync.BatchSize <= 0 {
		out.Sync.BatchSize = 10
	}
	if out.Sync.MaxRetries <= 0 {
		out.Sync.MaxRetries = 3
	}
	if out.Sync.RetryDelayMinutes <= 0 {
		out.Sync.RetryDelayMinutes = 30
	}
	if out.Sync.DeliveryPerSecond <= 0 {
		out.Sync.DeliveryPerSecond = 2 // ~0.5s between CRM calls
	}

	// ---- Validation rules ----

	if out.Source.BaseURL == "" {
		res.addErr("source.base_url is required")
	} else if u, err := url.Parse(out.Source.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		res.addErr("source.base_url must be a full URL (got %q)", out.Source.BaseURL)
	}
	if strings.TrimSpace(out.Source.Username) == "" {
		res.addErr("source.username is required")
	}

	if strings.TrimSpace(out.CRM.LocationID) == "" {
		res.addErr("crm.location_id is required")
	}

	if out.Sync.IntervalMinutes < 2 {
		res.addWarn("sync.interval_minutes is very low (%d); the source may rate-limit you.", out.Sync.IntervalMinutes)
	}
	if out.Sync.BatchSize > 200 {
		res.addWarn("sync.batch_size is %d; large batches make a cycle slow to cancel.", out.Sync.BatchSize)
	}
	if out.Sync.DeliveryPerSecond > 5 {
		res.addWarn("sync.delivery_per_second is %g; the CRM limits bursts.", out.Sync.DeliveryPerSecond)
	}

	return out, res
}
