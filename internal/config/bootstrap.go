package config

import (
	"errors"
	"os"
	"path/filepath"
)

const defaultConfigYAML = `app:
  data_dir: "."
  default_region: "US"

source:
  base_url: ""   # e.g. https://leads.example.com
  username: ""
  # password may live here, in LEADSYNC_SOURCE_PASSWORD, or in the OS keychain
  page_limit: 500

crm:
  base_url: "https://rest.gohighlevel.com/v1"
  # access_token may live here, in LEADSYNC_CRM_TOKEN, or in the OS keychain
  location_id: ""
  api_version: "2021-07-28"

sync:
  interval_minutes: 10
  batch_size: 10
  max_retries: 3
  retry_delay_minutes: 30
  delivery_per_second: 2
`

// EnsureUserConfig makes sure a config file exists in the data dir, writing a
// commented starter file on first run, and returns its path.
func EnsureUserConfig(dataDir string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if err := os.WriteFile(userPath, []byte(defaultConfigYAML), 0o644); err != nil {
		return "", err
	}
	return userPath, nil
}
