package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"leadsync-engine/internal/config"
)

// KeyringService groups this app's secrets in the OS keychain.
const KeyringService = "leadsync"

func SourceAccount(cfg config.Config) string {
	return fmt.Sprintf("leadsync:source:%s", cfg.Source.Username)
}

func CRMAccount(cfg config.Config) string {
	return fmt.Sprintf("leadsync:crm:%s", cfg.CRM.LocationID)
}

func Get(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	pw, err := keyring.Get(KeyringService, account)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(pw) == "" {
		return "", errors.New("keyring entry is empty")
	}
	return pw, nil
}

func Set(account, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret value is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}

// ResolveCredentials fills in the source password and CRM token from the OS
// keychain when the config file and environment left them empty. Both must be
// present somewhere by the time we start.
func ResolveCredentials(cfg *config.Config) error {
	if strings.TrimSpace(cfg.Source.Password) == "" {
		if pw, err := Get(SourceAccount(*cfg)); err == nil {
			cfg.Source.Password = pw
		}
	}
	if strings.TrimSpace(cfg.CRM.AccessToken) == "" {
		if tok, err := Get(CRMAccount(*cfg)); err == nil {
			cfg.CRM.AccessToken = tok
		}
	}

	var missing []string
	if strings.TrimSpace(cfg.Source.Password) == "" {
		missing = append(missing, "source password (config, "+config.EnvSourcePassword+" or keychain)")
	}
	if strings.TrimSpace(cfg.CRM.AccessToken) == "" {
		missing = append(missing, "CRM access token (config, "+config.EnvCRMToken+" or keychain)")
	}
	if len(missing) > 0 {
		return errors.New("missing credentials: " + strings.Join(missing, "; "))
	}
	return nil
}
