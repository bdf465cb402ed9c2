package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service under which secrets are looked up.
const KeyringService = "yk-cfst-ddns"

const keyringPrefix = "keyring:"

// ProviderSettings returns the resolved settings of the [dns_provider.<id>]
// table, or nil when there is none. Values are stringified, ${ENV_VAR}
// references are expanded and a value of the form keyring:<user> is replaced
// by the secret stored in the OS keyring for that user.
//
// Only the requested table is resolved, so a missing secret of one provider
// does not affect the others.
func (c *Config) ProviderSettings(id string) (map[string]string, error) {
	raw, ok := c.Providers[id]
	if !ok {
		return nil, nil
	}
	settings := make(map[string]string, len(raw))
	for k, v := range raw {
		resolved, err := resolveSetting(stringValue(v))
		if err != nil {
			return nil, fmt.Errorf("provider %q: setting %q: %w", id, k, err)
		}
		settings[k] = resolved
	}
	return settings, nil
}

func resolveSetting(v string) (string, error) {
	v = os.ExpandEnv(v)
	user, ok := strings.CutPrefix(v, keyringPrefix)
	if !ok {
		return v, nil
	}
	secret, err := keyring.Get(KeyringService, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("no keyring secret for %q in service %q", user, KeyringService)
	}
	if err != nil {
		return "", fmt.Errorf("reading keyring secret %q: %w", user, err)
	}
	return secret, nil
}
