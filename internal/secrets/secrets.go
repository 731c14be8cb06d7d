// Package secrets reads credentials from the OS keychain. Nothing secret
// lives in the yaml config; accounts there only name keychain entries.
package secrets

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/zalando/go-keyring"
)

// Service groups this app's secrets in the OS keychain.
const Service = "outreach"

func Get(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	pw, err := keyring.Get(Service, account)
	if err != nil {
		return "", errors.Wrapf(err, "keyring get %q", account)
	}
	if strings.TrimSpace(pw) == "" {
		return "", errors.Newf("keyring entry %q is empty", account)
	}
	return pw, nil
}

func Set(account, secret string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(secret) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(Service, account, secret)
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(Service, account)
}
