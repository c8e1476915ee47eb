// Package credentials keeps the recipe API key in the OS keyring.
package credentials

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// ServiceName is the keyring service entry.
	ServiceName = "recipe-cache"

	// DefaultAccount is the keyring user the API key is stored under.
	DefaultAccount = "spoonacular"
)

var (
	// ErrNotFound is returned when no key is stored.
	ErrNotFound = errors.New("api key not found in keyring")

	// ErrEmptyKey is returned by Set for a blank key.
	ErrEmptyKey = errors.New("api key must not be empty")
)

// KeyringStore reads and writes API keys in the OS keyring.
type KeyringStore struct {
	serviceName string
}

// NewKeyringStore returns a store for serviceName, or ServiceName if empty.
func NewKeyringStore(serviceName string) *KeyringStore {
	if serviceName == "" {
		serviceName = ServiceName
	}
	return &KeyringStore{serviceName: serviceName}
}

// Set stores the key for account.
func (k *KeyringStore) Set(account, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	return keyring.Set(k.serviceName, normalize(account), key)
}

// Get returns the key for account.
func (k *KeyringStore) Get(account string) (string, error) {
	key, err := keyring.Get(k.serviceName, normalize(account))
	if err == nil {
		return key, nil
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return "", err
}

// Delete removes the key for account.
func (k *KeyringStore) Delete(account string) error {
	err := keyring.Delete(k.serviceName, normalize(account))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Resolve returns explicit if set, otherwise the stored key for account.
func (k *KeyringStore) Resolve(explicit, account string) (string, error) {
	if key := strings.TrimSpace(explicit); key != "" {
		return key, nil
	}
	return k.Get(account)
}

func normalize(account string) string {
	account = strings.ToLower(strings.TrimSpace(account))
	if account == "" {
		return DefaultAccount
	}
	return account
}
