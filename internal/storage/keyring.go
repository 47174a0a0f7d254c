package storage

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "toxitrace-cli"
)

// Keyring stores session keys in the OS keychain/credential manager
type Keyring struct {
	namespace string
}

// NewKeyring creates a keyring storage. Entries are scoped by namespace so
// sessions against different API hosts do not collide.
func NewKeyring(namespace string) *Keyring {
	return &Keyring{namespace: namespace}
}

// keyringKey returns the keyring entry name for a storage key
func (k *Keyring) keyringKey(key string) string {
	if k.namespace == "" {
		return key
	}
	return fmt.Sprintf("%s-%s", key, k.namespace)
}

// Get retrieves a value from the OS keychain
func (k *Keyring) Get(key string) (string, bool, error) {
	value, err := keyring.Get(keyringService, k.keyringKey(key))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return value, true, nil
}

// Set persists a value securely in the OS keychain
func (k *Keyring) Set(key, value string) error {
	if err := keyring.Set(keyringService, k.keyringKey(key), value); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// Remove deletes a value from the OS keychain
func (k *Keyring) Remove(key string) error {
	if err := keyring.Delete(keyringService, k.keyringKey(key)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
