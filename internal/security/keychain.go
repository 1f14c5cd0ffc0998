package security

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	// KeychainService is the service name used for storing server passwords in the keychain
	KeychainService = "ircsession"
)

// Keychain provides secure password storage using OS keychain
type Keychain struct {
	service string
}

// NewKeychain creates a new keychain instance
func NewKeychain() *Keychain {
	return &Keychain{service: KeychainService}
}

// StorePassword stores a server password in the OS keychain.
// user is the server id.
func (k *Keychain) StorePassword(user string, password string) error {
	if password == "" {
		// Empty password, delete instead
		return k.DeletePassword(user)
	}
	if err := keyring.Set(k.service, user, password); err != nil {
		return fmt.Errorf("failed to store password in keychain: %w", err)
	}
	return nil
}

// GetPassword retrieves a server password from the OS keychain.
// A missing entry yields an empty password.
func (k *Keychain) GetPassword(user string) (string, error) {
	password, err := keyring.Get(k.service, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get password from keychain: %w", err)
	}
	return password, nil
}

// DeletePassword removes a server password from the OS keychain
func (k *Keychain) DeletePassword(user string) error {
	if err := keyring.Delete(k.service, user); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete password from keychain: %w", err)
	}
	return nil
}
