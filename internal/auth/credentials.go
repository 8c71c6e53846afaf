// Package auth stores API credentials in the OS keyring, with a private
// file fallback for environments that have no keyring (CI, containers).
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name for keyring storage
	KeyringService = "landed-cli"
	// FallbackDir is the directory for file-based credentials (when keyring fails)
	FallbackDir = ".landed/credentials"
	// ProxyAPIKey names the rendering proxy key
	ProxyAPIKey = "proxy_api_key"
)

// ErrNotFound is returned when no credential is stored under a name
var ErrNotFound = errors.New("credential not found")

type backend interface {
	set(name, secret string) error
	get(name string) (string, error)
	remove(name string) error
}

var (
	defaultOnce    sync.Once
	defaultBackend backend
)

// storage picks the keyring unless it is unusable here
func storage() backend {
	defaultOnce.Do(func() {
		if os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
			defaultBackend = fileBackend{dir: defaultDir}
			return
		}

		// Probe the keyring once
		testKey := "_test_keyring_access_"
		if err := keyring.Set(KeyringService, testKey, "test"); err != nil {
			defaultBackend = fileBackend{dir: defaultDir}
			return
		}
		_ = keyring.Delete(KeyringService, testKey)
		defaultBackend = keyringBackend{}
	})
	return defaultBackend
}

// Save stores secret under name
func Save(name, secret string) error {
	if name == "" {
		return fmt.Errorf("credential name cannot be empty")
	}
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("credential cannot be empty")
	}
	return storage().set(name, strings.TrimSpace(secret))
}

// Load returns the secret stored under name, or ErrNotFound
func Load(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("credential name cannot be empty")
	}
	return storage().get(name)
}

// Delete removes the secret stored under name. Missing entries are not an
// error.
func Delete(name string) error {
	if name == "" {
		return fmt.Errorf("credential name cannot be empty")
	}
	return storage().remove(name)
}

type keyringBackend struct{}

func (keyringBackend) set(name, secret string) error {
	if err := keyring.Set(KeyringService, name, secret); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return nil
}

func (keyringBackend) get(name string) (string, error) {
	secret, err := keyring.Get(KeyringService, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load from keyring: %w", err)
	}
	return secret, nil
}

func (keyringBackend) remove(name string) error {
	err := keyring.Delete(KeyringService, name)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

// fileBackend keeps one 0600 file per credential
type fileBackend struct {
	dir func() (string, error)
}

func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, FallbackDir), nil
}

func (f fileBackend) path(name string) (string, error) {
	dir, err := f.dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(name)), nil
}

func (f fileBackend) set(name, secret string) error {
	path, err := f.path(name)
	if err != nil {
		return fmt.Errorf("failed to get credential path: %w", err)
	}
	if err := os.WriteFile(path, []byte(secret), 0600); err != nil {
		return fmt.Errorf("failed to save credential file: %w", err)
	}
	return nil
}

func (f fileBackend) get(name string) (string, error) {
	path, err := f.path(name)
	if err != nil {
		return "", fmt.Errorf("failed to get credential path: %w", err)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load credential file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (f fileBackend) remove(name string) error {
	path, err := f.path(name)
	if err != nil {
		return fmt.Errorf("failed to get credential path: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete credential file: %w", err)
	}
	return nil
}
