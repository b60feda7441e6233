package local

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/furyaxyz/elysium-bridge/helper/common"
	"github.com/furyaxyz/elysium-bridge/secrets"
)

// PathExtraKey is the extra config key of the secrets directory
const PathExtraKey = "path"

// LocalSecretsManager keeps every secret in its own file of a directory
type LocalSecretsManager struct {
	dir  string
	lock sync.RWMutex
}

// SecretsManagerFactory creates a local secrets manager from the "path" extra value
func SecretsManagerFactory(
	config *secrets.SecretsManagerConfig,
	_ *secrets.SecretsManagerParams) (secrets.SecretsManager, error) {
	if config.Extra == nil || config.Extra[PathExtraKey] == nil {
		return nil, fmt.Errorf("%w: %q is required for %s", secrets.ErrMissingSecretsExtraData,
			PathExtraKey, secrets.Local)
	}

	return NewLocalSecretsManager(fmt.Sprintf("%v", config.Extra[PathExtraKey]))
}

// NewLocalSecretsManager creates a secrets manager over dir, creating it when missing
func NewLocalSecretsManager(dir string) (*LocalSecretsManager, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create secrets dir %s: %w", dir, err)
	}

	return &LocalSecretsManager{dir: dir}, nil
}

func (l *LocalSecretsManager) GetSecret(name string) ([]byte, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	value, err := os.ReadFile(l.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", secrets.ErrSecretNotFound, name)
	}

	return value, err
}

// SetSecret stores a new secret, existing secrets are never overwritten
func (l *LocalSecretsManager) SetSecret(name string, value []byte) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if _, err := os.Stat(l.path(name)); err == nil {
		return fmt.Errorf("%w: %s", secrets.ErrSecretAlreadyExists, name)
	}

	return common.SaveFileSafe(l.path(name), value, 0600)
}

func (l *LocalSecretsManager) HasSecret(name string) bool {
	l.lock.RLock()
	defer l.lock.RUnlock()

	_, err := os.Stat(l.path(name))

	return err == nil
}

func (l *LocalSecretsManager) RemoveSecret(name string) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if err := os.Remove(l.path(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", secrets.ErrSecretNotFound, name)
		}

		return err
	}

	return nil
}

func (l *LocalSecretsManager) path(name string) string {
	return filepath.Join(l.dir, name)
}
