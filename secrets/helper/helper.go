package helper

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	jsoniter "github.com/json-iterator/go"

	"github.com/furyaxyz/elysium-bridge/crypto"
	"github.com/furyaxyz/elysium-bridge/secrets"
	alibabassm "github.com/furyaxyz/elysium-bridge/secrets/alibaba"
	"github.com/furyaxyz/elysium-bridge/secrets/local"
)

type factory func(*secrets.SecretsManagerConfig, *secrets.SecretsManagerParams) (secrets.SecretsManager, error)

var factories = map[secrets.SecretsManagerType]factory{
	secrets.Local:      local.SecretsManagerFactory,
	secrets.AlibabaSSM: alibabassm.SecretsManagerFactory,
}

// NewSecretsManager creates the secrets manager selected by the config type
func NewSecretsManager(config *secrets.SecretsManagerConfig, logger hclog.Logger) (secrets.SecretsManager, error) {
	create, ok := factories[config.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", secrets.ErrUnsupportedSecretsType, config.Type)
	}

	return create(config, &secrets.SecretsManagerParams{Logger: logger})
}

// ReadConfig reads a secrets manager config from a JSON file
func ReadConfig(path string) (*secrets.SecretsManagerConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets config %s: %w", path, err)
	}

	var config secrets.SecretsManagerConfig
	if err := jsoniter.Unmarshal(content, &config); err != nil {
		return nil, fmt.Errorf("failed to parse secrets config %s: %w", path, err)
	}

	return &config, nil
}

// LoadOrchestratorKey reads the orchestrator key from the secrets manager
func LoadOrchestratorKey(manager secrets.SecretsManager) (*crypto.Key, error) {
	raw, err := manager.GetSecret(secrets.OrchestratorKey)
	if err != nil {
		return nil, err
	}

	return crypto.NewKeyFromHex(string(raw))
}

// InitOrchestratorKey generates a new orchestrator key and stores it in the secrets manager
func InitOrchestratorKey(manager secrets.SecretsManager) (*crypto.Key, error) {
	if manager.HasSecret(secrets.OrchestratorKey) {
		return nil, fmt.Errorf("%w: %s", secrets.ErrSecretAlreadyExists, secrets.OrchestratorKey)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	if err := manager.SetSecret(secrets.OrchestratorKey, []byte(key.Hex())); err != nil {
		return nil, fmt.Errorf("failed to store orchestrator key: %w", err)
	}

	return key, nil
}
