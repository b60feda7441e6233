package local

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/furyaxyz/elysium-bridge/secrets"
)

func TestLocalSecretsManager(t *testing.T) {
	t.Parallel()

	manager, err := SecretsManagerFactory(&secrets.SecretsManagerConfig{
		Type:  secrets.Local,
		Extra: map[string]interface{}{PathExtraKey: t.TempDir()},
	}, &secrets.SecretsManagerParams{})
	require.NoError(t, err)

	require.False(t, manager.HasSecret(secrets.OrchestratorKey))

	_, err = manager.GetSecret(secrets.OrchestratorKey)
	require.ErrorIs(t, err, secrets.ErrSecretNotFound)

	require.NoError(t, manager.SetSecret(secrets.OrchestratorKey, []byte("abcd")))
	require.True(t, manager.HasSecret(secrets.OrchestratorKey))
	require.ErrorIs(t, manager.SetSecret(secrets.OrchestratorKey, []byte("ef")), secrets.ErrSecretAlreadyExists)

	value, err := manager.GetSecret(secrets.OrchestratorKey)
	require.NoError(t, err)
	require.Equal(t, []byte("abcd"), value)

	require.NoError(t, manager.RemoveSecret(secrets.OrchestratorKey))
	require.ErrorIs(t, manager.RemoveSecret(secrets.OrchestratorKey), secrets.ErrSecretNotFound)
}

func TestLocalSecretsManager_MissingPath(t *testing.T) {
	t.Parallel()

	_, err := SecretsManagerFactory(&secrets.SecretsManagerConfig{Type: secrets.Local}, &secrets.SecretsManagerParams{})
	require.ErrorIs(t, err, secrets.ErrMissingSecretsExtraData)
}
