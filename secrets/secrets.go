package secrets

import (
	"errors"

	"github.com/hashicorp/go-hclog"
)

// OrchestratorKey is the name of the secret holding the hex encoded orchestrator key
const OrchestratorKey = "orchestrator-key"

// SecretsManagerType is the backend of a secrets manager
type SecretsManagerType string

const (
	// Local keeps every secret in a file of a local directory
	Local SecretsManagerType = "local"

	// AlibabaSSM keeps the secrets in the Alibaba Cloud OOS parameter store
	AlibabaSSM SecretsManagerType = "alibaba-ssm"
)

var (
	ErrSecretNotFound          = errors.New("secret not found")
	ErrSecretAlreadyExists     = errors.New("secret already exists")
	ErrUnsupportedSecretsType  = errors.New("unsupported secrets manager type")
	ErrMissingSecretsExtraData = errors.New("secrets manager extra data is missing")
)

// SecretsManager stores named secrets
type SecretsManager interface {
	GetSecret(name string) ([]byte, error)
	SetSecret(name string, value []byte) error
	HasSecret(name string) bool
	RemoveSecret(name string) error
}

// SecretsManagerConfig selects and configures a secrets manager
type SecretsManagerConfig struct {
	Type SecretsManagerType `json:"type"`
	// Name is the node name, remote backends keep the secrets of every node under their own path
	Name      string                 `json:"name,omitempty"`
	ServerURL string                 `json:"serverUrl,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// SecretsManagerParams are the runtime parameters of a secrets manager
type SecretsManagerParams struct {
	Logger hclog.Logger
}
