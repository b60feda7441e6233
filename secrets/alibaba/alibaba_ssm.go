package alibabassm

import (
	"errors"
	"fmt"
	"os"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	oos20190601 "github.com/alibabacloud-go/oos-20190601/v4/client"
	util "github.com/alibabacloud-go/tea-utils/v2/service"
	"github.com/alibabacloud-go/tea/tea"
	"github.com/hashicorp/go-hclog"

	"github.com/furyaxyz/elysium-bridge/secrets"
)

const (
	regionExtraKey     = "region"
	parameterPathKey   = "ssm-parameter-path"
	accessKeyIDEnv     = "ALIBABA_CLOUD_ACCESS_KEY_ID"
	accessKeySecretEnv = "ALIBABA_CLOUD_ACCESS_KEY_SECRET"
)

var errMissingNodeName = errors.New("no node name specified for Alibaba SSM secrets manager")

// AlibabaSsmManager keeps the bridge secrets in the OOS secret parameter store
type AlibabaSsmManager struct {
	logger hclog.Logger

	region   string
	endpoint string
	// basePath is <ssm-parameter-path>/<node name>
	basePath string

	client *oos20190601.Client
}

// SecretsManagerFactory creates the manager from the "region" and "ssm-parameter-path" extra values.
// Credentials are read from the ALIBABA_CLOUD_ACCESS_KEY_ID and ALIBABA_CLOUD_ACCESS_KEY_SECRET variables.
func SecretsManagerFactory(
	config *secrets.SecretsManagerConfig,
	params *secrets.SecretsManagerParams) (secrets.SecretsManager, error) {
	if config.Name == "" {
		return nil, errMissingNodeName
	}

	if config.Extra == nil || config.Extra[regionExtraKey] == nil || config.Extra[parameterPathKey] == nil {
		return nil, fmt.Errorf("%w: %q and %q are required for %s", secrets.ErrMissingSecretsExtraData,
			regionExtraKey, parameterPathKey, secrets.AlibabaSSM)
	}

	logger := hclog.NewNullLogger()
	if params != nil && params.Logger != nil {
		logger = params.Logger
	}

	manager := &AlibabaSsmManager{
		logger:   logger.Named(string(secrets.AlibabaSSM)),
		region:   fmt.Sprintf("%v", config.Extra[regionExtraKey]),
		endpoint: config.ServerURL,
		basePath: fmt.Sprintf("%v/%s", config.Extra[parameterPathKey], config.Name),
	}

	client, err := oos20190601.NewClient(&openapi.Config{
		AccessKeyId:     tea.String(os.Getenv(accessKeyIDEnv)),
		AccessKeySecret: tea.String(os.Getenv(accessKeySecretEnv)),
		Endpoint:        tea.String(manager.endpoint),
		RegionId:        tea.String(manager.region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Alibaba OOS client: %w", err)
	}

	manager.client = client

	return manager, nil
}

func (a *AlibabaSsmManager) GetSecret(name string) ([]byte, error) {
	var value []byte

	err := a.call(func() error {
		response, err := a.client.GetSecretParameterWithOptions(&oos20190601.GetSecretParameterRequest{
			RegionId:       tea.String(a.region),
			Name:           tea.String(a.secretPath(name)),
			WithDecryption: tea.Bool(true),
		}, &util.RuntimeOptions{})
		if err != nil {
			return err
		}

		if response.Body == nil || response.Body.Parameter == nil {
			return fmt.Errorf("%w: %s", secrets.ErrSecretNotFound, name)
		}

		value = []byte(tea.StringValue(response.Body.Parameter.Value))

		return nil
	})

	return value, err
}

func (a *AlibabaSsmManager) SetSecret(name string, value []byte) error {
	return a.call(func() error {
		_, err := a.client.CreateSecretParameterWithOptions(&oos20190601.CreateSecretParameterRequest{
			RegionId: tea.String(a.region),
			Name:     tea.String(a.secretPath(name)),
			Value:    tea.String(string(value)),
		}, &util.RuntimeOptions{})

		return err
	})
}

func (a *AlibabaSsmManager) HasSecret(name string) bool {
	_, err := a.GetSecret(name)

	return err == nil
}

func (a *AlibabaSsmManager) RemoveSecret(name string) error {
	return a.call(func() error {
		_, err := a.client.DeleteSecretParameterWithOptions(&oos20190601.DeleteSecretParameterRequest{
			RegionId: tea.String(a.region),
			Name:     tea.String(a.secretPath(name)),
		}, &util.RuntimeOptions{})

		return err
	})
}

func (a *AlibabaSsmManager) secretPath(name string) string {
	return fmt.Sprintf("%s/%s", a.basePath, name)
}

// call runs an SDK request, turning SDK panics into errors and logging failures
func (a *AlibabaSsmManager) call(fn func() error) (err error) {
	defer func() {
		if r := tea.Recover(recover()); r != nil {
			err = r
		}

		if err != nil {
			a.logError(err)
		}
	}()

	return fn()
}

func (a *AlibabaSsmManager) logError(err error) {
	var sdkErr *tea.SDKError
	if !errors.As(err, &sdkErr) {
		a.logger.Error("secrets manager request failed", "err", err)

		return
	}

	a.logger.Error("secrets manager request failed",
		"code", tea.StringValue(sdkErr.Code), "message", tea.StringValue(sdkErr.Message))
}
