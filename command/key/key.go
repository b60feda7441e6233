package key

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/furyaxyz/elysium-bridge/command"
	"github.com/furyaxyz/elysium-bridge/crypto"
	"github.com/furyaxyz/elysium-bridge/helper/common"
	secretsHelper "github.com/furyaxyz/elysium-bridge/secrets/helper"
)

const (
	outputFlag        = "output"
	secretsConfigFlag = "secrets-config"
)

var params keyParams

type keyParams struct {
	outputPath    string
	secretsConfig string
}

func (p *keyParams) validateFlags() error {
	if p.secretsConfig != "" {
		if p.outputPath != "" {
			return errors.New("--output and --secrets-config are mutually exclusive")
		}

		return nil
	}

	if p.outputPath == "" {
		return errors.New("either --output or --secrets-config must be set")
	}

	if _, err := os.Stat(p.outputPath); err == nil {
		return fmt.Errorf("key file %s already exists", p.outputPath)
	}

	return nil
}

// GetCommand returns the key command
func GetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Generates an orchestrator key into a file or a secrets manager",
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return params.validateFlags()
		},
		Run: runCommand,
	}

	cmd.Flags().StringVar(&params.outputPath, outputFlag, "", "the path of the generated hex key file")
	cmd.Flags().StringVar(&params.secretsConfig, secretsConfigFlag, "",
		"the JSON secrets manager config the key is stored in")

	return cmd
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	var (
		res *keyResult
		err error
	)

	if params.secretsConfig != "" {
		res, err = generateIntoSecrets(params.secretsConfig)
	} else {
		res, err = generate(params.outputPath)
	}

	if err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(res)
}

func generate(path string) (*keyResult, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	if err := common.SaveFileSafe(path, []byte(key.Hex()), 0600); err != nil {
		return nil, err
	}

	return &keyResult{Location: path, Address: key.Address().String()}, nil
}

func generateIntoSecrets(configPath string) (*keyResult, error) {
	config, err := secretsHelper.ReadConfig(configPath)
	if err != nil {
		return nil, err
	}

	manager, err := secretsHelper.NewSecretsManager(config, hclog.NewNullLogger())
	if err != nil {
		return nil, err
	}

	key, err := secretsHelper.InitOrchestratorKey(manager)
	if err != nil {
		return nil, err
	}

	return &keyResult{Location: string(config.Type), Address: key.Address().String()}, nil
}

type keyResult struct {
	Location string `json:"location"`
	Address  string `json:"address"`
}

func (r *keyResult) GetOutput() string {
	return command.FormatTitle("orchestrator key") + command.FormatKV([]string{
		fmt.Sprintf("Stored in|%s", r.Location),
		fmt.Sprintf("Address|%s", r.Address),
	}) + "\n"
}
