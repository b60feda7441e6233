package genesis

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/furyaxyz/elysium-bridge/bridge/config"
	"github.com/furyaxyz/elysium-bridge/command"
)

var params genesisParams

// GetCommand returns the genesis command
func GetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "genesis",
		Short:   "Generates the genesis file of the bridge",
		PreRunE: preRunCommand,
		Run:     runCommand,
	}

	cmd.Flags().StringVar(&params.genesisPath, genesisPathFlag, defaultGenesisPath,
		"the path of the generated genesis file")
	cmd.Flags().StringArrayVar(&params.validators, validatorFlag, nil,
		"a genesis orchestrator in the form <address>:<power>, repeat for every validator")
	cmd.Flags().StringVar(&params.admin, adminFlag, "", "the address allowed to manage token mappings")
	cmd.Flags().BoolVar(&params.bridgeActive, bridgeActiveFlag, true, "whether the bridge starts active")
	cmd.Flags().BoolVar(&params.autoDeployment, autoDeploymentFlag, false,
		"whether token contracts may be deployed automatically")
	cmd.Flags().StringVar(&params.ibcDenom, ibcDenomFlag, config.DefaultIbcElyDenom,
		"the ibc denom of the native coin")
	cmd.Flags().Uint64Var(&params.ibcTimeout, ibcTimeoutFlag, config.DefaultIbcTimeout,
		"the timeout of ibc transfers")
	cmd.Flags().StringArrayVar(&params.mappings, mappingFlag, nil,
		"a token mapping in the form <denom>:<contract>")
	cmd.Flags().StringArrayVar(&params.balances, balanceFlag, nil,
		"a genesis balance in the form <account>:<asset>:<amount>")

	return cmd
}

func preRunCommand(_ *cobra.Command, _ []string) error {
	if _, err := os.Stat(params.genesisPath); err == nil {
		return fmt.Errorf("genesis file %s already exists", params.genesisPath)
	}

	return params.validateFlags()
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	g, err := params.buildGenesis()
	if err != nil {
		outputter.SetError(err)

		return
	}

	if err := g.Save(params.genesisPath); err != nil {
		outputter.SetError(fmt.Errorf("failed to write genesis file: %w", err))

		return
	}

	outputter.SetCommandResult(&genesisResult{
		Path:       params.genesisPath,
		Validators: len(g.Valset),
		Mappings:   len(g.TokenMappings),
		Balances:   len(g.Balances),
		Active:     g.Params.BridgeActive,
	})
}

type genesisResult struct {
	Path       string `json:"path"`
	Validators int    `json:"validators"`
	Mappings   int    `json:"mappings"`
	Balances   int    `json:"balances"`
	Active     bool   `json:"active"`
}

func (r *genesisResult) GetOutput() string {
	return command.FormatTitle("genesis") + command.FormatKV([]string{
		fmt.Sprintf("Path|%s", r.Path),
		fmt.Sprintf("Validators|%d", r.Validators),
		fmt.Sprintf("Token mappings|%d", r.Mappings),
		fmt.Sprintf("Balances|%d", r.Balances),
		fmt.Sprintf("Bridge active|%t", r.Active),
	}) + "\n"
}
