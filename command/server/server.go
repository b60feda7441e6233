package server

import (
	"context"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/furyaxyz/elysium-bridge/bridge/config"
	"github.com/furyaxyz/elysium-bridge/command"
	"github.com/furyaxyz/elysium-bridge/helper/common"
	"github.com/furyaxyz/elysium-bridge/node"
)

var params serverParams

// GetCommand returns the server command
func GetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "server",
		Short:   "Runs the bridge node",
		PreRunE: preRunCommand,
		Run:     runCommand,
	}

	cmd.Flags().StringVar(&params.configPath, configFlag, "",
		"the path to the JSON config file, flags set on the command line override its values")
	cmd.Flags().StringVar(&params.dataDir, dataDirFlag, "", "the data directory of the node state")
	cmd.Flags().StringVar(&params.genesisPath, genesisPathFlag, "", "the genesis file used on first start")
	cmd.Flags().StringVar(&params.jsonRPCAddr, jsonRPCFlag, config.DefaultJSONRPCAddr,
		"the address of the JSON RPC service")
	cmd.Flags().StringVar(&params.metricsAddr, metricsFlag, config.DefaultMetricsAddr,
		"the address of the prometheus metrics service, empty disables it")
	cmd.Flags().StringVar(&params.externalRPC, externalRPCFlag, "", "the JSON RPC endpoint of the external chain")
	cmd.Flags().Uint64Var(&params.externalChainID, externalChainIDFlag, 0, "the chain ID of the external chain")
	cmd.Flags().StringVar(&params.bridgeContract, bridgeContractFlag, "",
		"the address of the bridge contract on the external chain")
	cmd.Flags().StringVar(&params.orchestratorKey, orchestratorKeyFlag, "",
		"the hex encoded orchestrator key file, the orchestrator runs only when it is set")
	cmd.Flags().StringVar(&params.logLevel, logLevelFlag, "", "the log level (trace, debug, info, warn, error)")

	return cmd
}

func preRunCommand(_ *cobra.Command, _ []string) error {
	return params.validateFlags()
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)

	cfg, err := params.buildConfig(cmd.Flags().Changed)
	if err != nil {
		outputter.SetError(err)
		outputter.WriteOutput()

		return
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "elysium-bridge",
		Level:  hclog.LevelFromString(cfg.LogLevel),
		Output: os.Stderr,
	})

	n, err := node.NewNode(cfg, logger)
	if err != nil {
		outputter.SetError(err)
		outputter.WriteOutput()

		return
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	go func() {
		select {
		case sig := <-common.GetTerminationSignalCh():
			logger.Info("caught signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := n.Run(ctx); err != nil {
		outputter.SetError(err)
	}

	if err := n.Close(); err != nil {
		logger.Error("failed to close node", "err", err)
	}

	outputter.WriteOutput()
}
