package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/furyaxyz/elysium-bridge/command"
	"github.com/furyaxyz/elysium-bridge/command/genesis"
	"github.com/furyaxyz/elysium-bridge/command/key"
	"github.com/furyaxyz/elysium-bridge/command/query"
	"github.com/furyaxyz/elysium-bridge/command/server"
	"github.com/furyaxyz/elysium-bridge/command/version"
)

type RootCommand struct {
	baseCmd *cobra.Command
}

func NewRootCommand() *RootCommand {
	rootCommand := &RootCommand{
		baseCmd: &cobra.Command{
			Short:         "Elysium bridge node: moves tokens between the Elysium chain and an EVM chain",
			SilenceUsage:  true,
			SilenceErrors: false,
		},
	}

	rootCommand.baseCmd.PersistentFlags().Bool(
		command.JSONOutputFlag,
		false,
		"get all outputs in json format (default false)",
	)

	rootCommand.registerSubCommands()

	return rootCommand
}

func (rc *RootCommand) registerSubCommands() {
	rc.baseCmd.AddCommand(
		version.GetCommand(),
		server.GetCommand(),
		genesis.GetCommand(),
		key.GetCommand(),
		query.GetCommand(),
	)
}

func (rc *RootCommand) Execute() {
	if err := rc.baseCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)

		os.Exit(1)
	}
}
