package query

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/furyaxyz/elysium-bridge/bridge/config"
	"github.com/furyaxyz/elysium-bridge/bridge/types"
	"github.com/furyaxyz/elysium-bridge/command"
	"github.com/furyaxyz/elysium-bridge/jsonrpc"
)

var (
	params queryParams

	json = jsoniter.ConfigCompatibleWithStandardLibrary
)

// GetCommand returns the query command
func GetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <method> [params...]",
		Short: "Queries the bridge state of a running node",
		Example: "  query params\n" +
			"  query batches 'Transfers == 2'\n" +
			"  query balance 0x70997970C51812dc3A010C7d01b50e0d17dc79C8 stake",
		Args:    cobra.MinimumNArgs(1),
		PreRunE: preRunCommand,
		Run:     runCommand,
	}

	cmd.Flags().StringVar(&params.jsonRPCAddr, jsonRPCFlag, config.DefaultJSONRPCAddr,
		"the JSON RPC address of the node")

	return cmd
}

func preRunCommand(_ *cobra.Command, _ []string) error {
	return params.validateFlags()
}

func runCommand(cmd *cobra.Command, args []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	res, err := runQuery(cmd, jsonrpc.NewClient(params.jsonRPCAddr), methodName(args[0]), args[1:])
	if err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(res)
}

func runQuery(cmd *cobra.Command, client *jsonrpc.Client, method string, args []string) (command.CommandResult, error) {
	var raw jsoniter.RawMessage
	if err := client.Call(cmd.Context(), method, &raw, parseArgs(args)...); err != nil {
		return nil, fmt.Errorf("%s failed: %w", method, err)
	}

	if method == "bridge_batches" {
		var batches []*types.OutgoingBatch
		if err := json.Unmarshal(raw, &batches); err != nil {
			return nil, err
		}

		return batchesResult(batches), nil
	}

	return &rawResult{Method: method, Result: raw}, nil
}

type rawResult struct {
	Method string              `json:"method"`
	Result jsoniter.RawMessage `json:"result"`
}

func (r *rawResult) GetOutput() string {
	var value interface{}
	if err := json.Unmarshal(r.Result, &value); err != nil || len(r.Result) == 0 {
		return command.FormatTitle(r.Method) + "<none>\n"
	}

	out, _ := json.MarshalIndent(value, "", "  ")

	return command.FormatTitle(r.Method) + string(out) + "\n"
}

type batchesResult []*types.OutgoingBatch

func (r batchesResult) GetOutput() string {
	rows := make([]string, 0, len(r)+1)
	rows = append(rows, "Nonce|Token|Transfers|Fees|Height|Timeout")

	for _, batch := range r {
		rows = append(rows, fmt.Sprintf("%d|%s|%d|%s|%d|%d",
			batch.Nonce, batch.TokenContract, len(batch.Transfers), batch.TotalFee().Dec(),
			batch.Height, batch.Timeout))
	}

	return command.FormatTitle("batches") + command.FormatList(rows) + "\n"
}
