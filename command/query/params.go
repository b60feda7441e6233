package query

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/furyaxyz/elysium-bridge/bridge/config"
)

const (
	jsonRPCFlag   = "json-rpc"
	methodsPrefix = "bridge_"
)

type queryParams struct {
	jsonRPCAddr string
}

func (p *queryParams) validateFlags() error {
	if strings.TrimSpace(p.jsonRPCAddr) == "" {
		return fmt.Errorf("--%s must be set, e.g. %s", jsonRPCFlag, config.DefaultJSONRPCAddr)
	}

	return nil
}

// methodName maps a short query name to its JSON RPC method
func methodName(name string) string {
	if strings.HasPrefix(name, methodsPrefix) {
		return name
	}

	return methodsPrefix + name
}

// parseArgs turns command line arguments into JSON RPC params. Valid JSON is passed as is,
// anything else is sent as a string.
func parseArgs(args []string) []interface{} {
	params := make([]interface{}, len(args))

	for i, arg := range args {
		if jsoniter.Valid([]byte(arg)) {
			params[i] = jsoniter.RawMessage(arg)
		} else {
			params[i] = arg
		}
	}

	return params
}
